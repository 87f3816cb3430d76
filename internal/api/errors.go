package api

import (
	"errors"
	"net/http"

	"configurator/internal/migrate"
	"configurator/internal/node"
	"configurator/internal/reviver"
	"configurator/internal/schema"
	"configurator/internal/workspace"

	"github.com/gin-gonic/gin"
)

// statusFor сопоставляет ошибку движка с HTTP-статусом. Порядок важен:
// GlobalIDError раскрывается и в ErrInvalidGlobalID, и в исходную причину.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workspace.ErrNotFound),
		errors.Is(err, schema.ErrUnknownEntity),
		errors.Is(err, node.ErrNoSuchChild):
		return http.StatusNotFound
	case errors.Is(err, node.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, migrate.ErrApplicationOutdated),
		errors.Is(err, workspace.ErrVersionMismatch):
		return http.StatusConflict
	case errors.Is(err, migrate.ErrMissingMigration),
		errors.Is(err, migrate.ErrMigration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, node.ErrInvalidGlobalID),
		errors.Is(err, node.ErrNotRelated),
		errors.Is(err, node.ErrParentNotSet),
		errors.Is(err, reviver.ErrTypeMismatch),
		errors.Is(err, workspace.ErrInvalidConfiguration):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	var mismatch *reviver.TypeMismatchError
	if errors.As(err, &mismatch) {
		body["path"] = mismatch.Path
		body["expected"] = mismatch.Expected
		body["actual"] = mismatch.Actual
	}
	var outdated *migrate.OutdatedError
	if errors.As(err, &outdated) {
		body["version"] = outdated.Version
		body["current"] = outdated.Current
	}
	c.AbortWithStatusJSON(status, body)
}
