package node

import (
	"errors"
	"fmt"
)

var (
	ErrParentNotSet    = errors.New("parent has not been set yet")
	ErrNotImplemented  = errors.New("not implemented")
	ErrNoSuchChild     = errors.New("no such child")
	ErrNotRelated      = errors.New("not related")
	ErrInvalidGlobalID = errors.New("invalid global id")
)

// GlobalIDError оборачивает любую ошибку разрешения адреса вместе с самим адресом.
type GlobalIDError struct {
	ID  string
	Err error
}

func (e *GlobalIDError) Error() string {
	return fmt.Sprintf("invalid global id %q: %v", e.ID, e.Err)
}

func (e *GlobalIDError) Unwrap() []error {
	return []error{ErrInvalidGlobalID, e.Err}
}
