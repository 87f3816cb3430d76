package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"configurator/internal/reference"
	"configurator/internal/reviver"
	"configurator/internal/schema"
	"configurator/internal/workspace"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseline = `{
	"className": "Study",
	"id": "TEST",
	"configVersion": 119,
	"scopeModels": [
		{"className": "ScopeModel", "id": "PATIENT", "shortname": {"en": "Patient", "fr": "Patient"}, "datasetModelIds": ["ADDRESS"]}
	],
	"datasetModels": [
		{"className": "DatasetModel", "id": "ADDRESS"},
		{"className": "DatasetModel", "id": "UNUSED"}
	]
}`

const withCenter = `{
	"className": "Study",
	"id": "TEST",
	"configVersion": 119,
	"scopeModels": [
		{"className": "ScopeModel", "id": "PATIENT", "shortname": {"en": "Patient", "fr": "Patient"}, "datasetModelIds": ["ADDRESS"]},
		{"className": "ScopeModel", "id": "CENTER"}
	],
	"datasetModels": [
		{"className": "DatasetModel", "id": "ADDRESS"},
		{"className": "DatasetModel", "id": "UNUSED"}
	]
}`

func newTestServer(t *testing.T) (*gin.Engine, *workspace.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	catalog, err := reference.Default()
	require.NoError(t, err)
	reg, err := schema.Default(catalog)
	require.NoError(t, err)
	store := workspace.NewStore(workspace.Options{Registry: reg, Revival: reviver.Options{EnforceTypes: true}})
	return NewRouter(store, catalog, nil), store
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func importConfig(t *testing.T, r http.Handler, name, body string) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/configs?name="+name, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	snap := decode[map[string]any](t, w)
	id, _ := snap["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestMeta(t *testing.T) {
	r, _ := newTestServer(t)

	w := do(t, r, http.MethodGet, "/api/meta", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]metaListItem](t, w)
	assert.NotEmpty(t, list)
	assert.Equal(t, "Study", list[0].Name)

	w = do(t, r, http.MethodGet, "/api/meta/scopemodel", "")
	require.Equal(t, http.StatusOK, w.Code)
	entity := decode[map[string]any](t, w)
	assert.Equal(t, "ScopeModel", entity["name"])
	assert.Contains(t, entity["parents"], "Study")

	w = do(t, r, http.MethodGet, "/api/meta/Nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/meta/_lint", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["ok"])
}

func TestMetaPath(t *testing.T) {
	r, _ := newTestServer(t)

	w := do(t, r, http.MethodGet, "/api/meta/Study/path/EventModel?kind=children", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[map[string]any](t, w)
	assert.Equal(t, true, res["found"])
	assert.Equal(t, []any{"ScopeModel", "EventModel"}, res["path"])

	w = do(t, r, http.MethodGet, "/api/meta/Study/path/EventModel?kind=siblings", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalogs(t *testing.T) {
	r, _ := newTestServer(t)

	w := do(t, r, http.MethodGet, "/api/catalogs", "")
	require.Equal(t, http.StatusOK, w.Code)
	names := decode[[]string](t, w)
	require.NotEmpty(t, names)

	w = do(t, r, http.MethodGet, "/api/catalogs/"+names[0], "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/catalogs/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfigLifecycle(t *testing.T) {
	r, _ := newTestServer(t)
	id := importConfig(t, r, "baseline", baseline)

	w := do(t, r, http.MethodGet, "/api/configs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	w = do(t, r, http.MethodGet, "/api/configs/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[map[string]any](t, w)
	assert.Equal(t, "baseline", snap["name"])
	assert.EqualValues(t, 119, snap["version"])
	assert.EqualValues(t, 4, snap["nodes"])

	w = do(t, r, http.MethodGet, "/api/configs/"+id+"/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	exported := decode[map[string]any](t, w)
	assert.Equal(t, "Study", exported["className"])
	assert.Equal(t, "TEST", exported["id"])

	w = do(t, r, http.MethodDelete, "/api/configs/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, http.MethodGet, "/api/configs/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportErrors(t *testing.T) {
	r, _ := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"broken json", "{", http.StatusBadRequest},
		{"not an object", "[1, 2]", http.StatusBadRequest},
		{"outdated application", `{"className": "Study", "id": "X", "configVersion": 500}`, http.StatusConflict},
		{"missing migration", `{"className": "Study", "id": "X", "configVersion": 12}`, http.StatusUnprocessableEntity},
		{"type mismatch", `{"className": "Study", "id": "X", "configVersion": 119, "scopeModels": "PATIENT"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/configs", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, decode[map[string]any](t, w), "error")
		})
	}
}

func TestOutdatedErrorCarriesVersions(t *testing.T) {
	r, _ := newTestServer(t)
	w := do(t, r, http.MethodPost, "/api/configs", `{"className": "Study", "id": "X", "configVersion": 500}`)
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode[map[string]any](t, w)
	assert.EqualValues(t, 500, body["version"])
	assert.EqualValues(t, 119, body["current"])
}

func TestNodeEndpoints(t *testing.T) {
	r, _ := newTestServer(t)
	id := importConfig(t, r, "baseline", baseline)
	base := "/api/configs/" + id

	w := do(t, r, http.MethodGet, base+"/node", "")
	require.Equal(t, http.StatusOK, w.Code)
	root := decode[nodeView](t, w)
	assert.Equal(t, "Study:TEST", root.GlobalID)
	assert.Empty(t, root.Parent)
	assert.NotNil(t, root.Data)

	w = do(t, r, http.MethodGet, base+"/node?gid=Study:TEST|ScopeModel:PATIENT&lang=fr", "")
	require.Equal(t, http.StatusOK, w.Code)
	scope := decode[nodeView](t, w)
	assert.Equal(t, "ScopeModel", scope.Entity)
	assert.Equal(t, "Patient", scope.Label)
	assert.Equal(t, "Study:TEST", scope.Parent)
	require.NotNil(t, scope.Used)
	assert.True(t, *scope.Used)

	w = do(t, r, http.MethodGet, base+"/node?gid=Study:TEST|ScopeModel:NOPE", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, base+"/node?gid=Study:OTHER", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, base+"/children?entity=datasetmodel", "")
	require.Equal(t, http.StatusOK, w.Code)
	children := decode[[]nodeView](t, w)
	require.Len(t, children, 2)
	assert.Equal(t, "ADDRESS", children[0].ID)
	for _, c := range children {
		assert.Nil(t, c.Used)
		assert.Nil(t, c.Data)
	}

	w = do(t, r, http.MethodGet, base+"/children?entity=DatasetModel&slot=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, base+"/relations?gid=Study:TEST|ScopeModel:PATIENT&entity=DatasetModel", "")
	require.Equal(t, http.StatusOK, w.Code)
	related := decode[[]nodeView](t, w)
	require.Len(t, related, 1)
	assert.Equal(t, "ADDRESS", related[0].ID)
}

func TestUsageAndSearch(t *testing.T) {
	r, _ := newTestServer(t)
	id := importConfig(t, r, "baseline", baseline)
	base := "/api/configs/" + id

	w := do(t, r, http.MethodGet, base+"/usage?gid=Study:TEST|DatasetModel:ADDRESS", "")
	require.Equal(t, http.StatusOK, w.Code)
	var usage struct {
		Used  bool                  `json:"used"`
		Usage map[string][]nodeView `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &usage))
	assert.True(t, usage.Used)
	require.Len(t, usage.Usage["ScopeModel"], 1)
	assert.Equal(t, "PATIENT", usage.Usage["ScopeModel"][0].ID)

	w = do(t, r, http.MethodGet, base+"/usage?gid=Study:TEST|DatasetModel:UNUSED", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &usage))
	assert.False(t, usage.Used)

	w = do(t, r, http.MethodGet, base+"/search?q=patient", "")
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[map[string]any](t, w)
	assert.EqualValues(t, 1, found["total"])

	w = do(t, r, http.MethodGet, base+"/search", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiff(t *testing.T) {
	r, _ := newTestServer(t)
	source := importConfig(t, r, "source", baseline)
	target := importConfig(t, r, "target", withCenter)

	w := do(t, r, http.MethodGet, "/api/configs/"+source+"/diff/"+target, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Summary     map[string]int   `json:"summary"`
		Differences []map[string]any `json:"differences"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Summary["additions"])
	require.Len(t, res.Differences, 1)
	assert.Equal(t, "child", res.Differences[0]["kind"])
	assert.Equal(t, "CENTER", res.Differences[0]["childId"])

	w = do(t, r, http.MethodGet, "/api/configs/"+source+"/diff/"+source, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Empty(t, res.Differences)

	w = do(t, r, http.MethodGet, "/api/configs/"+source+"/diff/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestServer(t)
	do(t, r, http.MethodGet, "/api/meta", "")

	w := do(t, r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "configurator_http_requests_total")
}
