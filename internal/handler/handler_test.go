package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibermap/internal/metrics"
	"fibermap/internal/repository/sqlite"
	"fibermap/internal/service"
)

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	m := metrics.New()
	svc := service.NewNetworkService(repo, nil, service.WithMetrics(m))
	require.NoError(t, svc.Load(testContext(t)))

	h := NewHandler(zerolog.Nop(), svc, Options{Metrics: m, RequestTimeout: 5 * time.Second})
	return h.Router()
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func seedNetwork(t *testing.T, router http.Handler) {
	t.Helper()
	bodies := []string{
		`{"name":"OLT Central","kind":"head_end","location":{"lat":-6.2,"lng":106.8},"capacityPorts":1}`,
		`{"name":"Splitter A","kind":"splitter","location":{"lat":-6.2,"lng":106.8},"parentId":"OLT001","splitRatio":"1:2"}`,
		`{"name":"Budi","kind":"customer_drop","location":{"lat":-6.2,"lng":106.8},"parentId":"SPL001","planLabel":"Home 50"}`,
	}
	for _, b := range bodies {
		rr := do(t, router, http.MethodPost, "/api/v1/elements", b)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	rr := do(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true,"revision":0}`, rr.Body.String())
}

func TestCreateAndGetElement(t *testing.T) {
	router := newTestRouter(t)
	seedNetwork(t, router)

	rr := do(t, router, http.MethodGet, "/api/v1/elements/OLT001", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var el map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &el))
	assert.Equal(t, "head_end", el["kind"])
	assert.Equal(t, float64(1), el["usedPorts"])
	assert.Equal(t, float64(1), el["childSplitterCount"])

	rr = do(t, router, http.MethodGet, "/api/v1/elements?kind=customer_drop", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "CUS001", list[0]["id"])
}

func TestErrorMapping(t *testing.T) {
	router := newTestRouter(t)
	seedNetwork(t, router)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown element", http.MethodGet, "/api/v1/elements/OLT404", "", http.StatusNotFound, "not_found"},
		{"unknown kind filter", http.MethodGet, "/api/v1/elements?kind=router", "", http.StatusBadRequest, "invalid_kind"},
		{"unknown field", http.MethodPost, "/api/v1/elements", `{"name":"x","kind":"head_end","ports":3}`, http.StatusBadRequest, "bad_request"},
		{"missing name", http.MethodPost, "/api/v1/elements", `{"kind":"head_end","location":{"lat":1,"lng":1},"capacityPorts":1}`, http.StatusBadRequest, "missing_required_field"},
		{"head-end full", http.MethodPost, "/api/v1/elements", `{"name":"S2","kind":"splitter","location":{"lat":1,"lng":1},"parentId":"OLT001","splitRatio":"1:8"}`, http.StatusConflict, "parent_at_capacity"},
		{"missing parent", http.MethodPost, "/api/v1/elements", `{"name":"S2","kind":"splitter","location":{"lat":1,"lng":1},"parentId":"OLT404","splitRatio":"1:8"}`, http.StatusUnprocessableEntity, "parent_not_found"},
		{"live children", http.MethodDelete, "/api/v1/elements/SPL001", "", http.StatusConflict, "has_live_children"},
		{"split ratio at usage", http.MethodPut, "/api/v1/elements/SPL001/split-ratio", `{"splitRatio":"1:2"}`, http.StatusOK, ""},
		{"bad status", http.MethodPut, "/api/v1/elements/OLT001/status", `{"status":"open"}`, http.StatusBadRequest, "invalid_value"},
		{"unknown mode", http.MethodPut, "/api/v1/map/mode", `{"mode":"warp"}`, http.StatusBadRequest, "invalid_value"},
		{"bad history limit", http.MethodGet, "/api/v1/history?limit=0", "", http.StatusBadRequest, "invalid_value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, router, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeError(t, rr).Error.Code)
			}
		})
	}
}

func TestCapacityEdits(t *testing.T) {
	router := newTestRouter(t)
	seedNetwork(t, router)

	rr := do(t, router, http.MethodPut, "/api/v1/elements/OLT001/capacity", `{"capacity":0}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodPut, "/api/v1/elements/OLT001/capacity", `{"capacity":4}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, router, http.MethodGet, "/api/v1/utilization", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var util []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &util))
	require.NotEmpty(t, util)
	assert.Equal(t, "OLT001", util[0]["id"])
	assert.Equal(t, float64(4), util[0]["capacity"])
}

func TestMapFlow(t *testing.T) {
	router := newTestRouter(t)
	seedNetwork(t, router)

	rr := do(t, router, http.MethodPut, "/api/v1/map/mode", `{"mode":"add"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, router, http.MethodPut, "/api/v1/map/draft", `{"name":"Siti","kind":"customer_drop","location":{"lat":1,"lng":1},"parentId":"SPL001"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/v1/map/draft/submit", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp struct {
		Element map[string]any `json:"element"`
		Map     struct {
			State struct {
				Mode      string `json:"mode"`
				Selection string `json:"selection"`
			} `json:"state"`
		} `json:"map"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "CUS002", resp.Element["id"])
	assert.Equal(t, "view", resp.Map.State.Mode)
	assert.Equal(t, "CUS002", resp.Map.State.Selection)

	rr = do(t, router, http.MethodPut, "/api/v1/map/selection/status", `{"status":"inactive"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "illegal_transition", decodeError(t, rr).Error.Code)

	rr = do(t, router, http.MethodDelete, "/api/v1/map/selection", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/v1/layers/customer_drop/toggle", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, router, http.MethodGet, "/api/v1/map", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var view struct {
		Elements []map[string]any `json:"elements"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Len(t, view.Elements, 2)
}

func TestExportImport(t *testing.T) {
	router := newTestRouter(t)
	seedNetwork(t, router)

	rr := do(t, router, http.MethodGet, "/api/v1/export?format=yaml", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/yaml", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `filename="network-map-`)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `.yaml"`)
	exported := rr.Body.String()

	other := newTestRouter(t)
	rr = do(t, other, http.MethodPost, "/api/v1/import?format=yaml", exported)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"elements":3,"revision":3,"source":"upload"}`, rr.Body.String())

	rr = do(t, other, http.MethodPost, "/api/v1/import", `{"headEnds":[{"id":"OLT001"}]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "malformed_document", decodeError(t, rr).Error.Code)

	rr = do(t, router, http.MethodGet, "/api/v1/export?format=yml", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/yaml", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `.yaml"`)

	rr = do(t, router, http.MethodGet, "/api/v1/export?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHistoryAndMetrics(t *testing.T) {
	router := newTestRouter(t)
	seedNetwork(t, router)

	rr := do(t, router, http.MethodGet, "/api/v1/history?limit=2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "CUS001", entries[0]["elementId"])

	rr = do(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `fibermap_mutations_total{op="create",result="ok"} 3`)
}

// testContext returns a context canceled when the test finishes
// (equivalent of testing.T.Context, added in Go 1.24).
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
