package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/milk9111/gravnav/gravity"
	"github.com/milk9111/gravnav/navsys"
	"github.com/milk9111/gravnav/pathfind"
	"github.com/milk9111/gravnav/scene"
	"github.com/milk9111/gravnav/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T) (*gin.Engine, *navsys.System) {
	t.Helper()
	cfg := navsys.DefaultConfig()
	cfg.Workers = 2
	sys, err := navsys.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })
	return NewRouter(sys, nil), sys
}

func do(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func build(t *testing.T, router *gin.Engine, name string) BuildResponse {
	t.Helper()
	w := do(t, router, http.MethodPost, "/v1/build", BuildRequest{Scene: name})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[BuildResponse](t, w)
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t)
	w := do(t, router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Volume)
}

func TestBuild(t *testing.T) {
	router, sys := setupRouter(t)
	resp := build(t, router, "two_regions")
	assert.Equal(t, "two_regions", resp.Scene)
	assert.Equal(t, sys.Volume().Fingerprint(), resp.Fingerprint)
	assert.Greater(t, resp.Stats.TransitionEdges, 0)
	assert.Equal(t, uint64(1), resp.Version)

	w := do(t, router, http.MethodGet, "/healthz", nil)
	assert.True(t, decode[HealthResponse](t, w).Volume)
}

func TestBuildInlineSpec(t *testing.T) {
	router, _ := setupRouter(t)
	spec := scene.Spec{Name: "inline"}
	spec.Bounds.Max = [3]float64{4, 4, 4}
	spec.Gravity.Kind = "uniform"
	spec.Gravity.Down = [3]float64{0, 0, -1}

	w := do(t, router, http.MethodPost, "/v1/build", BuildRequest{Spec: &spec})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "inline", decode[BuildResponse](t, w).Scene)
}

func TestBuildRejects(t *testing.T) {
	router, _ := setupRouter(t)
	tests := []struct {
		name string
		body any
		code string
	}{
		{name: "empty", body: BuildRequest{}, code: "INVALID_REQUEST"},
		{name: "both", body: BuildRequest{Scene: "open", Spec: &scene.Spec{}}, code: "INVALID_REQUEST"},
		{name: "unknown scene", body: BuildRequest{Scene: "nowhere"}, code: "INVALID_SCENE"},
		{name: "bad spec", body: BuildRequest{Spec: &scene.Spec{Name: "flat"}}, code: "INVALID_SCENE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/v1/build", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestBuildRejectsPathsOutsideScenes(t *testing.T) {
	router, sys := setupRouter(t)
	secret := filepath.Join(t.TempDir(), "leak.tengo")
	require.NoError(t, os.WriteFile(secret, []byte("down = [0, 0, 1]\nregion = 7\n"), 0o644))

	spec := func(script string) *scene.Spec {
		sp := &scene.Spec{Name: "leak"}
		sp.Bounds.Max = [3]float64{4, 4, 4}
		sp.Gravity.Kind = gravity.KindScript
		sp.Gravity.Script = script
		return sp
	}
	bodies := map[string]BuildRequest{
		"absolute script": {Spec: spec(secret)},
		"relative script": {Spec: spec("../../../../../../../../.." + secret)},
		"relative scene":  {Scene: "../../../../../../../../etc/hosts"},
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/v1/build", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "INVALID_SCENE", decode[ErrorResponse](t, w).Code)
		})
	}
	assert.Nil(t, sys.Snapshot())
}

func TestErrorResponseCodes(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&pathfind.RequestError{Field: "goal"}, http.StatusBadRequest, "INVALID_REQUEST"},
		{pathfind.ErrNotFound, http.StatusNotFound, "NO_PATH"},
		{navsys.ErrUnknownRequest, http.StatusNotFound, "UNKNOWN_REQUEST"},
		{pathfind.ErrCancelled, http.StatusRequestTimeout, "CANCELLED"},
		{volume.ErrBuildFailed, http.StatusUnprocessableEntity, "BUILD_FAILED"},
		{navsys.ErrSuperseded, http.StatusConflict, "SUPERSEDED"},
		{navsys.ErrNoVolume, http.StatusConflict, "NO_VOLUME"},
		{navsys.ErrQueueFull, http.StatusServiceUnavailable, "UNAVAILABLE"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, body := errorResponse(fmt.Errorf("wrapped: %w", tt.err))
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestFindPathSync(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, http.MethodPost, "/v1/paths", map[string]any{"start": []float64{0, 0, 0}, "goal": []float64{10, 0, 0}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NO_VOLUME", decode[ErrorResponse](t, w).Code)

	build(t, router, "open")
	w = do(t, router, http.MethodPost, "/v1/paths", map[string]any{
		"id":       "flat",
		"start":    []float64{0, 0, 0},
		"goal":     []float64{10, 0, 0},
		"settings": map[string]any{"algorithm": "theta"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[PathResponse](t, w)
	assert.Equal(t, "flat", resp.ID)
	require.NotNil(t, resp.Result)
	assert.Equal(t, pathfind.ThetaStar, resp.Result.Algorithm)
	assert.Len(t, resp.Result.Waypoints, 2)
	assert.InDelta(t, 10.0, resp.Result.Cost, 1e-9)
}

func TestFindPathErrors(t *testing.T) {
	router, _ := setupRouter(t)
	build(t, router, "split")

	w := do(t, router, http.MethodPost, "/v1/paths", map[string]any{"start": []float64{2, 2, 2}, "goal": []float64{100, 0, 0}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "goal", decode[ErrorResponse](t, w).Field)

	w = do(t, router, http.MethodPost, "/v1/paths", map[string]any{"start": []float64{2, 2, 2}, "settings": map[string]any{"heuristic_scale": -1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "settings.heuristic_scale", decode[ErrorResponse](t, w).Field)

	w = do(t, router, http.MethodPost, "/v1/paths", map[string]any{"settings": map[string]any{"algorithm": "dijkstra"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/paths", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAsyncPathLifecycle(t *testing.T) {
	router, sys := setupRouter(t)
	build(t, router, "two_regions")

	w := do(t, router, http.MethodPost, "/v1/paths", map[string]any{
		"id":    "job",
		"start": []float64{2.5, 4.5, 4.5},
		"goal":  []float64{13.5, 4.5, 4.5},
		"async": true,
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, "job", decode[PathResponse](t, w).ID)

	tk, err := sys.Ticket("job")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = tk.Wait(ctx)
	require.NoError(t, err)

	w = do(t, router, http.MethodGet, "/v1/paths/job", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[PathResponse](t, w)
	assert.Equal(t, "done", resp.State)
	require.NotNil(t, resp.Result)
	assert.Greater(t, resp.Result.Penalty, 0.0)

	w = do(t, router, http.MethodGet, "/v1/paths/job", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "UNKNOWN_REQUEST", decode[ErrorResponse](t, w).Code)
}

func TestCancelPath(t *testing.T) {
	router, _ := setupRouter(t)
	build(t, router, "pillars")

	w := do(t, router, http.MethodPost, "/v1/paths", map[string]any{
		"id":    "gone",
		"start": []float64{0.5, 0.5, 0.5},
		"goal":  []float64{31.5, 31.5, 7.5},
		"async": true,
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = do(t, router, http.MethodDelete, "/v1/paths/gone", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, router, http.MethodDelete, "/v1/paths/gone", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatsAndMetrics(t *testing.T) {
	router, _ := setupRouter(t)
	build(t, router, "open")
	do(t, router, http.MethodPost, "/v1/paths", map[string]any{"start": []float64{0, 0, 0}, "goal": []float64{10, 0, 0}})

	w := do(t, router, http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[navsys.Stats](t, w)
	assert.Equal(t, "open", stats.Scene)
	assert.Greater(t, stats.Volume.Nodes, 0)

	w = do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "gravnav_builds_total")
	assert.Contains(t, body, "gravnav_path_requests_total")
}

func TestRouterRecordsServerSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	sys, err := navsys.New(navsys.DefaultConfig(), navsys.WithTracerProvider(tp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })
	router := NewRouter(sys, nil, otelgin.WithTracerProvider(tp))

	w := do(t, router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, router, http.MethodPost, "/v1/build", BuildRequest{Scene: "open"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var names []string
	var build, handler sdktrace.ReadOnlySpan
	for _, span := range sr.Ended() {
		names = append(names, span.Name())
		switch {
		case span.Name() == "System.Build":
			build = span
		case strings.Contains(span.Name(), "/v1/build"):
			handler = span
		}
	}
	assert.True(t, slices.ContainsFunc(names, func(n string) bool { return strings.Contains(n, "/healthz") }), names)
	require.NotNil(t, handler, names)
	require.NotNil(t, build, names)
	assert.Equal(t, trace.SpanKindServer, handler.SpanKind())
	assert.Equal(t, handler.SpanContext().SpanID(), build.Parent().SpanID())
}
