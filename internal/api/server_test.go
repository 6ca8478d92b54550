package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/FogOfWarPreview/internal/events"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/fog"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/mapstore"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/preview"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/settings"
	"github.com/mitchelldurbincs/FogOfWarPreview/internal/testutil"
)

type testEnv struct {
	handler     http.Handler
	engine      *fog.Engine
	coordinator *preview.Coordinator
	store       mapstore.Store
}

func newTestEnv(t *testing.T, options Options) *testEnv {
	t.Helper()
	logger := testutil.NopLogger()
	store := mapstore.NewMemoryStore(logger)
	bus := events.NewEventBus(logger)
	settingsService := settings.NewService(store, logger)
	coordinator := preview.NewCoordinator(logger,
		preview.WithSettingsSyncer(settingsService),
		preview.WithPublisher(bus),
	)
	bus.Subscribe(preview.NewRefreshSubscriber(coordinator))
	engine := fog.NewEngine(store, fog.DefaultConfig(), logger,
		fog.WithPublisher(bus),
		fog.WithSaveGuard(coordinator),
	)
	server := NewServer(engine, coordinator, store, settingsService, nil, options, logger)
	return &testEnv{handler: server.Handler(), engine: engine, coordinator: coordinator, store: store}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestGetFogUnknownMap(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/fog/nowhere", "")
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeBody[fog.State](t, rec)
	assert.Equal(t, "nowhere", state.MapName)
	assert.Empty(t, state.RevealedAreas)
	assert.Contains(t, rec.Body.String(), `"revealedAreas":[]`)
}

func TestRevealQueryDefaultsRadius(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/fog/dungeon/reveal?x=10&y=20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/fog/dungeon/reveal?x=300&y=300&radius=75", "")
	require.Equal(t, http.StatusOK, rec.Code)

	state := env.engine.GetState(context.Background(), "dungeon")
	assert.Equal(t, []fog.RevealedArea{
		{X: 10, Y: 20, Radius: 50},
		{X: 300, Y: 300, Radius: 75},
	}, state.RevealedAreas)
}

func TestRevealRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name   string
		target string
	}{
		{"missing x", "/api/fog/dungeon/reveal?y=1"},
		{"non numeric", "/api/fog/dungeon/reveal?x=a&y=1"},
		{"bad radius", "/api/fog/dungeon/reveal?x=1&y=1&radius=big"},
		{"negative radius", "/api/fog/dungeon/reveal?x=1&y=1&radius=-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tt.target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, env.engine.GetState(context.Background(), "dungeon").RevealedAreas)
}

func TestRevealAndHideBatch(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/fog/dungeon/reveal-batch",
		`[{"x":0,"y":0,"radius":50},{"x":100,"y":100,"radius":50},{"x":400,"y":0,"radius":50}]`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/fog/dungeon/hide-batch", `[{"x":105,"y":100,"radius":0}]`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/fog/dungeon", "")
	state := decodeBody[fog.State](t, rec)
	assert.Equal(t, []fog.RevealedArea{
		{X: 0, Y: 0, Radius: 50},
		{X: 400, Y: 0, Radius: 50},
	}, state.RevealedAreas)

	rec = env.do(t, http.MethodPost, "/api/fog/dungeon/reveal-batch", `{"x":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRevealPointKeepsGridFlag(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/fog/dungeon/reveal-cell", `{"x":25,"y":25,"radius":25,"isGridCell":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/fog/dungeon/reveal-point", `{"x":80,"y":80,"radius":10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	state := env.engine.GetState(context.Background(), "dungeon")
	assert.Equal(t, []fog.RevealedArea{
		{X: 25, Y: 25, Radius: 25, IsGridCell: true},
		{X: 80, Y: 80, Radius: 10},
	}, state.RevealedAreas)
}

func TestMixedBatchAppliesInOrder(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/fog/dungeon/batch", `[
		{"action":"erase","x":0,"y":0,"radius":40},
		{"action":"erase","x":200,"y":0,"radius":40},
		{"action":"paint","x":0,"y":0,"radius":5},
		{"action":"smudge","x":200,"y":0,"radius":5},
		{"action":"erase","x":0,"y":0,"radius":30}
	]`)
	require.Equal(t, http.StatusOK, rec.Code)

	state := env.engine.GetState(context.Background(), "dungeon")
	assert.Equal(t, []fog.RevealedArea{
		{X: 200, Y: 0, Radius: 40},
		{X: 0, Y: 0, Radius: 30},
	}, state.RevealedAreas)
}

func TestFogStatesRoundTripAndHash(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/fog-states/dungeon/hash", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"hash": "-1824451325"}, decodeBody[map[string]string](t, rec))

	rec = env.do(t, http.MethodPost, "/api/fog-states/dungeon",
		`{"mapName":"ignored","revealedAreas":[{"x":0,"y":0,"radius":50}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/fog-states/dungeon", "")
	state := decodeBody[fog.State](t, rec)
	assert.Equal(t, "dungeon", state.MapName)
	assert.Equal(t, []fog.RevealedArea{{X: 0, Y: 0, Radius: 50}}, state.RevealedAreas)

	rec = env.do(t, http.MethodGet, "/api/fog-states/dungeon/hash", "")
	assert.Equal(t, map[string]string{"hash": "1019394311"}, decodeBody[map[string]string](t, rec))

	rec = env.do(t, http.MethodPost, "/api/fog-states/dungeon/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.engine.GetState(context.Background(), "dungeon").RevealedAreas)

	rec = env.do(t, http.MethodPost, "/api/fog/dungeon/reset", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidMapNameIsBadRequest(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/fog/a%5Cb/reveal?x=1&y=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/fog/%20/reset", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/map-data/a%5Cb", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewMapLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/preview-map", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, body := range []string{"dungeon", `"dungeon"`, `{"mapName":"dungeon"}`} {
		rec = env.do(t, http.MethodPost, "/api/preview-map", body)
		require.Equal(t, http.StatusOK, rec.Code, body)

		rec = env.do(t, http.MethodGet, "/api/preview-map", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "dungeon", rec.Body.String())
	}

	status := decodeBody[preview.Status](t, env.do(t, http.MethodGet, "/api/preview-map/status", ""))
	assert.True(t, status.HasPreviewMap)
	assert.True(t, status.ViewportFrameEnabled)
	assert.True(t, status.RefreshRequested)

	rec = env.do(t, http.MethodPost, "/api/preview-map", `{"mapName":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/preview-map/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/preview-map", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshFlagIsConsumedOnce(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/preview-map/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"requested": true}, decodeBody[map[string]bool](t, rec))

	assert.True(t, decodeBody[bool](t, env.do(t, http.MethodGet, "/api/preview-map/refresh", "")))
	assert.False(t, decodeBody[bool](t, env.do(t, http.MethodGet, "/api/preview-map/refresh", "")))
}

func TestFogSaveGuardSuppressesRefresh(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/preview-map/fog-save", `{"inProgress":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/preview-map/refresh", "")
	assert.Equal(t, map[string]bool{"requested": false}, decodeBody[map[string]bool](t, rec))

	rec = env.do(t, http.MethodPost, "/api/preview-map/refresh-fog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[bool](t, env.do(t, http.MethodGet, "/api/preview-map/refresh", "")))

	rec = env.do(t, http.MethodPost, "/api/preview-map/fog-save", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/preview-map/fog-save", `{"inProgress":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.coordinator.FogSaveInProgress())
}

func TestRevealOnPreviewedMapRaisesRefresh(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(t, http.MethodPost, "/api/preview-map", "dungeon")
	env.do(t, http.MethodGet, "/api/preview-map/refresh", "")

	env.do(t, http.MethodPost, "/api/fog/forest/reveal?x=1&y=1", "")
	assert.False(t, decodeBody[bool](t, env.do(t, http.MethodGet, "/api/preview-map/refresh", "")))

	env.do(t, http.MethodPost, "/api/fog/dungeon/reveal?x=1&y=1", "")
	assert.True(t, decodeBody[bool](t, env.do(t, http.MethodGet, "/api/preview-map/refresh", "")))
}

func TestViewportFrameToggle(t *testing.T) {
	env := newTestEnv(t, Options{})

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/preview-map/viewport-frame/enable", "").Code)
	assert.True(t, env.coordinator.ViewportFrameEnabled())
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/preview-map/viewport-frame/disable", "").Code)
	assert.False(t, env.coordinator.ViewportFrameEnabled())
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/preview-map/viewport-frame/toggle", "").Code)
}

func TestNavigationCommandIsOneShot(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/preview-map/navigation", `{"action":"center","x":120.5,"y":80,"animate":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	cmd := decodeBody[map[string]string](t, env.do(t, http.MethodGet, "/api/preview-map/navigation", ""))
	assert.Equal(t, map[string]string{"action": "center", "x": "120.5", "y": "80", "animate": "true"}, cmd)

	cmd = decodeBody[map[string]string](t, env.do(t, http.MethodGet, "/api/preview-map/navigation", ""))
	assert.Empty(t, cmd)
}

func TestViewportSyncsIntoPreviewedMapSettings(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(t, http.MethodPost, "/api/preview-map", "dungeon")

	rec := env.do(t, http.MethodPost, "/api/preview-map/viewport", `{"zoom":2,"panX":-40,"panY":15,"rotation":90,"width":800}`)
	require.Equal(t, http.StatusOK, rec.Code)

	vp := decodeBody[map[string]interface{}](t, env.do(t, http.MethodGet, "/api/preview-map/viewport", ""))
	assert.Equal(t, 800.0, vp["width"])

	doc, err := env.store.Load(context.Background(), "dungeon")
	require.NoError(t, err)
	var stored map[string]interface{}
	_, err = doc.Section(mapstore.SectionSettings, &stored)
	require.NoError(t, err)
	assert.Equal(t, 2.0, stored["zoom"])
	assert.Equal(t, -40.0, stored["panX"])
	assert.Equal(t, 90.0, stored["rotation"])
	assert.NotContains(t, stored, "width")
}

func TestMapDataKeepsFogWhenOmitted(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	rec := env.do(t, http.MethodGet, "/api/map-data/dungeon", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, env.engine.AddRevealedArea(ctx, "dungeon", 10, 10, 30))

	rec = env.do(t, http.MethodPost, "/api/map-data/dungeon", `{"settings":{"zoom":3},"characters":{"players":[{"name":"Ayla"}],"enemies":[]}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []fog.RevealedArea{{X: 10, Y: 10, Radius: 30}}, env.engine.GetState(ctx, "dungeon").RevealedAreas)

	rec = env.do(t, http.MethodGet, "/api/map-data/dungeon", "")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decodeBody[map[string]json.RawMessage](t, rec)
	assert.JSONEq(t, `{"zoom":3}`, string(doc["settings"]))
	assert.Contains(t, string(doc["characters"]), "Ayla")
	assert.Contains(t, doc, "timestamp")
	assert.JSONEq(t, `"1.0"`, string(doc["version"]))

	rec = env.do(t, http.MethodPost, "/api/map-data/dungeon", `{"fog":{"mapName":"dungeon","revealedAreas":[]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.engine.GetState(ctx, "dungeon").RevealedAreas)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/map-data/dungeon", `[1,2]`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/map-data/dungeon", `null`).Code)
}

func TestMapDataDelete(t *testing.T) {
	env := newTestEnv(t, Options{})
	require.NoError(t, env.engine.AddRevealedArea(context.Background(), "dungeon", 1, 1, 1))

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/map-data/dungeon", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/map-data/dungeon", "").Code)
}

func TestVersionEndpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "version.json")

	env := newTestEnv(t, Options{VersionFile: path})
	v := decodeBody[Version](t, env.do(t, http.MethodGet, "/api/version", ""))
	assert.Equal(t, defaultVersion, v)

	require.NoError(t, os.WriteFile(path, []byte(`{"build":7,"buildDate":"2025-03-01 12:00"}`), 0o644))
	v = decodeBody[Version](t, env.do(t, http.MethodGet, "/api/version", ""))
	assert.Equal(t, Version{Build: 7, BuildDate: "2025-03-01 12:00"}, v)

	require.NoError(t, os.WriteFile(path, []byte(`{"build":`), 0o644))
	v = decodeBody[Version](t, env.do(t, http.MethodGet, "/api/version", ""))
	assert.Equal(t, unavailableVersion, v)
}

func TestMetricsFallsBackToStoreStats(t *testing.T) {
	env := newTestEnv(t, Options{})
	require.NoError(t, env.engine.AddRevealedArea(context.Background(), "dungeon", 1, 1, 1))

	body := decodeBody[map[string]mapstore.Stats](t, env.do(t, http.MethodGet, "/api/debug/metrics", ""))
	assert.Equal(t, int64(1), body["store"].Saves)
}

func TestRequestIDAndCORS(t *testing.T) {
	env := newTestEnv(t, Options{CORSOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodGet, "/api/preview-map/status", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	req.Header.Set("Origin", "http://gm.local")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/fog/dungeon/reveal", nil)
	req.Header.Set("Origin", "http://gm.local")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/fog/dungeon", "")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestCompressionForLargeResponses(t *testing.T) {
	env := newTestEnv(t, Options{Compression: true})
	areas := testutil.GridAreas(30, 30, 20, 25)
	require.NoError(t, env.engine.AddRevealedAreas(context.Background(), "dungeon", areas))

	req := httptest.NewRequest(http.MethodGet, "/api/fog/dungeon", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	var state fog.State
	require.NoError(t, json.Unmarshal(raw, &state))
	assert.Len(t, state.RevealedAreas, 900)
}

func TestMutationStatus(t *testing.T) {
	status, _ := mutationStatus(fog.ErrInvalidArea)
	assert.Equal(t, http.StatusBadRequest, status)

	status, msg := mutationStatus(mapstore.ErrPersistFailed)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "failed to save fog state", msg)
}

func TestParseMapName(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"dungeon", "dungeon"},
		{"  dungeon\n", "dungeon"},
		{`"dungeon"`, "dungeon"},
		{`{"mapName":"dungeon"}`, "dungeon"},
		{`{"other":"dungeon"}`, ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseMapName([]byte(tt.body)), tt.body)
	}
}

func TestRecoveryMiddlewareLogsPanics(t *testing.T) {
	logger, buf := testutil.BufferLogger()
	handler := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), recoveryMiddleware(logger), requestIDMiddleware)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/fog/dungeon", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.Contains(t, buf.String(), "Recovered from panic in HTTP handler")
	assert.Contains(t, buf.String(), `"panic":"boom"`)
}

func TestFractionalCoordinatesAreTruncated(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	rec := env.do(t, http.MethodPost, "/api/fog/dungeon/batch",
		`[{"x":125.65,"y":25.65,"radius":25.65,"isGridCell":true,"action":"erase"}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []fog.RevealedArea{{X: 125, Y: 25, Radius: 25, IsGridCell: true}},
		env.engine.GetState(ctx, "dungeon").RevealedAreas)

	rec = env.do(t, http.MethodPost, "/api/fog/forest/reveal-point", `{"x":-10.9,"y":40.2,"radius":12.5,"isGridCell":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []fog.RevealedArea{{X: -10, Y: 40, Radius: 12}},
		env.engine.GetState(ctx, "forest").RevealedAreas)

	rec = env.do(t, http.MethodPost, "/api/fog/cave/reveal?x=10.7&y=20.2&radius=30.9", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []fog.RevealedArea{{X: 10, Y: 20, Radius: 30}},
		env.engine.GetState(ctx, "cave").RevealedAreas)

	rec = env.do(t, http.MethodPost, "/api/fog-states/keep",
		`{"mapName":"keep","revealedAreas":[{"x":0.5,"y":99.99,"radius":50.5,"isGridCell":true},{"x":7,"y":8,"radius":9}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []fog.RevealedArea{
		{X: 0, Y: 99, Radius: 50, IsGridCell: true},
		{X: 7, Y: 8, Radius: 9},
	}, env.engine.GetState(ctx, "keep").RevealedAreas)

	rec = env.do(t, http.MethodPost, "/api/fog/keep/hide-batch", `[{"x":6.5,"y":8.4,"radius":0.9}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, env.engine.GetState(ctx, "keep").RevealedAreas, 1)

	rec = env.do(t, http.MethodPost, "/api/fog/keep/reveal?x=NaN&y=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsFollowPreviewViewport(t *testing.T) {
	env := newTestEnv(t, Options{})

	defaults := decodeBody[map[string]interface{}](t, env.do(t, http.MethodGet, "/api/settings/dungeon", ""))
	assert.Equal(t, 1.0, defaults["zoom"])
	assert.Equal(t, 0.0, defaults["rotation"])

	env.do(t, http.MethodPost, "/api/preview-map", "dungeon")
	env.do(t, http.MethodPost, "/api/preview-map/viewport", `{"zoom":2.5,"rotation":180}`)

	current := decodeBody[map[string]interface{}](t, env.do(t, http.MethodGet, "/api/settings/dungeon", ""))
	assert.Equal(t, 2.5, current["zoom"])
	assert.Equal(t, 180.0, current["rotation"])
	assert.Equal(t, 0.0, current["panX"])
}

func TestManualSaveGuardHoldsAcrossEngineSaves(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(t, http.MethodPost, "/api/preview-map", "dungeon")
	env.do(t, http.MethodGet, "/api/preview-map/refresh", "")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/preview-map/fog-save", `{"inProgress":true}`).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/fog/dungeon/reveal?x=1&y=1", "").Code)

	status := decodeBody[preview.Status](t, env.do(t, http.MethodGet, "/api/preview-map/status", ""))
	assert.True(t, status.FogSaveInProgress)
	assert.False(t, status.RefreshRequested)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/preview-map/fog-save", `{"inProgress":false}`).Code)
	assert.True(t, decodeBody[bool](t, env.do(t, http.MethodGet, "/api/preview-map/refresh", "")))
}
