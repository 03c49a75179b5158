package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-progressive-renderpass/pkg/backend"
	"github.com/df07/go-progressive-renderpass/pkg/core"
	"github.com/df07/go-progressive-renderpass/pkg/renderpass"
	"github.com/df07/go-progressive-renderpass/pkg/settings"
)

func newTestServer(t *testing.T, values map[string]any) *Server {
	t.Helper()

	store := settings.NewStore()
	store.SetAll(map[string]any{
		settings.KeyConvergedSamplesPerPixel: 4,
		settings.KeyIntegratorName:           backend.IntegratorDirectLighting,
	})
	store.SetAll(values)

	config := DefaultConfig()
	config.Width = 16
	config.Height = 12
	config.FPS = 100
	config.FrameInterval = 10 * time.Millisecond
	config.Pass = renderpass.Config{}
	config.Backend.TileSize = 8
	config.Backend.NumWorkers = 2
	config.Backend.MaxPasses = 3

	s, err := NewServer(config, store, core.NewDiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close(context.Background())
	})
	return s
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) Status {
	t.Helper()
	var status Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	return status
}

func TestNewServer_RejectsEmptyResolution(t *testing.T) {
	config := DefaultConfig()
	config.Width = 0
	_, err := NewServer(config, settings.NewStore(), core.NewDiscardLogger())
	assert.Error(t, err)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s.Router(), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleCamera(t *testing.T) {
	s := newTestServer(t, nil)
	router := s.Router()
	before, ok := s.cameras.Camera(CameraPath)
	require.True(t, ok)

	rec := doRequest(t, router, http.MethodPost, "/api/camera", `{"yaw": 30, "pitch": 120}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	status := decodeStatus(t, rec)
	assert.Equal(t, 30.0, status.Orbit.Yaw)
	assert.Equal(t, 89.0, status.Orbit.Pitch, "pitch is clamped")
	assert.Equal(t, DefaultOrbit().Distance, status.Orbit.Distance, "unset fields are kept")

	// The edit is applied by the render loop
	unchanged, _ := s.cameras.Camera(CameraPath)
	assert.Equal(t, before.Transform, unchanged.Transform)

	s.Loop().Tick(context.Background())
	after, _ := s.cameras.Camera(CameraPath)
	assert.NotEqual(t, before.Transform, after.Transform)

	eye := after.Transform.Col(3).Vec3()
	assert.InDelta(t, DefaultOrbit().Distance, eye.Sub(DefaultOrbit().Target).Len(), 1e-9)
}

func TestHandleCamera_InvalidRequests(t *testing.T) {
	s := newTestServer(t, nil)
	router := s.Router()

	rec := doRequest(t, router, http.MethodPost, "/api/camera", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/camera", `{"distance": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "distance must be positive")

	rec = doRequest(t, router, http.MethodGet, "/api/camera", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSettings(t *testing.T) {
	s := newTestServer(t, nil)
	router := s.Router()
	version := s.store.Version()

	rec := doRequest(t, router, http.MethodPost, "/api/settings", `{"convergedSamplesPerPixel": 8, "ri:hider:jitter": true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"updated":2}`, rec.Body.String())
	assert.Equal(t, version, s.store.Version(), "settings are applied by the render loop")

	s.Loop().Tick(context.Background())
	assert.Equal(t, version+1, s.store.Version())
	assert.Equal(t, 8, settings.Int(s.store, settings.KeyConvergedSamplesPerPixel, 0))

	rec = doRequest(t, router, http.MethodPost, "/api/settings", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSettings_YAML(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader("convergedVariance: 0.25\n"))
	req.Header.Set("Content-Type", "application/yaml; charset=utf-8")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	s.Loop().Tick(context.Background())
	variance, ok := settings.FloatOK(s.store, settings.KeyConvergedVariance)
	require.True(t, ok)
	assert.Equal(t, 0.25, variance)

	req = httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader("  \n"))
	req.Header.Set("Content-Type", "application/yaml")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleScene(t *testing.T) {
	s := newTestServer(t, nil)
	router := s.Router()
	version := s.session.SceneVersion()
	require.True(t, s.scene.Ground)

	rec := doRequest(t, router, http.MethodPost, "/api/scene", `{"ground": false, "sunDirection": [0, 2, 0]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, s.scene.Ground, "scene edits are applied by the render loop")

	s.Loop().Tick(context.Background())
	assert.False(t, s.scene.Ground)
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, s.scene.SunDirection)
	assert.Greater(t, s.session.SceneVersion(), version, "edits restart the render")

	rec = doRequest(t, router, http.MethodPost, "/api/scene", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/scene", `{"sunDirection": [0, 0, 0]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePauseAndResume(t *testing.T) {
	s := newTestServer(t, nil)
	router := s.Router()

	rec := doRequest(t, router, http.MethodPost, "/api/pause", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeStatus(t, rec).Paused)

	// A paused session does not render
	s.Loop().Tick(context.Background())
	assert.False(t, s.session.IsSampling())

	rec = doRequest(t, router, http.MethodPost, "/api/resume", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeStatus(t, rec).Paused)
}

func TestHandleMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	s.Loop().Tick(context.Background())

	rec := doRequest(t, s.Router(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "renderpass_halts")
	assert.Contains(t, body, "renderpass_restarts")
}

func TestRunLoop_Converges(t *testing.T) {
	s := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Loop().Run(ctx) }()

	assert.Eventually(t, func() bool { return s.Status().Converged }, 10*time.Second, 10*time.Millisecond)

	img := s.color.Image()
	nonBlack := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 0 || img.Pix[i+1] > 0 || img.Pix[i+2] > 0 {
			nonBlack++
		}
	}
	assert.Greater(t, nonBlack, 0, "converged image is not black")

	cancel()
	require.NoError(t, <-done)
}

func readEvent(t *testing.T, scanner *bufio.Scanner, eventType string) string {
	t.Helper()
	current := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && current == eventType:
			return strings.TrimPrefix(line, "data: ")
		}
	}
	t.Fatalf("stream ended before a %s event: %v", eventType, scanner.Err())
	return ""
}

func TestHandleRender_StreamsFrames(t *testing.T) {
	s := newTestServer(t, nil)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/render?width=8", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var first FrameUpdate
	require.NoError(t, json.Unmarshal([]byte(readEvent(t, scanner, "frame")), &first))
	assert.Equal(t, 1, first.Sequence)
	assert.NotEmpty(t, first.StreamID)
	assert.Equal(t, backend.AovColor, first.Aov)
	assert.Equal(t, 8, first.Width)
	assert.Equal(t, 6, first.Height, "preview keeps the aspect ratio")

	data, err := base64.StdEncoding.DecodeString(first.ImageData)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	var second FrameUpdate
	require.NoError(t, json.Unmarshal([]byte(readEvent(t, scanner, "frame")), &second))
	assert.Equal(t, first.StreamID, second.StreamID)
	assert.Equal(t, 2, second.Sequence)
}

func TestHandleRender_InvalidRequest(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s.Router(), http.MethodGet, "/api/render?aov=normals", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s.Router(), http.MethodGet, "/api/render?width=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewImage(t *testing.T) {
	s := newTestServer(t, nil)
	img := s.color.Image()

	assert.Same(t, img, previewImage(img, 0), "zero width keeps the full image")
	assert.Same(t, img, previewImage(img, 32), "previews never upscale")

	preview := previewImage(img, 4)
	assert.Equal(t, 4, preview.Bounds().Dx())
	assert.Equal(t, 3, preview.Bounds().Dy())
}

func TestOrbit_Camera(t *testing.T) {
	orbit := Orbit{Yaw: 90, Pitch: 0, Distance: 2, Target: mgl64.Vec3{0, 0, 0}}
	cam := orbit.Camera("/cam", 1)

	eye := cam.Transform.Col(3).Vec3()
	assert.InDelta(t, 2.0, eye.X(), 1e-9)
	assert.InDelta(t, 0.0, eye.Y(), 1e-9)
	assert.InDelta(t, 0.0, eye.Z(), 1e-9)

	// Looking down -Z in camera space points at the target
	forward := cam.Transform.Mul4x1(mgl64.Vec4{0, 0, -1, 0}).Vec3()
	assert.InDelta(t, -1.0, forward.X(), 1e-9)
}
