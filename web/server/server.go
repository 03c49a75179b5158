package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/df07/go-progressive-renderpass/pkg/backend"
	"github.com/df07/go-progressive-renderpass/pkg/camera"
	"github.com/df07/go-progressive-renderpass/pkg/core"
	"github.com/df07/go-progressive-renderpass/pkg/framebuffer"
	"github.com/df07/go-progressive-renderpass/pkg/loop"
	"github.com/df07/go-progressive-renderpass/pkg/renderpass"
	"github.com/df07/go-progressive-renderpass/pkg/settings"
)

// Scene paths used by the interactive session
const (
	CameraPath      = "/cameras/main"
	ColorBufferPath = "/buffers/color"
	DepthBufferPath = "/buffers/depth"
)

// Config contains the web server configuration
type Config struct {
	Port          int
	Width         int
	Height        int
	FPS           int           // Render pass refresh rate
	FrameInterval time.Duration // Time between two streamed frames
	Pass          renderpass.Config
	Backend       backend.Config
}

// DefaultConfig returns sensible default values
func DefaultConfig() Config {
	return Config{
		Port:          8080,
		Width:         400,
		Height:        300,
		FPS:           loop.DefaultFPS,
		FrameInterval: 250 * time.Millisecond,
		Pass:          renderpass.Config{EnableQuickIntegrate: true},
		Backend:       backend.DefaultConfig(),
	}
}

// Orbit places the interactive camera on a sphere around a target.
// Angles are in degrees.
type Orbit struct {
	Yaw      float64    `json:"yaw"`
	Pitch    float64    `json:"pitch"`
	Distance float64    `json:"distance"`
	Target   mgl64.Vec3 `json:"target"`
}

// DefaultOrbit frames the demo scene
func DefaultOrbit() Orbit {
	return Orbit{Yaw: 0, Pitch: 8, Distance: 6, Target: mgl64.Vec3{0, 1, -3.3}}
}

// Camera returns the camera looking at the orbit target
func (o Orbit) Camera(path string, aspect float64) *camera.Camera {
	yaw := mgl64.DegToRad(o.Yaw)
	pitch := mgl64.DegToRad(o.Pitch)
	offset := mgl64.Vec3{
		math.Sin(yaw) * math.Cos(pitch),
		math.Sin(pitch),
		math.Cos(yaw) * math.Cos(pitch),
	}
	eye := o.Target.Add(offset.Mul(o.Distance))
	return camera.LookAt(path, eye, o.Target, mgl64.Vec3{0, 1, 0}, 40, aspect)
}

// CameraRequest moves the orbit camera. Unset fields keep their value.
type CameraRequest struct {
	Yaw      *float64 `json:"yaw"`
	Pitch    *float64 `json:"pitch"`
	Distance *float64 `json:"distance"`
}

// SceneRequest edits the demo scene. Unset fields keep their value.
type SceneRequest struct {
	Ground       *bool       `json:"ground"`
	SunDirection *mgl64.Vec3 `json:"sunDirection"` // towards the sun, normalised
}

// Status is the session summary returned by the control endpoints
type Status struct {
	SessionID    string `json:"sessionId"`
	Paused       bool   `json:"paused"`
	Sampling     bool   `json:"sampling"`
	Converged    bool   `json:"converged"`
	SceneVersion int64  `json:"sceneVersion"`
	Frames       uint64 `json:"frames"`
	LastError    string `json:"lastError,omitempty"` // error of the most recent refresh
	Orbit        Orbit  `json:"orbit"`
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithClock sets the clock driving the render loop, the frame stream and
// the interim integrator timeout
func WithClock(clk clock.WithTicker) ServerOption {
	return func(s *Server) {
		s.clock = clk
	}
}

// Server hosts one interactive render session over HTTP
type Server struct {
	config    Config
	sessionID string
	clock     clock.WithTicker
	logger    core.Logger
	console   *Console

	store   *settings.Store
	cameras *camera.Registry
	buffers *framebuffer.Registry
	color   *framebuffer.RenderBuffer
	depth   *framebuffer.RenderBuffer

	scene      *backend.SphereScene
	session    *backend.Progressive
	controller *renderpass.Controller
	loop       *loop.Loop
	metrics    *metricsExporter

	mu    sync.Mutex
	orbit Orbit
}

// NewServer creates the interactive session and its HTTP surface
func NewServer(config Config, store *settings.Store, logger core.Logger, opts ...ServerOption) (*Server, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("invalid resolution %dx%d", config.Width, config.Height)
	}
	if config.FrameInterval <= 0 {
		config.FrameInterval = DefaultConfig().FrameInterval
	}

	s := &Server{
		config:    config,
		sessionID: uuid.NewString(),
		clock:     clock.RealClock{},
		console:   NewConsole(),
		store:     store,
		cameras:   camera.NewRegistry(),
		buffers:   framebuffer.NewRegistry(),
		color:     framebuffer.NewRenderBuffer(ColorBufferPath),
		depth:     framebuffer.NewRenderBuffer(DepthBufferPath),
		orbit:     DefaultOrbit(),
		scene:     backend.NewDefaultScene(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = NewWebLogger(s.sessionID, logger, s.console)

	metrics, err := newMetricsExporter()
	if err != nil {
		return nil, err
	}
	s.metrics = metrics
	passMetrics, err := renderpass.NewMetrics(metrics.provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create render pass metrics: %w", err)
	}

	s.color.Allocate(config.Width, config.Height, framebuffer.FormatFloat32Vec4)
	s.depth.Allocate(config.Width, config.Height, framebuffer.FormatFloat32)
	s.buffers.Insert(s.color)
	s.buffers.Insert(s.depth)
	s.cameras.Set(s.orbit.Camera(CameraPath, s.aspect()))

	backendConfig := config.Backend
	backendConfig.Interactive = true
	s.session = backend.NewProgressive(s.scene, backendConfig, s.logger)
	s.controller = renderpass.New(s.session, store, s.cameras, s.buffers, config.Pass,
		renderpass.WithLogger(s.logger),
		renderpass.WithClock(s.clock),
		renderpass.WithMetrics(passMetrics),
	)
	s.cameras.Subscribe(s.controller.CameraContext().MarkCameraInvalid)
	s.loop = loop.New(loop.Config{FPS: config.FPS}, s.controller, s.passState, s.clock, s.logger)

	return s, nil
}

// SessionID identifies this interactive session
func (s *Server) SessionID() string {
	return s.sessionID
}

// Loop gets the render loop driving the session
func (s *Server) Loop() *loop.Loop {
	return s.loop
}

func (s *Server) aspect() float64 {
	return float64(s.config.Width) / float64(s.config.Height)
}

// passState binds the color and depth buffers for the next refresh
func (s *Server) passState() *renderpass.PassState {
	return &renderpass.PassState{
		AovBindings: []framebuffer.AovBinding{
			{Name: backend.AovColor, Format: framebuffer.FormatFloat32Vec4, BufferID: ColorBufferPath},
			{Name: backend.AovDepth, Format: framebuffer.FormatFloat32, BufferID: DepthBufferPath, ClearValue: [4]float64{1}},
		},
		CameraPath:   CameraPath,
		Framing:      camera.NewFraming(image.Rect(0, 0, s.config.Width, s.config.Height)),
		WindowPolicy: camera.Fit,
	}
}

// Router creates the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/render", s.handleRender)
	r.Post("/api/camera", s.handleCamera)
	r.Post("/api/scene", s.handleScene)
	r.Post("/api/settings", s.handleSettings)
	r.Post("/api/pause", s.handlePause)
	r.Post("/api/resume", s.handleResume)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler)

	return r
}

// Start serves HTTP and runs the render loop until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.loop.Run(gctx)
	})
	g.Go(func() error {
		s.logger.Printf("Starting web server on http://localhost%s\n", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close stops rendering and flushes metrics
func (s *Server) Close(ctx context.Context) error {
	s.controller.Close()
	s.session.Close()
	return s.metrics.shutdown(ctx)
}

// Status summarises the session
func (s *Server) Status() Status {
	s.mu.Lock()
	orbit := s.orbit
	s.mu.Unlock()

	lastError := ""
	if err := s.loop.LastError(); err != nil {
		lastError = err.Error()
	}
	return Status{
		SessionID:    s.sessionID,
		Paused:       s.session.IsPauseRequested(),
		Sampling:     s.session.IsSampling(),
		Converged:    s.color.IsConverged(),
		SceneVersion: s.session.SceneVersion(),
		Frames:       s.loop.Frames(),
		LastError:    lastError,
		Orbit:        orbit,
	}
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debugf("HTTP %s %s %d %s %s\n",
			r.Method,
			r.URL.Path,
			ww.Status(),
			s.clock.Since(start),
			middleware.GetReqID(r.Context()),
		)
	})
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

// handleCamera moves the orbit camera. The camera edit is applied by the
// render loop before its next refresh.
func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	var req CameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("invalid camera request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Distance != nil && *req.Distance <= 0 {
		writeError(w, "distance must be positive", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if req.Yaw != nil {
		s.orbit.Yaw = math.Mod(*req.Yaw, 360)
	}
	if req.Pitch != nil {
		s.orbit.Pitch = math.Max(-89, math.Min(89, *req.Pitch))
	}
	if req.Distance != nil {
		s.orbit.Distance = *req.Distance
	}
	cam := s.orbit.Camera(CameraPath, s.aspect())
	s.mu.Unlock()

	s.loop.Submit(func() {
		s.cameras.Set(cam)
	})
	writeJSON(w, http.StatusAccepted, s.Status())
}

// handleScene edits the scene. The edit stops the render and bumps the scene
// version, so the next refresh restarts sampling.
func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	var req SceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("invalid scene request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Ground == nil && req.SunDirection == nil {
		writeError(w, "no scene edits given", http.StatusBadRequest)
		return
	}
	if req.SunDirection != nil && req.SunDirection.Len() == 0 {
		writeError(w, "sun direction must not be zero", http.StatusBadRequest)
		return
	}

	s.loop.Submit(func() {
		s.session.Edit(func() {
			if req.Ground != nil {
				s.scene.Ground = *req.Ground
			}
			if req.SunDirection != nil {
				s.scene.SunDirection = req.SunDirection.Normalize()
			}
		})
	})
	writeJSON(w, http.StatusAccepted, s.Status())
}

// handleSettings merges render settings from a JSON object, or a YAML
// document when sent as application/yaml. Settings are applied by the render
// loop before its next refresh.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/yaml" {
		s.handleSettingsYAML(w, r)
		return
	}

	var values map[string]any
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, fmt.Sprintf("invalid settings: %v", err), http.StatusBadRequest)
		return
	}
	if len(values) == 0 {
		writeError(w, "no settings given", http.StatusBadRequest)
		return
	}

	s.loop.Submit(func() {
		s.store.SetAll(values)
	})
	writeJSON(w, http.StatusAccepted, map[string]int{"updated": len(values)})
}

func (s *Server) handleSettingsYAML(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, fmt.Sprintf("failed to read settings: %v", err), http.StatusBadRequest)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, "no settings given", http.StatusBadRequest)
		return
	}

	s.loop.Submit(func() {
		if err := s.store.MergeYAML(bytes.NewReader(body)); err != nil {
			s.logger.Warnf("Ignoring settings: %v\n", err)
		}
	})
	writeJSON(w, http.StatusAccepted, map[string]int{"bytes": len(body)})
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.session.RequestPause()
	s.logger.Printf("Render paused\n")
	writeJSON(w, http.StatusOK, s.Status())
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.session.Resume()
	s.logger.Printf("Render resumed\n")
	writeJSON(w, http.StatusOK, s.Status())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}
