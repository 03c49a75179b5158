package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/df07/go-progressive-renderpass/pkg/backend"
	"github.com/df07/go-progressive-renderpass/pkg/framebuffer"
)

// StreamRequest selects what a render stream shows
type StreamRequest struct {
	Aov   string // "color" or "depth"
	Width int    // Preview width, 0 streams the full resolution
}

// FrameUpdate is a single frame sent via SSE
type FrameUpdate struct {
	StreamID     string `json:"streamId"`
	Sequence     int    `json:"sequence"`
	Aov          string `json:"aov"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	ImageData    string `json:"imageData"` // Base64 encoded PNG
	Converged    bool   `json:"converged"`
	Paused       bool   `json:"paused"`
	Sampling     bool   `json:"sampling"`
	SceneVersion int64  `json:"sceneVersion"`
	PassNumber   int    `json:"passNumber"`
	TotalPasses  int    `json:"totalPasses"`
	Stats        Stats  `json:"stats"`
	ElapsedMs    int64  `json:"elapsedMs"`
}

// Stats represents render statistics
type Stats struct {
	TotalPixels    int     `json:"totalPixels"`
	TotalSamples   int     `json:"totalSamples"`
	AverageSamples float64 `json:"averageSamples"`
	MaxSamples     int     `json:"maxSamples"`
	MinSamples     int     `json:"minSamples"`
	MaxSamplesUsed int     `json:"maxSamplesUsed"`
}

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "frame", "error"
	Data string `json:"data"` // JSON-encoded data
}

// handleRender streams the interactive render via SSE. A frame is sent on
// every frame interval until the render converged; a converged image is
// sent once.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	req, err := s.parseStreamRequest(r)
	if err != nil {
		writeError(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	s.setSSEHeaders(w)
	ctx := r.Context()
	streamID := uuid.NewString()

	// Create unified SSE event channel for thread-safe writing
	sseEventChan := make(chan SSEEvent, 100)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeSSEEvents(ctx, w, sseEventChan)
	}()

	consoleChan, unsubscribe := s.console.Subscribe(50)
	go s.streamConsoleMessages(ctx, consoleChan, sseEventChan)

	s.logger.Debugf("Render stream %s opened (aov %s)\n", streamID, req.Aov)
	s.streamFrames(ctx, streamID, req, sseEventChan)

	unsubscribe()
	<-writerDone
	s.logger.Debugf("Render stream %s closed\n", streamID)
}

// parseStreamRequest parses request parameters
func (s *Server) parseStreamRequest(r *http.Request) (*StreamRequest, error) {
	req := &StreamRequest{Aov: backend.AovColor}
	if aov := r.URL.Query().Get("aov"); aov != "" {
		req.Aov = aov
	}
	if req.Aov != backend.AovColor && req.Aov != backend.AovDepth {
		return nil, fmt.Errorf("unknown aov %q", req.Aov)
	}

	var err error
	if req.Width, err = parseIntParam(r.URL.Query(), "width", 0, 0, 2000); err != nil {
		return nil, err
	}
	return req, nil
}

// streamFrames sends frames until the client disconnects
func (s *Server) streamFrames(ctx context.Context, streamID string, req *StreamRequest, sseEventChan chan<- SSEEvent) {
	ticker := s.clock.NewTicker(s.config.FrameInterval)
	defer ticker.Stop()

	buffer := s.color
	if req.Aov == backend.AovDepth {
		buffer = s.depth
	}

	start := s.clock.Now()
	sequence := 0
	sentConverged := false
	for {
		converged := buffer.IsConverged()
		if !converged || !sentConverged {
			update, err := s.frameUpdate(buffer, req)
			if err != nil {
				s.logger.Warnf("Error encoding frame: %v\n", err)
			} else {
				sequence++
				update.StreamID = streamID
				update.Sequence = sequence
				update.ElapsedMs = s.clock.Since(start).Milliseconds()
				s.sendEvent(ctx, sseEventChan, "frame", update)
			}
			sentConverged = converged
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
	}
}

// frameUpdate snapshots a render buffer and the session progress
func (s *Server) frameUpdate(buffer *framebuffer.RenderBuffer, req *StreamRequest) (FrameUpdate, error) {
	img := previewImage(buffer.Image(), req.Width)
	imageData, err := s.imageToBase64PNG(img)
	if err != nil {
		return FrameUpdate{}, err
	}

	progress := s.session.Progress()
	return FrameUpdate{
		Aov:          req.Aov,
		Width:        img.Bounds().Dx(),
		Height:       img.Bounds().Dy(),
		ImageData:    imageData,
		Converged:    buffer.IsConverged(),
		Paused:       s.session.IsPauseRequested(),
		Sampling:     s.session.IsSampling(),
		SceneVersion: s.session.SceneVersion(),
		PassNumber:   progress.Pass,
		TotalPasses:  progress.TotalPasses,
		Stats: Stats{
			TotalPixels:    progress.Stats.TotalPixels,
			TotalSamples:   progress.Stats.TotalSamples,
			AverageSamples: progress.Stats.AverageSamples,
			MaxSamples:     progress.Stats.MaxSamples,
			MinSamples:     progress.Stats.MinSamples,
			MaxSamplesUsed: progress.Stats.MaxSamplesUsed,
		},
	}, nil
}

// previewImage scales img to width, keeping the aspect ratio
func previewImage(img *image.RGBA, width int) image.Image {
	bounds := img.Bounds()
	if width <= 0 || width >= bounds.Dx() || bounds.Dx() == 0 {
		return img
	}
	height := max(1, bounds.Dy()*width/bounds.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeSSEEvents handles writing all SSE events in a single goroutine (thread-safe)
func (s *Server) writeSSEEvents(ctx context.Context, w http.ResponseWriter, sseEventChan <-chan SSEEvent) {
	flusher := w.(http.Flusher)
	for {
		select {
		case event := <-sseEventChan:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
				// Client disconnected during write
				return
			}
			flusher.Flush()

		case <-ctx.Done():
			// Client disconnected
			return
		}
	}
}

// streamConsoleMessages forwards console messages to the SSE channel
func (s *Server) streamConsoleMessages(ctx context.Context, consoleChan <-chan ConsoleMessage, sseEventChan chan<- SSEEvent) {
	for msg := range consoleChan {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}

		select {
		case sseEventChan <- SSEEvent{Type: "console", Data: string(data)}:
		case <-ctx.Done():
			return
		default:
			// Channel full, skip message to avoid blocking
		}
	}
}

// sendEvent marshals data and queues it on the SSE channel
func (s *Server) sendEvent(ctx context.Context, sseEventChan chan<- SSEEvent, eventType string, data any) {
	encoded, err := json.Marshal(data)
	if err != nil {
		s.logger.Warnf("Error marshaling %s event: %v\n", eventType, err)
		return
	}

	select {
	case sseEventChan <- SSEEvent{Type: eventType, Data: string(encoded)}:
	case <-ctx.Done():
	}
}

// imageToBase64PNG converts an image to base64-encoded PNG
func (s *Server) imageToBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
