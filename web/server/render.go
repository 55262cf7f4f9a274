package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/df07/go-raymarcher/pkg/renderer"
)

// TileUpdate represents a single tile update sent via SSE
type TileUpdate struct {
	TileX       int    `json:"tileX"`
	TileY       int    `json:"tileY"`
	ImageData   string `json:"imageData"` // Base64 encoded PNG of just this tile
	FrameNumber int    `json:"frameNumber"`
	TileNumber  int    `json:"tileNumber"` // Current tile number in this frame (1-based)
	TotalTiles  int    `json:"totalTiles"` // Total number of tiles in the image
}

// FrameUpdate is sent when every tile of a frame has rendered
type FrameUpdate struct {
	Event          string               `json:"event"`
	RenderID       string               `json:"renderId"`
	FrameNumber    int                  `json:"frameNumber"`
	TotalFrames    int                  `json:"totalFrames"`
	RotationAngle  float64              `json:"rotationAngle"`
	ElapsedMs      int64                `json:"elapsedMs"`
	FrameMs        int64                `json:"frameMs"`
	Stats          renderer.RenderStats `json:"stats"`
	PrimitiveCount int                  `json:"primitiveCount"`
}

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "tile", "frameComplete", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// handleRender renders a frame sequence and streams tiles and frame
// completions via SSE
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	s.setSSEHeaders(w)

	ctx := r.Context()

	// Create unified SSE event channel for thread-safe writing
	sseEventChan := make(chan SSEEvent, 100)

	// Start single SSE writer goroutine
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeSSEEvents(ctx, w, sseEventChan)
	}()

	// Setup console logging and streaming
	renderID := uuid.NewString()
	consoleChan := make(chan ConsoleMessage, 50)
	logger := slog.New(NewConsoleHandler(s.logger.Handler(), consoleChan, slog.LevelInfo)).With("render", renderID)

	consoleCtx, stopConsole := context.WithCancel(ctx)
	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		s.streamConsoleMessages(consoleCtx, consoleChan, sseEventChan)
	}()

	// Every producer stops before the event channel closes, then the writer drains it
	defer func() {
		stopConsole()
		<-consoleDone
		close(sseEventChan)
		<-writerDone
	}()

	// Parse and validate request
	req, err := s.parseRenderRequest(r)
	if err != nil {
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	frameRenderer := renderer.NewFrameRenderer(renderer.FrameConfig{
		Width:    req.Width,
		Height:   req.Height,
		TileSize: DefaultTileSize,
	}, logger)
	defer frameRenderer.Close()

	logger.Info("render started",
		"scene", req.Scene,
		"size", fmt.Sprintf("%dx%d", req.Width, req.Height),
		"frames", req.Frames)

	// Start rendering and stream events
	startTime := time.Now()
	animator := renderer.Animator{Base: req.Parameters, Spin: req.Spin, Frames: req.Frames}
	frameChan, tileChan, errChan := frameRenderer.RenderSequence(ctx, animator, renderer.RenderOptions{TileUpdates: true})

	// Handle rendering events and send to unified channel
	s.handleRenderingEvents(ctx, sseEventChan, frameChan, tileChan, errChan, req, renderID, startTime)
}

// parseRenderRequest parses request parameters
func (s *Server) parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	req := &RenderRequest{}

	// Parse common scene parameters using shared function
	if err := s.parseCommonSceneParams(r, req); err != nil {
		return nil, err
	}

	var err error
	if req.Frames, err = parseIntParam(r.URL.Query(), "frames", 1, 1, maxFrames); err != nil {
		return nil, err
	}
	if req.Spin, err = parseFloatParam(r.URL.Query(), "spin", 0.05, -maxSpin, maxSpin); err != nil {
		return nil, err
	}

	// Performance warning
	if req.Width*req.Height > 800*600 && req.Frames > 100 {
		s.logger.Warn("large animated render may be slow", "width", req.Width, "height", req.Height, "frames", req.Frames)
	}

	return req, nil
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeSSEEvents handles writing all SSE events in a single goroutine (thread-safe)
func (s *Server) writeSSEEvents(ctx context.Context, w http.ResponseWriter, sseEventChan chan SSEEvent) {
	for {
		select {
		case event, ok := <-sseEventChan:
			if !ok {
				// Channel closed
				return
			}

			// Write SSE event
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
				// Client disconnected during write
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}

		case <-ctx.Done():
			// Client disconnected
			return
		}
	}
}

// streamConsoleMessages handles the console message streaming goroutine
func (s *Server) streamConsoleMessages(ctx context.Context, consoleChan chan ConsoleMessage, sseEventChan chan SSEEvent) {
	for {
		select {
		case consoleMsg := <-consoleChan:
			data, err := json.Marshal(consoleMsg)
			if err != nil {
				s.logger.Error("error marshaling console message", "error", err)
				continue
			}

			// Send to unified SSE channel, skipping the message when it is full
			select {
			case sseEventChan <- SSEEvent{Type: "console", Data: string(data)}:
			case <-ctx.Done():
				return
			default:
			}

		case <-ctx.Done():
			return
		}
	}
}

// handleRenderingEvents processes the main rendering event loop
func (s *Server) handleRenderingEvents(ctx context.Context, sseEventChan chan SSEEvent,
	frameChan <-chan renderer.FrameResult, tileChan <-chan renderer.TileCompletionResult, errChan <-chan error,
	req *RenderRequest, renderID string, startTime time.Time) {

	// Drain until every channel has closed so no trailing frame is lost
	for frameChan != nil || tileChan != nil || errChan != nil {
		select {
		case frameResult, ok := <-frameChan:
			if !ok {
				frameChan = nil
				continue
			}
			s.handleFrameComplete(ctx, sseEventChan, frameResult, req, renderID, startTime)

		case tileResult, ok := <-tileChan:
			if !ok {
				tileChan = nil
				continue
			}
			s.handleTileUpdate(ctx, sseEventChan, tileResult)

		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			if err != nil {
				s.handleError(ctx, sseEventChan, fmt.Sprintf("Rendering failed: %v", err))
				return
			}

		case <-ctx.Done():
			// Client disconnected
			return
		}
	}

	// Send completion event
	select {
	case sseEventChan <- SSEEvent{Type: "complete", Data: "Rendering completed"}:
	case <-ctx.Done():
	}
}

// handleFrameComplete processes and sends frame completion events
func (s *Server) handleFrameComplete(ctx context.Context, sseEventChan chan SSEEvent, frameResult renderer.FrameResult, req *RenderRequest, renderID string, startTime time.Time) {
	update := FrameUpdate{
		Event:          "frameComplete",
		RenderID:       renderID,
		FrameNumber:    frameResult.FrameNumber,
		TotalFrames:    req.Frames,
		RotationAngle:  frameResult.Parameters.RotationAngle,
		ElapsedMs:      time.Since(startTime).Milliseconds(),
		FrameMs:        frameResult.Duration.Milliseconds(),
		Stats:          frameResult.Stats,
		PrimitiveCount: len(frameResult.Parameters.Primitives),
	}

	data, err := json.Marshal(update)
	if err != nil {
		s.logger.Error("error marshaling frame update", "error", err)
		return
	}

	select {
	case sseEventChan <- SSEEvent{Type: "frameComplete", Data: string(data)}:
	case <-ctx.Done():
	}
}

// handleTileUpdate processes and sends tile update events
func (s *Server) handleTileUpdate(ctx context.Context, sseEventChan chan SSEEvent, tileResult renderer.TileCompletionResult) {
	// Convert tile image to base64 PNG
	tileData, err := imageToBase64PNG(tileResult.TileImage)
	if err != nil {
		s.logger.Error("error encoding tile image", "tileX", tileResult.TileX, "tileY", tileResult.TileY, "error", err)
		return
	}

	update := TileUpdate{
		TileX:       tileResult.TileX,
		TileY:       tileResult.TileY,
		ImageData:   tileData,
		FrameNumber: tileResult.FrameNumber,
		TileNumber:  tileResult.TileNumber,
		TotalTiles:  tileResult.TotalTiles,
	}

	data, err := json.Marshal(update)
	if err != nil {
		s.logger.Error("error marshaling tile update", "error", err)
		return
	}

	select {
	case sseEventChan <- SSEEvent{Type: "tile", Data: string(data)}:
	case <-ctx.Done():
	}
}

// imageToBase64PNG converts an image to base64-encoded PNG
func imageToBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// handleError sends an error event to the SSE channel
func (s *Server) handleError(ctx context.Context, sseEventChan chan SSEEvent, message string) {
	select {
	case sseEventChan <- SSEEvent{Type: "error", Data: message}:
	case <-ctx.Done():
		// Client disconnected, don't block
	}
}
