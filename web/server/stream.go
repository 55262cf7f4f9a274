package server

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/df07/go-raymarcher/pkg/renderer"
)

// Stream frame layout: magic, frame number, width, height, payload length,
// followed by the zstd-compressed RGBA pixels
const (
	FrameMagic      = "RMF1"
	FrameHeaderSize = 16
)

const (
	pausePollInterval = 50 * time.Millisecond
	streamWriteWait   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// FrameHeader describes one binary stream message
type FrameHeader struct {
	FrameNumber uint32
	Width       uint16
	Height      uint16
	PayloadSize uint32
}

// StreamControl is a client message adjusting the stream. Absent fields are
// left unchanged and apply from the next frame on.
type StreamControl struct {
	RotationAngle *float64 `json:"rotationAngle,omitempty"`
	Spin          *float64 `json:"spin,omitempty"`
	Pause         *bool    `json:"pause,omitempty"`
}

// streamState is the animation state shared by the control reader and the
// render loop
type streamState struct {
	mu     sync.Mutex
	angle  float64
	spin   float64
	paused bool
}

func (st *streamState) apply(control StreamControl) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if control.RotationAngle != nil {
		st.angle = *control.RotationAngle
	}
	if control.Spin != nil {
		st.spin = max(-maxSpin, min(maxSpin, *control.Spin))
	}
	if control.Pause != nil {
		st.paused = *control.Pause
	}
}

// next returns the angle of the next frame and advances the animation, or
// false while paused
func (st *streamState) next() (float64, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.paused {
		return 0, false
	}
	angle := st.angle
	st.angle += st.spin
	return angle, true
}

// EncodeFrame packs an RGBA image into a stream message
func EncodeFrame(encoder *zstd.Encoder, frameNumber int, img *image.RGBA) ([]byte, error) {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	if width > 0xFFFF || height > 0xFFFF {
		return nil, fmt.Errorf("frame %dx%d too large to stream", width, height)
	}

	// Compact the pixels in case img is a sub-image
	pixels := img.Pix
	if img.Stride != 4*width || len(pixels) != 4*width*height {
		pixels = make([]byte, 0, 4*width*height)
		for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
			row := img.PixOffset(img.Rect.Min.X, y)
			pixels = append(pixels, img.Pix[row:row+4*width]...)
		}
	}

	message := make([]byte, FrameHeaderSize, FrameHeaderSize+len(pixels)/4)
	message = encoder.EncodeAll(pixels, message)

	copy(message[0:4], FrameMagic)
	binary.LittleEndian.PutUint32(message[4:8], uint32(frameNumber))
	binary.LittleEndian.PutUint16(message[8:10], uint16(width))
	binary.LittleEndian.PutUint16(message[10:12], uint16(height))
	binary.LittleEndian.PutUint32(message[12:16], uint32(len(message)-FrameHeaderSize))
	return message, nil
}

// DecodeFrameHeader parses the fixed header of a stream message
func DecodeFrameHeader(message []byte) (FrameHeader, error) {
	if len(message) < FrameHeaderSize {
		return FrameHeader{}, fmt.Errorf("frame message too short: %d bytes", len(message))
	}
	if string(message[0:4]) != FrameMagic {
		return FrameHeader{}, fmt.Errorf("bad frame magic %q", message[0:4])
	}
	header := FrameHeader{
		FrameNumber: binary.LittleEndian.Uint32(message[4:8]),
		Width:       binary.LittleEndian.Uint16(message[8:10]),
		Height:      binary.LittleEndian.Uint16(message[10:12]),
		PayloadSize: binary.LittleEndian.Uint32(message[12:16]),
	}
	if int(header.PayloadSize) != len(message)-FrameHeaderSize {
		return FrameHeader{}, fmt.Errorf("frame payload is %d bytes, header says %d", len(message)-FrameHeaderSize, header.PayloadSize)
	}
	return header, nil
}

// DecodeFrame unpacks a stream message into an image
func DecodeFrame(decoder *zstd.Decoder, message []byte) (FrameHeader, *image.RGBA, error) {
	header, err := DecodeFrameHeader(message)
	if err != nil {
		return FrameHeader{}, nil, err
	}

	pixels, err := decoder.DecodeAll(message[FrameHeaderSize:], nil)
	if err != nil {
		return FrameHeader{}, nil, fmt.Errorf("failed to decompress frame %d: %w", header.FrameNumber, err)
	}
	width, height := int(header.Width), int(header.Height)
	if len(pixels) != 4*width*height {
		return FrameHeader{}, nil, fmt.Errorf("frame %d has %d pixel bytes, want %d", header.FrameNumber, len(pixels), 4*width*height)
	}

	img := &image.RGBA{Pix: pixels, Stride: 4 * width, Rect: image.Rect(0, 0, width, height)}
	return header, img, nil
}

// handleStream renders frames continuously and sends them over a websocket.
// The client steers the animation with StreamControl JSON messages.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	req := &RenderRequest{}
	if err := s.parseCommonSceneParams(r, req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid scene parameters: "+err.Error())
		return
	}
	var err error
	if req.Frames, err = parseIntParam(r.URL.Query(), "frames", 0, 0, maxFrames); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Spin, err = parseFloatParam(r.URL.Query(), "spin", 0.05, -maxSpin, maxSpin); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := s.logger.With("stream", uuid.NewString())
	logger.Info("stream started", "scene", req.Scene, "size", fmt.Sprintf("%dx%d", req.Width, req.Height))

	if err := s.runStream(r.Context(), conn, req, logger); err != nil {
		logger.Warn("stream ended", "error", err)
		return
	}
	logger.Info("stream ended")
}

// runStream runs the render loop and the control reader until the client
// leaves or the requested number of frames has been sent
func (s *Server) runStream(ctx context.Context, conn *websocket.Conn, req *RenderRequest, logger *slog.Logger) error {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return err
	}
	defer encoder.Close()

	frameRenderer := renderer.NewFrameRenderer(renderer.FrameConfig{
		Width:    req.Width,
		Height:   req.Height,
		TileSize: DefaultTileSize,
	}, logger)
	defer frameRenderer.Close()

	state := &streamState{angle: req.Parameters.RotationAngle, spin: req.Spin}
	g, ctx := errgroup.WithContext(ctx)
	var finished sync.Once
	done := make(chan struct{})

	// Control reader
	g.Go(func() error {
		for {
			var control StreamControl
			if err := conn.ReadJSON(&control); err != nil {
				select {
				case <-done:
					return nil
				default:
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return errStreamClosed
				}
				return err
			}
			state.apply(control)
		}
	})

	// Render loop, the only writer on the connection
	g.Go(func() error {
		defer finished.Do(func() { close(done) })

		for n := 0; req.Frames == 0 || n < req.Frames; {
			angle, ok := state.next()
			if !ok {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(pausePollInterval):
				}
				continue
			}

			params := req.Parameters.Clone()
			params.RotationAngle = angle
			result, err := frameRenderer.RenderFrame(ctx, n, params, nil)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			message, err := EncodeFrame(encoder, n, result.Image)
			if err != nil {
				return err
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return err
			}
			n++
		}

		// All frames sent; closing the connection releases the reader
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream complete"),
			time.Now().Add(time.Second))
		return nil
	})

	// Unblock the reader once the render loop is done for any reason
	go func() {
		select {
		case <-done:
		case <-ctx.Done():
			finished.Do(func() { close(done) })
		}
		conn.SetReadDeadline(time.Now())
	}()

	if err := g.Wait(); err != nil && !errors.Is(err, errStreamClosed) {
		return err
	}
	return nil
}

var errStreamClosed = errors.New("stream closed by client")
