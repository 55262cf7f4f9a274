// Package replay records rendered frame sequences to a compressed bundle and
// reads them back.
//
// A bundle is a directory holding manifest.json, params.jsonl.sz (a snappy
// framed JSONL log with one record per frame) and frames.bin.zst (a zstd
// stream of length-prefixed PNG images).
package replay

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/df07/go-raymarcher/pkg/renderer"
	"github.com/df07/go-raymarcher/pkg/scene"
)

// Bundle layout
const (
	ManifestVersion = 1
	ManifestFile    = "manifest.json"
	ParamsFile      = "params.jsonl.sz"
	FramesFile      = "frames.bin.zst"
)

// frameHeaderSize is frame number, duration in nanoseconds and payload length
const frameHeaderSize = 8 + 8 + 4

// defaultBatchSize is the number of frames encoded together on flush
const defaultBatchSize = 8

var nameCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Manifest describes a recorded bundle
type Manifest struct {
	Version    int    `json:"version"`
	ID         string `json:"id"`
	Scene      string `json:"scene"`
	CreatedAt  string `json:"createdAt"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FrameCount int    `json:"frameCount"`
	ParamsPath string `json:"paramsPath"`
	FramesPath string `json:"framesPath"`
}

// Record is one line of the parameter log
type Record struct {
	Frame      int                  `json:"frame"`
	DurationMs float64              `json:"durationMs"`
	Stats      renderer.RenderStats `json:"stats"`
	Parameters scene.Parameters     `json:"parameters"`
}

// Writer streams rendered frames into a bundle. Frames are buffered and
// PNG-encoded in parallel batches, then appended in submission order.
type Writer struct {
	mu          sync.Mutex
	dir         string
	manifest    Manifest
	paramsFile  *os.File
	paramsLog   *snappy.Writer
	framesFile  *os.File
	frameStream *zstd.Encoder
	pending     []renderer.FrameResult
	batchSize   int
	closed      bool
}

// NewWriter creates a bundle directory under root named after the scene and
// the creation time, and opens its compressed streams
func NewWriter(root, sceneName string, width, height int, clock func() time.Time) (*Writer, error) {
	if root == "" {
		return nil, fmt.Errorf("replay root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := nameCleaner.ReplaceAllString(sceneName, "")
	if cleaned == "" {
		cleaned = "scene"
	}
	created := clock().UTC()
	dir := filepath.Join(root, fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create replay directory: %w", err)
	}

	paramsFile, err := os.Create(filepath.Join(dir, ParamsFile))
	if err != nil {
		return nil, err
	}
	framesFile, err := os.Create(filepath.Join(dir, FramesFile))
	if err != nil {
		paramsFile.Close()
		return nil, err
	}
	frameStream, err := zstd.NewWriter(framesFile)
	if err != nil {
		paramsFile.Close()
		framesFile.Close()
		return nil, err
	}

	w := &Writer{
		dir: dir,
		manifest: Manifest{
			Version:    ManifestVersion,
			ID:         uuid.NewString(),
			Scene:      sceneName,
			CreatedAt:  created.Format(time.RFC3339Nano),
			Width:      width,
			Height:     height,
			ParamsPath: ParamsFile,
			FramesPath: FramesFile,
		},
		paramsFile:  paramsFile,
		paramsLog:   snappy.NewBufferedWriter(paramsFile),
		framesFile:  framesFile,
		frameStream: frameStream,
		batchSize:   defaultBatchSize,
	}

	if err := w.writeManifest(); err != nil {
		w.paramsLog.Close()
		paramsFile.Close()
		frameStream.Close()
		framesFile.Close()
		return nil, err
	}
	return w, nil
}

// Directory returns the bundle directory
func (w *Writer) Directory() string {
	return w.dir
}

// Manifest returns the current manifest
func (w *Writer) Manifest() Manifest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.manifest
}

// AppendFrame buffers a rendered frame, flushing once a batch is full
func (w *Writer) AppendFrame(frame renderer.FrameResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("replay writer closed")
	}
	if frame.Image == nil {
		return fmt.Errorf("frame %d has no image", frame.FrameNumber)
	}

	w.pending = append(w.pending, frame)
	if len(w.pending) >= w.batchSize {
		return w.flushLocked()
	}
	return nil
}

// Flush writes all buffered frames
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Close flushes buffered frames, rewrites the manifest with the final frame
// count and releases the files. Every step is attempted and the first
// failure is returned.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var firstErr error
	if err := w.flushLocked(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.paramsLog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.paramsFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.frameStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.framesFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.writeManifest(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// flushLocked encodes the pending frames in parallel and appends them in
// order; callers must hold the mutex
func (w *Writer) flushLocked() error {
	if len(w.pending) == 0 {
		return nil
	}

	encoded := make([][]byte, len(w.pending))
	var g errgroup.Group
	for i, frame := range w.pending {
		g.Go(func() error {
			var buf bytes.Buffer
			if err := png.Encode(&buf, frame.Image); err != nil {
				return fmt.Errorf("failed to encode frame %d: %w", frame.FrameNumber, err)
			}
			encoded[i] = buf.Bytes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, frame := range w.pending {
		if err := w.writeRecord(frame); err != nil {
			return err
		}

		header := make([]byte, frameHeaderSize)
		binary.LittleEndian.PutUint64(header[0:8], uint64(frame.FrameNumber))
		binary.LittleEndian.PutUint64(header[8:16], uint64(frame.Duration))
		binary.LittleEndian.PutUint32(header[16:20], uint32(len(encoded[i])))
		if _, err := w.frameStream.Write(header); err != nil {
			return err
		}
		if _, err := w.frameStream.Write(encoded[i]); err != nil {
			return err
		}
		w.manifest.FrameCount++
	}

	w.pending = w.pending[:0]
	return w.paramsLog.Flush()
}

func (w *Writer) writeRecord(frame renderer.FrameResult) error {
	line, err := json.Marshal(Record{
		Frame:      frame.FrameNumber,
		DurationMs: float64(frame.Duration) / float64(time.Millisecond),
		Stats:      frame.Stats,
		Parameters: frame.Parameters,
	})
	if err != nil {
		return err
	}
	if _, err := w.paramsLog.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}

func (w *Writer) writeManifest() error {
	data, err := json.MarshalIndent(w.manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(w.dir, ManifestFile), append(data, '\n'), 0o644)
}
