package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/pkg/scene"
	"github.com/df07/go-raymarcher/pkg/shading"
)

// ErrPoolClosed is returned when the worker pool shuts down mid-frame
var ErrPoolClosed = errors.New("worker pool closed unexpectedly")

// FrameConfig contains configuration for frame rendering
type FrameConfig struct {
	Width      int // Output width in pixels
	Height     int // Output height in pixels
	TileSize   int // Size of each square tile
	NumWorkers int // Number of parallel workers (0 = use CPU count)
}

// DefaultFrameConfig returns sensible default values
func DefaultFrameConfig() FrameConfig {
	return FrameConfig{
		Width:      640,
		Height:     360,
		TileSize:   32,
		NumWorkers: 0, // Auto-detect CPU count
	}
}

// FrameResult is one completed frame
type FrameResult struct {
	FrameNumber int
	Image       *image.RGBA
	Stats       RenderStats
	Parameters  scene.Parameters // Sanitized snapshot the frame was rendered from
	Duration    time.Duration
}

// TileCompletionResult contains information about a completed tile for callbacks
type TileCompletionResult struct {
	TileX       int // Tile coordinates (not pixel coordinates)
	TileY       int
	TileImage   *image.RGBA // Image data for just this tile
	FrameNumber int         // Which frame this tile belongs to

	// Progress information
	TileNumber int // Current tile number in this frame (1-based)
	TotalTiles int // Total number of tiles in the image
}

// RenderOptions configures sequence rendering behavior
type RenderOptions struct {
	TileUpdates bool // Whether to generate tile completion events
}

// FrameSource supplies the parameters of frame n, or false once the
// sequence has ended
type FrameSource interface {
	Frame(n int) (scene.Parameters, bool)
}

// FrameSourceFunc adapts a function to FrameSource
type FrameSourceFunc func(n int) (scene.Parameters, bool)

// Frame implements FrameSource
func (f FrameSourceFunc) Frame(n int) (scene.Parameters, bool) {
	return f(n)
}

// Animator turns a base scene into a sequence by advancing the rotation
// angle by Spin radians per frame
type Animator struct {
	Base   scene.Parameters
	Spin   float64
	Frames int // Number of frames, 0 or less for an endless sequence
}

// Frame implements FrameSource
func (a Animator) Frame(n int) (scene.Parameters, bool) {
	if a.Frames > 0 && n >= a.Frames {
		return scene.Parameters{}, false
	}
	p := a.Base.Clone()
	p.RotationAngle += a.Spin * float64(n)
	return p, true
}

// FrameRenderer renders whole frames on a worker pool. Frames are rendered
// one at a time: every tile of a frame completes before the next frame is
// dispatched, and each frame reads only its own parameter snapshot.
type FrameRenderer struct {
	config     FrameConfig
	tiles      []*Tile
	workerPool *WorkerPool
	logger     *slog.Logger

	renderMu     sync.Mutex // Serializes frames on the shared pool
	closed       bool       // Guarded by renderMu
	envMu        sync.Mutex
	environments map[scene.EnvironmentConfig]shading.Environment
}

// NewFrameRenderer creates a frame renderer. A nil logger uses the process logger.
func NewFrameRenderer(config FrameConfig, logger *slog.Logger) *FrameRenderer {
	if logger == nil {
		logger = core.Logger()
	}
	if config.TileSize <= 0 {
		config.TileSize = DefaultFrameConfig().TileSize
	}

	tiles := NewTileGrid(config.Width, config.Height, config.TileSize)
	return &FrameRenderer{
		config:       config,
		tiles:        tiles,
		workerPool:   NewWorkerPool(config.NumWorkers, len(tiles)),
		logger:       logger,
		environments: make(map[scene.EnvironmentConfig]shading.Environment),
	}
}

// Config returns the renderer configuration
func (fr *FrameRenderer) Config() FrameConfig {
	return fr.config
}

// NumTiles returns the number of tiles per frame
func (fr *FrameRenderer) NumTiles() int {
	return len(fr.tiles)
}

// Close waits for an in-flight frame and stops the worker pool. Frames
// requested afterwards fail with ErrPoolClosed.
func (fr *FrameRenderer) Close() {
	fr.renderMu.Lock()
	defer fr.renderMu.Unlock()
	fr.closed = true
	fr.workerPool.Stop()
}

// environment returns the background for cfg, loading images only once
func (fr *FrameRenderer) environment(params scene.Parameters) (shading.Environment, error) {
	fr.envMu.Lock()
	defer fr.envMu.Unlock()

	if env, ok := fr.environments[params.Environment]; ok {
		return env, nil
	}
	env, err := params.NewEnvironment()
	if err != nil {
		return nil, err
	}
	fr.environments[params.Environment] = env
	return env, nil
}

// RenderFrame renders one frame from a snapshot of params. If ctx is
// cancelled before every tile has rendered, the partial frame is discarded
// and the context error returned.
func (fr *FrameRenderer) RenderFrame(ctx context.Context, frameNumber int, params scene.Parameters, tileCallback func(TileCompletionResult)) (FrameResult, error) {
	fr.renderMu.Lock()
	defer fr.renderMu.Unlock()

	if fr.closed {
		return FrameResult{}, ErrPoolClosed
	}
	if len(fr.tiles) == 0 {
		return FrameResult{}, fmt.Errorf("invalid frame size %dx%d", fr.config.Width, fr.config.Height)
	}

	startTime := time.Now()
	snapshot := params.Clone()

	env, err := fr.environment(snapshot)
	if err != nil {
		return FrameResult{}, fmt.Errorf("frame %d: %w", frameNumber, err)
	}

	marcher := NewRaymarcher(snapshot, env)
	aspect := float64(fr.config.Width) / float64(fr.config.Height)
	job := &frameJob{
		ctx:     ctx,
		frame:   NewFrameContext(marcher.Parameters().Camera, aspect),
		marcher: marcher,
		image:   image.NewRGBA(image.Rect(0, 0, fr.config.Width, fr.config.Height)),
	}

	fr.workerPool.Start()

	// Submit all tiles as tasks
	for i, tile := range fr.tiles {
		fr.workerPool.SubmitTask(TileTask{Tile: tile, TaskID: i, job: job})
	}

	// Wait for every tile, even after a failure, so no task of this frame
	// is still running when the next frame starts
	var stats RenderStats
	var firstErr error
	for i := 0; i < len(fr.tiles); i++ {
		result, ok := fr.workerPool.GetResult()
		if !ok {
			return FrameResult{}, ErrPoolClosed
		}
		if result.Error != nil {
			if firstErr == nil {
				firstErr = result.Error
			}
			continue
		}
		stats.Merge(result.Stats)

		if tileCallback != nil && firstErr == nil {
			tile := fr.tiles[result.TaskID]
			tileCallback(TileCompletionResult{
				TileX:       tile.Bounds.Min.X / fr.config.TileSize,
				TileY:       tile.Bounds.Min.Y / fr.config.TileSize,
				TileImage:   extractTileImage(job.image, tile.Bounds),
				FrameNumber: frameNumber,
				TileNumber:  i + 1,
				TotalTiles:  len(fr.tiles),
			})
		}
	}

	if firstErr != nil {
		fr.logger.Info("frame discarded", "frame", frameNumber, "reason", firstErr)
		return FrameResult{}, firstErr
	}

	duration := time.Since(startTime)
	fr.logger.Debug("frame rendered",
		"frame", frameNumber,
		"duration", duration,
		"hitRate", stats.HitRate(),
		"avgSteps", stats.AverageSteps,
		"workers", fr.workerPool.GetNumWorkers())

	return FrameResult{
		FrameNumber: frameNumber,
		Image:       job.image,
		Stats:       stats,
		Parameters:  marcher.Parameters(),
		Duration:    duration,
	}, nil
}

// RenderSequence renders frames from source until it ends or ctx is
// cancelled, with channel-based communication. Cancellation is checked
// between frames; a frame interrupted mid-render is discarded. If
// options.TileUpdates is false, the tile channel is closed immediately.
func (fr *FrameRenderer) RenderSequence(ctx context.Context, source FrameSource, options RenderOptions) (<-chan FrameResult, <-chan TileCompletionResult, <-chan error) {
	frameChan := make(chan FrameResult, 1)
	tileChan := make(chan TileCompletionResult, 100) // Buffer for tiles
	errChan := make(chan error, 1)

	if !options.TileUpdates {
		close(tileChan)
	}

	go func() {
		defer close(frameChan)
		if options.TileUpdates {
			defer close(tileChan)
		}
		defer close(errChan)

		for n := 0; ; n++ {
			// Check if the caller went away before starting this frame
			select {
			case <-ctx.Done():
				fr.logger.Info("rendering cancelled", "beforeFrame", n)
				errChan <- ctx.Err()
				return
			default:
			}

			params, ok := source.Frame(n)
			if !ok {
				fr.logger.Info("sequence complete", "frames", n)
				return
			}

			var tileCallback func(TileCompletionResult)
			if options.TileUpdates {
				tileCallback = func(result TileCompletionResult) {
					select {
					case tileChan <- result:
					case <-ctx.Done():
					default:
						// Channel full, drop the progress update
					}
				}
			}

			result, err := fr.RenderFrame(ctx, n, params, tileCallback)
			if err != nil {
				errChan <- err
				return
			}

			select {
			case frameChan <- result:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
	}()

	return frameChan, tileChan, errChan
}

// extractTileImage copies bounds of img into a tile-sized image
func extractTileImage(img *image.RGBA, bounds image.Rectangle) *image.RGBA {
	tileImage := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			tileImage.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, img.RGBAAt(x, y))
		}
	}
	return tileImage
}
