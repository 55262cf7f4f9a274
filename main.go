package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/pkg/output"
	"github.com/df07/go-raymarcher/pkg/renderer"
	"github.com/df07/go-raymarcher/pkg/replay"
	"github.com/df07/go-raymarcher/pkg/scene"
)

// Config holds the command line options of one run
type Config struct {
	SceneType  string
	ParamsFile string
	ScenesDir  string
	OutputRoot string
	Width      int
	Height     int
	Frames     int
	Spin       float64
	Format     output.Format
	Scale      float64
	HUD        bool
	RecordDir  string
	Workers    int
}

func main() {
	// Parse command line flags
	sceneType := flag.String("scene", "default", "Scene: a built-in scene ID or file:<name> from the scenes directory")
	paramsFile := flag.String("params", "", "JSON parameter file applied on top of the scene")
	width := flag.Int("width", 640, "Output width in pixels")
	height := flag.Int("height", 360, "Output height in pixels")
	frames := flag.Int("frames", 1, "Number of frames to render")
	spin := flag.Float64("spin", 0.05, "Rotation angle advance per frame in radians")
	format := flag.String("format", "png", "Output format: png, bmp or tiff")
	scale := flag.Float64("scale", 1, "Render scale; the frame is resampled to the output size")
	hud := flag.Bool("hud", false, "Overlay frame statistics")
	record := flag.String("record", "", "Directory to record a replay bundle into")
	workers := flag.Int("workers", 0, "Number of parallel workers (0 = auto-detect CPU count)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn or error")
	help := flag.Bool("help", false, "Show help information")
	flag.Parse()

	// Show help if requested
	if *help {
		showHelp()
		return
	}

	level, err := core.ParseLevel(*logLevel)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	core.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	outputFormat, err := output.ParseFormat(*format)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	config := Config{
		SceneType:  *sceneType,
		ParamsFile: *paramsFile,
		ScenesDir:  "scenes",
		OutputRoot: "output",
		Width:      *width,
		Height:     *height,
		Frames:     *frames,
		Spin:       *spin,
		Format:     outputFormat,
		Scale:      *scale,
		HUD:        *hud,
		RecordDir:  *record,
		Workers:    *workers,
	}
	if _, err := run(ctx, config); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func showHelp() {
	fmt.Println("Raymarcher")
	fmt.Println("Usage: raymarcher [options]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Available scenes:")
	for _, info := range scene.BuiltinScenes() {
		fmt.Printf("  %-14s - %s\n", info.ID, info.Description)
	}
	fmt.Println("  file:<name>    - Parameter file scenes/<name>.json")
	fmt.Println()
	fmt.Println("Output will be saved to output/<scene>/render_<timestamp>.<format>")
}

// run renders the configured sequence and returns the written file names
func run(ctx context.Context, config Config) ([]string, error) {
	logger := core.Logger().With("run", uuid.NewString())

	params, err := createScene(config.SceneType, config.ParamsFile, config.ScenesDir)
	if err != nil {
		return nil, err
	}
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", config.Width, config.Height)
	}
	if config.Frames <= 0 {
		return nil, fmt.Errorf("frames must be positive, got %d", config.Frames)
	}
	if config.Format == "" {
		config.Format = output.FormatPNG
	}

	renderWidth, renderHeight := output.ScaledSize(config.Width, config.Height, config.Scale)
	fmt.Printf("Rendering %s: %d frame(s) at %dx%d", config.SceneType, config.Frames, renderWidth, renderHeight)
	if renderWidth != config.Width || renderHeight != config.Height {
		fmt.Printf(" scaled to %dx%d", config.Width, config.Height)
	}
	fmt.Println()

	outputDir := createOutputDir(config.OutputRoot, config.SceneType)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var recorder *replay.Writer
	if config.RecordDir != "" {
		recorder, err = replay.NewWriter(config.RecordDir, sceneName(config.SceneType), renderWidth, renderHeight, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to start recording: %w", err)
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				logger.Error("failed to close recording", "error", err)
			}
		}()
		logger.Info("recording", "dir", recorder.Directory())
	}

	frameRenderer := renderer.NewFrameRenderer(renderer.FrameConfig{
		Width:      renderWidth,
		Height:     renderHeight,
		TileSize:   renderer.DefaultFrameConfig().TileSize,
		NumWorkers: config.Workers,
	}, logger)
	defer frameRenderer.Close()

	animator := renderer.Animator{Base: params, Spin: config.Spin, Frames: config.Frames}
	frameChan, _, errChan := frameRenderer.RenderSequence(ctx, animator, renderer.RenderOptions{})

	timestamp := time.Now().Format("20060102_150405")
	var written []string
	for frame := range frameChan {
		fmt.Printf("Frame %d rendered in %v (hit rate %.1f%%, avg steps %.1f)\n",
			frame.FrameNumber, frame.Duration, 100*frame.Stats.HitRate(), frame.Stats.AverageSteps)

		if recorder != nil {
			if err := recorder.AppendFrame(frame); err != nil {
				return written, fmt.Errorf("failed to record frame %d: %w", frame.FrameNumber, err)
			}
		}

		img := finishFrame(frame, config)
		filename := filepath.Join(outputDir, frameFilename(timestamp, frame.FrameNumber, config.Frames, config.Format))
		if err := output.SaveImage(filename, img, config.Format); err != nil {
			return written, err
		}
		written = append(written, filename)
	}

	if err := <-errChan; err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Printf("Interrupted after %d frame(s)\n", len(written))
			return written, nil
		}
		return written, err
	}

	if len(written) > 0 {
		fmt.Printf("Render saved as %s\n", written[len(written)-1])
	}
	return written, nil
}

// finishFrame resamples the frame to the output size and draws the HUD.
// The rendered image is left untouched since the recorder may still hold it.
func finishFrame(frame renderer.FrameResult, config Config) *image.RGBA {
	img := frame.Image
	resize := img.Bounds().Dx() != config.Width || img.Bounds().Dy() != config.Height
	if resize || config.HUD {
		img = output.Scale(img, config.Width, config.Height)
	}
	if config.HUD {
		output.DrawHUD(img, output.HUDLines(frame))
	}
	return img
}

// createScene resolves the scene and applies the optional parameter file on top of it
func createScene(sceneType, paramsFile, scenesDir string) (scene.Parameters, error) {
	params, err := scene.Resolve(sceneType, scenesDir)
	if err != nil {
		return scene.Parameters{}, err
	}

	if paramsFile != "" {
		file, err := os.Open(paramsFile)
		if err != nil {
			return scene.Parameters{}, fmt.Errorf("failed to open parameter file: %w", err)
		}
		defer file.Close()

		params, err = scene.DecodeParameters(file, params)
		if err != nil {
			return scene.Parameters{}, fmt.Errorf("%s: %w", paramsFile, err)
		}
	}

	if err := params.Validate(); err != nil {
		return scene.Parameters{}, err
	}
	return params, nil
}

// sceneName turns a scene ID into a directory-safe name
func sceneName(sceneType string) string {
	name := strings.TrimPrefix(sceneType, "file:")
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '-'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "scene"
	}
	return name
}

// createOutputDir returns the output directory for a scene
func createOutputDir(root, sceneType string) string {
	return filepath.Join(root, sceneName(sceneType))
}

// frameFilename names one output frame; sequences get a frame suffix
func frameFilename(timestamp string, frameNumber, totalFrames int, format output.Format) string {
	if totalFrames <= 1 {
		return fmt.Sprintf("render_%s%s", timestamp, format.Extension())
	}
	return fmt.Sprintf("render_%s_%04d%s", timestamp, frameNumber, format.Extension())
}
