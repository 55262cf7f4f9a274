package replay

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Frame is one decoded frame of a bundle
type Frame struct {
	Number   int
	Duration time.Duration
	Image    image.Image
}

// Bundle is a fully loaded recording
type Bundle struct {
	Manifest Manifest
	Records  []Record
	Frames   []Frame
}

// Load reads the bundle in dir
func Load(dir string) (Bundle, error) {
	manifestBytes, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return Bundle{}, err
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return Bundle{}, fmt.Errorf("invalid manifest: %w", err)
	}
	if manifest.Version != ManifestVersion {
		return Bundle{}, fmt.Errorf("unsupported manifest version %d", manifest.Version)
	}

	records, err := loadRecords(filepath.Join(dir, manifest.ParamsPath))
	if err != nil {
		return Bundle{}, err
	}
	frames, err := loadFrames(filepath.Join(dir, manifest.FramesPath))
	if err != nil {
		return Bundle{}, err
	}
	if len(records) != len(frames) {
		return Bundle{}, fmt.Errorf("bundle has %d parameter records but %d frames", len(records), len(frames))
	}

	return Bundle{Manifest: manifest, Records: records, Frames: frames}, nil
}

func loadRecords(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var records []Record
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("invalid parameter record: %w", err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func loadFrames(path string) ([]Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	var frames []Frame
	offset := 0
	for offset < len(payload) {
		if offset+frameHeaderSize > len(payload) {
			return nil, fmt.Errorf("frame header truncated")
		}
		number := int(binary.LittleEndian.Uint64(payload[offset : offset+8]))
		duration := time.Duration(binary.LittleEndian.Uint64(payload[offset+8 : offset+16]))
		size := int(binary.LittleEndian.Uint32(payload[offset+16 : offset+20]))
		offset += frameHeaderSize
		if offset+size > len(payload) {
			return nil, fmt.Errorf("frame %d payload truncated", number)
		}

		img, err := png.Decode(bytes.NewReader(payload[offset : offset+size]))
		if err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", number, err)
		}
		offset += size

		frames = append(frames, Frame{Number: number, Duration: duration, Image: img})
	}
	return frames, nil
}
