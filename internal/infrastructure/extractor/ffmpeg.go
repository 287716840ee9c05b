package extractor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config controls how frames are pulled from the stream.
type Config struct {
	BinaryPath string
	Quality    int // ffmpeg -q:v, 1 (best) .. 31 (worst)
	MaxWidth   int
	MaxHeight  int
	Timeout    time.Duration
}

// FFmpegExtractor shells out to ffmpeg to grab a single still frame.
type FFmpegExtractor struct {
	cfg    Config
	logger *zap.SugaredLogger
}

func NewFFmpegExtractor(cfg Config, logger *zap.SugaredLogger) *FFmpegExtractor {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "ffmpeg"
	}
	if cfg.Quality == 0 {
		cfg.Quality = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &FFmpegExtractor{cfg: cfg, logger: logger}
}

// Extract writes one still image from streamURL to outputPath. A non-zero
// exit or missing output is reported as an error; partial output files are
// left for the retention sweep to collect.
func (e *FFmpegExtractor) Extract(ctx context.Context, streamURL, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create frame directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	args := e.buildArgs(streamURL, outputPath)
	cmd := exec.CommandContext(ctx, e.cfg.BinaryPath, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if len(detail) > 300 {
			detail = detail[len(detail)-300:]
		}
		return fmt.Errorf("ffmpeg failed: %w (%s)", err, detail)
	}

	e.logger.Debugw("frame extracted", "stream_url", streamURL, "output", outputPath)
	return nil
}

func (e *FFmpegExtractor) buildArgs(streamURL, outputPath string) []string {
	args := []string{
		"-y",
		"-loglevel", "error",
		"-i", streamURL,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(e.cfg.Quality),
	}
	if e.cfg.MaxWidth > 0 && e.cfg.MaxHeight > 0 {
		args = append(args, "-vf",
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", e.cfg.MaxWidth, e.cfg.MaxHeight))
	}
	return append(args, outputPath)
}
