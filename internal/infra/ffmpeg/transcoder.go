package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alfonso-av/cab432-a3/internal/domain/port"
	"go.uber.org/zap"
)

// outputTail limits how much ffmpeg stderr is carried in error values.
const outputTail = 2048

var _ port.Transcoder = (*Transcoder)(nil)

type Transcoder struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
}

func NewTranscoder(ffmpegPath, ffprobePath string, logger *zap.Logger) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Transcoder{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

func (t *Transcoder) Run(ctx context.Context, inputPath, outputPath string, profile port.Profile) error {
	duration, err := t.probeDuration(ctx, inputPath)
	if err != nil {
		t.logger.Warn("could not get video duration", zap.Error(err))
	}

	t.logger.Info("transcode started",
		zap.String("profile", string(profile)),
		zap.Float64("video_duration", duration),
	)

	switch profile {
	case port.ProfileBatch:
		return t.runBatch(ctx, inputPath, outputPath)
	default:
		return t.runPass(ctx, inputPath, outputPath, nil)
	}
}

// runBatch chains three full-quality passes so a single job keeps a core
// busy for minutes even on short clips. Intermediate files live next to
// the output inside the job's scratch dir.
func (t *Transcoder) runBatch(ctx context.Context, inputPath, outputPath string) error {
	dir := filepath.Dir(outputPath)
	ext := filepath.Ext(outputPath)

	current := inputPath
	for pass := 1; pass <= 3; pass++ {
		next := outputPath
		if pass < 3 {
			next = filepath.Join(dir, fmt.Sprintf("pass%d%s", pass, ext))
		}
		if err := t.runPass(ctx, current, next, batchPassArgs); err != nil {
			return fmt.Errorf("pass %d: %w", pass, err)
		}
		current = next
	}
	return nil
}

var batchPassArgs = []string{
	"-vf", "scale=1920:1080,eq=contrast=1.8:brightness=0.08:saturation=1.8,unsharp=5:5:1.0",
	"-preset", "slow",
	"-crf", "18",
	"-c:a", "aac",
	"-b:a", "256k",
}

func (t *Transcoder) runPass(ctx context.Context, inputPath, outputPath string, extra []string) error {
	args := []string{"-i", inputPath}
	args = append(args, extra...)
	args = append(args, "-y", outputPath)

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		// A kill caused by cancellation or deadline is not a codec
		// failure; surface the context error so callers classify it.
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctx.Err())
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &port.ExitError{Code: code, Output: tail(string(output), outputTail)}
	}
	return nil
}

func (t *Transcoder) probeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, t.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
