package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/Nephrolytics-ai/docvoice/pkg/logging"
	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/wav"
)

const (
	DefaultFFmpegPath = "ffmpeg"
	stderrTailChars   = 2000
)

type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// FFmpegError reports a failed conversion with the tail of ffmpeg's stderr.
type FFmpegError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *FFmpegError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg audio extraction failed (exit=%d): %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("ffmpeg audio extraction failed (exit=%d): %s", e.ExitCode, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// FFmpegExtractor converts any media ffmpeg understands into 16 kHz mono
// 16-bit PCM WAV.
type FFmpegExtractor struct {
	ffmpegPath string
	runner     commandRunner
}

func NewFFmpegExtractor(ffmpegPath string) *FFmpegExtractor {
	ffmpegPath = strings.TrimSpace(ffmpegPath)
	if ffmpegPath == "" {
		ffmpegPath = DefaultFFmpegPath
	}
	return &FFmpegExtractor{ffmpegPath: ffmpegPath, runner: &execRunner{}}
}

func (e *FFmpegExtractor) ExtractAudio(ctx context.Context, srcPath string, dstPath string) error {
	args := buildFFmpegArgs(srcPath, dstPath)
	log := logging.NewLogger(ctx)
	log.Debugf("running %s %s", e.ffmpegPath, strings.Join(args, " "))

	result, err := e.runner.Run(ctx, e.ffmpegPath, args...)
	if err != nil {
		_ = os.Remove(dstPath)
		return &FFmpegError{ExitCode: result.ExitCode, Stderr: tail(result.Stderr, stderrTailChars), Err: err}
	}

	if _, err := wav.FragmentSize(dstPath); err != nil {
		_ = os.Remove(dstPath)
		return &FFmpegError{ExitCode: result.ExitCode, Stderr: "output has no audio", Err: err}
	}
	return nil
}

func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		"-map_metadata", "-1",
		"-fflags", "+bitexact",
		"-f", "wav",
		outPath,
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

var _ model.AudioExtractor = (*FFmpegExtractor)(nil)
