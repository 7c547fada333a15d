// Package speech turns text chunks into validated WAV fragments.
package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/docvoice/pkg/logging"
	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
	"github.com/Nephrolytics-ai/docvoice/pkg/wav"
	"golang.org/x/sync/errgroup"
)

var errEmptyChunk = errors.New("chunk text is empty")

// FragmentName is the file a chunk's audio is written to inside the job directory.
func FragmentName(index int) string {
	return fmt.Sprintf("chunk_%d.wav", index)
}

type ChunkOption func(*ChunkSynthesizer)

func WithMaxRetries(maxRetries int) ChunkOption {
	return func(c *ChunkSynthesizer) {
		if maxRetries >= 1 {
			c.maxRetries = maxRetries
		}
	}
}

// WithRetryDelay sets the base delay; attempt n waits n times this long.
func WithRetryDelay(delay time.Duration) ChunkOption {
	return func(c *ChunkSynthesizer) {
		if delay >= 0 {
			c.retryDelay = delay
		}
	}
}

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ChunkOption {
	return func(c *ChunkSynthesizer) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// ChunkSynthesizer wraps a Synthesizer with bounded retries and fragment validation.
type ChunkSynthesizer struct {
	backend    model.Synthesizer
	maxRetries int
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewChunkSynthesizer(backend model.Synthesizer, opts ...ChunkOption) *ChunkSynthesizer {
	c := &ChunkSynthesizer{
		backend:    backend,
		maxRetries: model.DefaultMaxRetries,
		retryDelay: model.DefaultRetryDelay,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize writes chunk_<index>.wav into dir. A failed attempt never leaves a
// file behind; after maxRetries failures a ChunkSynthesisFailedError is returned.
func (c *ChunkSynthesizer) Synthesize(ctx context.Context, chunk model.TextChunk, dir string) (model.AudioFragment, error) {
	if strings.TrimSpace(chunk.Text) == "" {
		return model.AudioFragment{}, utils.WrapIfNotNil(errEmptyChunk, fmt.Sprintf("chunk %d", chunk.Index))
	}

	log := logging.NewLogger(ctx).WithField("chunk", chunk.Index)
	path := filepath.Join(dir, FragmentName(chunk.Index))

	var (
		lastErr  error
		attempts int
	)
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		attempts = attempt
		size, err := c.attempt(ctx, chunk.Text, path)
		if err == nil {
			log.Debugf("synthesized %d bytes on attempt %d", size, attempt)
			return model.AudioFragment{Index: chunk.Index, Path: path, Size: size}, nil
		}
		lastErr = err
		log.Warnf("attempt %d of %d failed: %v", attempt, c.maxRetries, err)

		if ctx.Err() != nil {
			break
		}
		if attempt < c.maxRetries {
			if err := c.sleep(ctx, c.retryDelay*time.Duration(attempt)); err != nil {
				lastErr = err
				break
			}
		}
	}

	return model.AudioFragment{}, &model.ChunkSynthesisFailedError{
		Index:    chunk.Index,
		Attempts: attempts,
		Err:      lastErr,
	}
}

// attempt owns path for its duration: the placeholder is removed unless a
// valid fragment ends up there.
func (c *ChunkSynthesizer) attempt(ctx context.Context, text string, path string) (size int64, err error) {
	placeholder, err := os.Create(path)
	if err != nil {
		return 0, utils.WrapIfNotNil(err)
	}
	if err := placeholder.Close(); err != nil {
		_ = os.Remove(path)
		return 0, utils.WrapIfNotNil(err)
	}

	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if err := c.backend.SynthesizeToFile(ctx, text, path); err != nil {
		return 0, utils.WrapIfNotNil(err)
	}
	size, err = wav.FragmentSize(path)
	if err != nil {
		return 0, err
	}
	return size, nil
}

// SynthesizeAll synthesizes every chunk with at most concurrency calls in
// flight and returns the fragments ordered by index. The first failure cancels
// the remaining work and is returned.
func (c *ChunkSynthesizer) SynthesizeAll(ctx context.Context, chunks []model.TextChunk, dir string, concurrency int) ([]model.AudioFragment, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	fragments := make([]model.AudioFragment, len(chunks))
	for i, chunk := range chunks {
		group.Go(func() error {
			// A slot can free up after another chunk already failed.
			if err := groupCtx.Err(); err != nil {
				return err
			}
			fragment, err := c.Synthesize(groupCtx, chunk, dir)
			if err != nil {
				return err
			}
			fragments[i] = fragment
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		var failed *model.ChunkSynthesisFailedError
		if errors.As(err, &failed) {
			return nil, err
		}
		return nil, utils.WrapIfNotNil(err)
	}

	slices.SortFunc(fragments, func(a, b model.AudioFragment) int {
		return a.Index - b.Index
	})
	return fragments, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
