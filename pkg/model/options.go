package model

import "time"

const (
	DefaultChunkMaxChars = 1500
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = 300 * time.Millisecond
	DefaultConcurrency   = 1
	DefaultPreviewChars  = 16000
	DefaultBlobURLTTL    = time.Hour
)

type PipelineOption interface {
	apply(*PipelineConfig)
}

type pipelineOptionFunc func(*PipelineConfig)

func (f pipelineOptionFunc) apply(cfg *PipelineConfig) {
	f(cfg)
}

// PipelineConfig tunes the document-to-speech and recording-to-transcript paths.
type PipelineConfig struct {
	ChunkMaxChars int
	MaxRetries    int
	RetryDelay    time.Duration
	Concurrency   int
	PreviewChars  int
	BlobURLTTL    time.Duration
}

// ResolvePipelineOpts applies opts over the defaults and clamps invalid values back to them.
func ResolvePipelineOpts(opts ...PipelineOption) PipelineConfig {
	cfg := PipelineConfig{
		ChunkMaxChars: DefaultChunkMaxChars,
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		Concurrency:   DefaultConcurrency,
		PreviewChars:  DefaultPreviewChars,
		BlobURLTTL:    DefaultBlobURLTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&cfg)
		}
	}

	if cfg.ChunkMaxChars <= 0 {
		cfg.ChunkMaxChars = DefaultChunkMaxChars
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = DefaultPreviewChars
	}
	if cfg.BlobURLTTL <= 0 {
		cfg.BlobURLTTL = DefaultBlobURLTTL
	}
	return cfg
}

func WithChunkMaxChars(value int) PipelineOption {
	return pipelineOptionFunc(func(cfg *PipelineConfig) {
		cfg.ChunkMaxChars = value
	})
}

func WithMaxRetries(value int) PipelineOption {
	return pipelineOptionFunc(func(cfg *PipelineConfig) {
		cfg.MaxRetries = value
	})
}

func WithRetryDelay(value time.Duration) PipelineOption {
	return pipelineOptionFunc(func(cfg *PipelineConfig) {
		cfg.RetryDelay = value
	})
}

// WithConcurrency bounds how many chunks are synthesized at once.
func WithConcurrency(value int) PipelineOption {
	return pipelineOptionFunc(func(cfg *PipelineConfig) {
		cfg.Concurrency = value
	})
}

func WithPreviewChars(value int) PipelineOption {
	return pipelineOptionFunc(func(cfg *PipelineConfig) {
		cfg.PreviewChars = value
	})
}

func WithBlobURLTTL(value time.Duration) PipelineOption {
	return pipelineOptionFunc(func(cfg *PipelineConfig) {
		cfg.BlobURLTTL = value
	})
}
