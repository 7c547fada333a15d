package model

import "context"

// TextChunk is one bounded, zero-based slice of extracted text sized for a single synthesis call.
type TextChunk struct {
	Index int
	Text  string
}

// AudioFragment is the synthesized audio of one TextChunk.
type AudioFragment struct {
	Index int
	Path  string
	Size  int64
}

// Synthesizer is the speech service contract: write a complete PCM WAV file for text at path.
// Implementations report service-side cancellation as an error.
type Synthesizer interface {
	SynthesizeToFile(ctx context.Context, text string, path string) error
}

// AudioExtractor pulls a mono 16 kHz PCM audio track out of arbitrary media.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, srcPath string, dstPath string) error
}
