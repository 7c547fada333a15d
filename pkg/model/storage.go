package model

import (
	"context"
	"encoding/json"
	"time"
)

// BlobStore is the subset of blob storage the transcription path needs.
type BlobStore interface {
	Upload(ctx context.Context, localPath string, name string) (string, error)
	SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error)
	// Delete is idempotent: deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

// Transcriber runs a batch transcription for audio reachable at contentURL and
// returns the service's transcript payload verbatim.
type Transcriber interface {
	Transcribe(ctx context.Context, contentURL string) (json.RawMessage, error)
}
