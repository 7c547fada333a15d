package model

import "context"

// TextExtractor reads text from already-structured documents.
// A blank result with a nil error means "not digital text"; callers fall back to recognition.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Recognizer performs optical recognition on a document and returns lines in reading order.
type Recognizer interface {
	Recognize(ctx context.Context, path string) (string, error)
}
