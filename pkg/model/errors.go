package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExtractionEmpty means neither direct extraction nor recognition produced text.
	ErrExtractionEmpty = errors.New("no extractable text")
	// ErrNoFragmentsToMerge is returned by the merger for an empty fragment list.
	ErrNoFragmentsToMerge = errors.New("no fragments to merge")
	// ErrExternalJobTimedOut means no terminal state was observed before the poll deadline.
	ErrExternalJobTimedOut = errors.New("external job timed out")
)

type ChunkSynthesisFailedError struct {
	Index    int
	Attempts int
	Err      error
}

func (e *ChunkSynthesisFailedError) Error() string {
	return fmt.Sprintf("chunk %d failed after %d attempts: %v", e.Index, e.Attempts, e.Err)
}

func (e *ChunkSynthesisFailedError) Unwrap() error {
	return e.Err
}

type ExternalJobFailedError struct {
	Message string
}

func (e *ExternalJobFailedError) Error() string {
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = "unknown error"
	}
	return "external job failed: " + message
}

// SubmitRejectedError carries the HTTP status and body of a refused submit call.
type SubmitRejectedError struct {
	Status int
	Body   string
}

func (e *SubmitRejectedError) Error() string {
	return fmt.Sprintf("submit rejected (%d): %s", e.Status, strings.TrimSpace(e.Body))
}

type WorkspaceIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *WorkspaceIOError) Error() string {
	return fmt.Sprintf("workspace %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WorkspaceIOError) Unwrap() error {
	return e.Err
}
