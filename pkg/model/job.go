package model

import (
	"sync"
	"time"
)

// Outcome is the terminal result recorded when a job's workspace is closed.
type Outcome string

const (
	OutcomePending   Outcome = ""
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeAborted   Outcome = "aborted"
)

// Job is one request's scratch workspace and the artifacts written into it.
// A Job is owned by a single orchestrator call; the mutex only guards the
// bookkeeping shared with concurrent chunk workers and deferred closers.
type Job struct {
	ID        string
	Dir       string
	CreatedAt time.Time

	mu        sync.Mutex
	artifacts []string
	outcome   Outcome
	closed    bool
}

func NewJob(id string, dir string, createdAt time.Time) *Job {
	return &Job{ID: id, Dir: dir, CreatedAt: createdAt}
}

func (j *Job) RecordArtifact(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.artifacts = append(j.artifacts, path)
}

// Artifacts returns the tracked artifact paths in the order they were recorded.
func (j *Job) Artifacts() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.artifacts...)
}

func (j *Job) Outcome() Outcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outcome
}

func (j *Job) Closed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closed
}

// MarkClosed records outcome and reports whether this call was the first close.
// Later calls leave the first outcome untouched.
func (j *Job) MarkClosed(outcome Outcome) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return false
	}
	j.closed = true
	j.outcome = outcome
	return true
}
