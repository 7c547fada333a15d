package model

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ModelSuite struct {
	suite.Suite
}

func TestModelSuite(t *testing.T) {
	suite.Run(t, new(ModelSuite))
}

func (s *ModelSuite) TestResolvePipelineOptsDefaults() {
	cfg := ResolvePipelineOpts()
	s.Equal(DefaultChunkMaxChars, cfg.ChunkMaxChars)
	s.Equal(DefaultMaxRetries, cfg.MaxRetries)
	s.Equal(DefaultRetryDelay, cfg.RetryDelay)
	s.Equal(DefaultConcurrency, cfg.Concurrency)
	s.Equal(DefaultPreviewChars, cfg.PreviewChars)
	s.Equal(DefaultBlobURLTTL, cfg.BlobURLTTL)
}

func (s *ModelSuite) TestResolvePipelineOptsClampsInvalidValues() {
	cfg := ResolvePipelineOpts(
		WithChunkMaxChars(0),
		WithMaxRetries(0),
		WithRetryDelay(-time.Second),
		WithConcurrency(-2),
		nil,
	)
	s.Equal(DefaultChunkMaxChars, cfg.ChunkMaxChars)
	s.Equal(DefaultMaxRetries, cfg.MaxRetries)
	s.Equal(DefaultRetryDelay, cfg.RetryDelay)
	s.Equal(DefaultConcurrency, cfg.Concurrency)
}

func (s *ModelSuite) TestResolvePipelineOptsAppliesValues() {
	cfg := ResolvePipelineOpts(
		WithChunkMaxChars(10),
		WithMaxRetries(5),
		WithRetryDelay(0),
		WithConcurrency(4),
		WithPreviewChars(20),
		WithBlobURLTTL(time.Minute),
	)
	s.Equal(10, cfg.ChunkMaxChars)
	s.Equal(5, cfg.MaxRetries)
	s.Equal(time.Duration(0), cfg.RetryDelay)
	s.Equal(4, cfg.Concurrency)
	s.Equal(20, cfg.PreviewChars)
	s.Equal(time.Minute, cfg.BlobURLTTL)
}

func (s *ModelSuite) TestJobMarkClosedOnlyOnce() {
	job := NewJob("id", "/tmp/id", time.Now())

	var wg sync.WaitGroup
	wins := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- job.MarkClosed(OutcomeAborted)
		}()
	}
	wg.Wait()
	close(wins)

	first := 0
	for won := range wins {
		if won {
			first++
		}
	}
	s.Equal(1, first)
	s.True(job.Closed())
	s.Equal(OutcomeAborted, job.Outcome())
	s.False(job.MarkClosed(OutcomeSucceeded))
	s.Equal(OutcomeAborted, job.Outcome())
}

func (s *ModelSuite) TestJobArtifactsAreCopied() {
	job := NewJob("id", "/tmp/id", time.Now())
	job.RecordArtifact("/tmp/id/source.pdf")
	job.RecordArtifact("/tmp/id/out.wav")

	artifacts := job.Artifacts()
	artifacts[0] = "changed"
	s.Equal([]string{"/tmp/id/source.pdf", "/tmp/id/out.wav"}, job.Artifacts())
}

func (s *ModelSuite) TestErrorTaxonomyUnwraps() {
	cause := errors.New("service said no")
	chunkErr := fmt.Errorf("pipeline: %w", &ChunkSynthesisFailedError{Index: 1, Attempts: 3, Err: cause})

	var target *ChunkSynthesisFailedError
	s.Require().ErrorAs(chunkErr, &target)
	s.Equal(1, target.Index)
	s.ErrorIs(chunkErr, cause)

	wsErr := &WorkspaceIOError{Op: "remove", Path: "/x", Err: cause}
	s.ErrorIs(wsErr, cause)
	s.Contains(wsErr.Error(), "remove /x")

	s.Equal("external job failed: unknown error", (&ExternalJobFailedError{}).Error())
	s.Equal("submit rejected (401): denied", (&SubmitRejectedError{Status: 401, Body: " denied\n"}).Error())
}
