package tests

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Nephrolytics-ai/docvoice/pkg/blob"
	"github.com/Nephrolytics-ai/docvoice/pkg/extract"
	"github.com/Nephrolytics-ai/docvoice/pkg/pipeline"
	"github.com/Nephrolytics-ai/docvoice/pkg/transcription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const defaultRecordingFixture = "data/transcript_test1.m4a"

type TranscriptionIntegrationSuite struct {
	ExternalDependenciesSuite
	fixture string
}

func (s *TranscriptionIntegrationSuite) SetupSuite() {
	s.ExternalDependenciesSuite.SetupSuite()

	cfg := s.Config()
	if err := cfg.ValidateTranscription(); err != nil {
		s.T().Skipf("transcription settings incomplete (%v); skipping external dependency integration test", err)
	}
	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		s.T().Skipf("%s not found (%v); skipping transcription integration test", cfg.FFmpegPath, err)
	}

	s.fixture = strings.TrimSpace(os.Getenv("TRANSCRIBE_FIXTURE"))
	if s.fixture == "" {
		s.fixture = defaultRecordingFixture
	}
	if _, err := os.Stat(s.fixture); err != nil {
		s.T().Skipf("%s is not accessible (%v); skipping transcription integration test", s.fixture, err)
	}
}

func (s *TranscriptionIntegrationSuite) TestTranscribeRecording() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cfg := s.Config()
	store, err := blob.Connect(ctx, blob.AWSSettings{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		SessionToken:    cfg.AWSSessionToken,
		Profile:         cfg.AWSProfile,
	}, cfg.BlobBucket, cfg.BlobPrefix, cfg.BlobEndpoint)
	require.NoError(s.T(), err)

	transcriber, err := transcription.NewBatchTranscriber(cfg.AzureRegion, cfg.AzureSpeechKey,
		transcription.WithLocale(cfg.TranscribeLocale),
	)
	require.NoError(s.T(), err)

	manager := s.scratchWorkspace()
	p, err := pipeline.New(pipeline.Dependencies{
		Workspace:      manager,
		AudioExtractor: extract.NewFFmpegExtractor(cfg.FFmpegPath),
		Blobs:          store,
		Transcriber:    transcriber,
	}, cfg.PipelineOptions()...)
	require.NoError(s.T(), err)

	src, err := os.Open(s.fixture)
	require.NoError(s.T(), err)
	defer src.Close()

	result, err := p.Transcribe(ctx, pipeline.TranscribeRequest{Name: filepath.Base(s.fixture), Source: src})
	require.NoError(s.T(), err)
	require.NotNil(s.T(), result.Transcript)

	assert.NotEmpty(s.T(), strings.TrimSpace(result.Transcript.Text()))
	words := result.Transcript.Words()
	require.NotEmpty(s.T(), words)
	for i := 1; i < len(words); i++ {
		assert.GreaterOrEqual(s.T(), words[i].Start(), words[i-1].Start(), "word %d out of order", i)
	}

	s.requireWorkspaceEmpty(manager)
}

func TestTranscriptionIntegrationSuite(t *testing.T) {
	suite.Run(t, new(TranscriptionIntegrationSuite))
}
