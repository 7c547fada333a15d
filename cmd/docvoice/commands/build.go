package commands

import (
	"context"

	"github.com/Nephrolytics-ai/docvoice/pkg/blob"
	"github.com/Nephrolytics-ai/docvoice/pkg/config"
	"github.com/Nephrolytics-ai/docvoice/pkg/extract"
	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/ocr"
	"github.com/Nephrolytics-ai/docvoice/pkg/pipeline"
	"github.com/Nephrolytics-ai/docvoice/pkg/speech"
	"github.com/Nephrolytics-ai/docvoice/pkg/transcription"
	"github.com/Nephrolytics-ai/docvoice/pkg/workspace"
)

func newWorkspace(cfg *config.Config) *workspace.Manager {
	return workspace.NewManager(cfg.ScratchRoot,
		workspace.WithRetention(cfg.WorkspaceRetention),
		workspace.WithSweepInterval(cfg.SweepInterval),
	)
}

func newSynthesizer(cfg *config.Config) (model.Synthesizer, error) {
	if cfg.SynthBackend == config.BackendOpenAI {
		return speech.NewOpenAISynthesizer(
			speech.WithOpenAIAuthToken(cfg.OpenAIToken),
			speech.WithOpenAIURL(cfg.OpenAIBaseURL),
			speech.WithOpenAIModel(cfg.OpenAITTSModel),
			speech.WithOpenAIVoice(cfg.OpenAITTSVoice),
		), nil
	}
	return speech.NewAzureSynthesizer(cfg.AzureRegion, cfg.AzureSpeechKey, speech.WithVoice(cfg.AzureSpeechVoice))
}

func newRecognizer(cfg *config.Config) (model.Recognizer, error) {
	if cfg.OCRBackend == config.BackendGemini {
		return ocr.NewGeminiRecognizer(ocr.WithGeminiAuthToken(cfg.GeminiKey)), nil
	}
	return ocr.NewReadRecognizer(cfg.AzureVisionEndpoint, cfg.AzureVisionKey, nil)
}

func newSpeechPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	if err := cfg.ValidateSpeech(); err != nil {
		return nil, err
	}
	synthesizer, err := newSynthesizer(cfg)
	if err != nil {
		return nil, err
	}
	recognizer, err := newRecognizer(cfg)
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Dependencies{
		Workspace:   newWorkspace(cfg),
		Extractor:   extract.NewDocumentExtractor(),
		Recognizer:  recognizer,
		Synthesizer: synthesizer,
	}, cfg.PipelineOptions()...)
}

func newTranscribePipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, error) {
	if err := cfg.ValidateTranscription(); err != nil {
		return nil, err
	}

	store, err := blob.Connect(ctx, blob.AWSSettings{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		SessionToken:    cfg.AWSSessionToken,
		Profile:         cfg.AWSProfile,
	}, cfg.BlobBucket, cfg.BlobPrefix, cfg.BlobEndpoint)
	if err != nil {
		return nil, err
	}

	transcriber, err := transcription.NewBatchTranscriber(cfg.AzureRegion, cfg.AzureSpeechKey,
		transcription.WithLocale(cfg.TranscribeLocale),
	)
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Dependencies{
		Workspace:      newWorkspace(cfg),
		AudioExtractor: extract.NewFFmpegExtractor(cfg.FFmpegPath),
		Blobs:          store,
		Transcriber:    transcriber,
	}, cfg.PipelineOptions()...)
}
