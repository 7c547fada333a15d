package pipeline

import (
	"context"
	"encoding/json"
	"io"

	"github.com/Nephrolytics-ai/docvoice/pkg/logging"
	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/transcription"
	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
)

type TranscribeRequest struct {
	Name   string
	Source io.Reader
}

type TranscribeResult struct {
	JobID string
	// Raw is the service's transcript document, unmodified.
	Raw        json.RawMessage
	Transcript *transcription.Transcript
}

// BlobName is the staging object name for a job's extracted audio.
func BlobName(jobID string) string {
	return "audio-" + jobID + ".wav"
}

// Transcribe extracts the audio track of a recording, stages it in blob
// storage and runs a batch transcription against a signed URL. The staged
// blob and the workspace are both gone before Transcribe returns.
func (p *Pipeline) Transcribe(ctx context.Context, req TranscribeRequest) (result *TranscribeResult, err error) {
	if !p.canTranscribe() {
		return nil, utils.WrapIfNotNil(errTranscribeNotConfigured)
	}

	ctx, job, err := p.openJob(ctx)
	if err != nil {
		return nil, err
	}
	log := logging.NewLogger(ctx)

	defer func() {
		outcome := model.OutcomeSucceeded
		if err != nil {
			outcome = model.OutcomeFailed
		}
		p.closeJob(ctx, job, outcome)
	}()

	inputPath, err := p.persistSource(ctx, job, req.Name, req.Source)
	if err != nil {
		return nil, err
	}

	audioPath, err := p.deps.Workspace.Track(job, extractedAudioName)
	if err != nil {
		return nil, err
	}
	if err := p.deps.AudioExtractor.ExtractAudio(ctx, inputPath, audioPath); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	blobName := BlobName(job.ID)
	defer p.deleteBlob(ctx, blobName)

	if _, err := p.deps.Blobs.Upload(ctx, audioPath, blobName); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	contentURL, err := p.deps.Blobs.SignedURL(ctx, blobName, p.cfg.BlobURLTTL)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	raw, err := p.deps.Transcriber.Transcribe(ctx, contentURL)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	transcript, err := transcription.ParseTranscript(raw)
	if err != nil {
		return nil, err
	}

	log.Infof("transcribed %d phrases", len(transcript.RecognizedPhrases))
	return &TranscribeResult{JobID: job.ID, Raw: raw, Transcript: transcript}, nil
}

// deleteBlob runs on every exit after an upload was attempted. A failure is
// logged and does not change the job's result.
func (p *Pipeline) deleteBlob(ctx context.Context, name string) {
	if err := p.deps.Blobs.Delete(context.WithoutCancel(ctx), name); err != nil {
		logging.NewLogger(ctx).Errorf("delete staged blob %s: %v", name, err)
		return
	}
	logging.NewLogger(ctx).Debugf("deleted staged blob %s", name)
}
