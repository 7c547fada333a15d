package pipeline

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/Nephrolytics-ai/docvoice/pkg/logging"
	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/speech"
	"github.com/Nephrolytics-ai/docvoice/pkg/textsplit"
	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
	"github.com/Nephrolytics-ai/docvoice/pkg/wav"
)

type SpeakRequest struct {
	// Name is the uploaded file name; its extension selects direct extraction.
	Name   string
	Source io.Reader
}

// SpeakResult holds the merged audio until it is streamed. The workspace
// stays open until Stream or Close is called.
type SpeakResult struct {
	JobID     string
	Preview   string
	Chunks    int
	AudioPath string
	Size      int64

	pipeline *Pipeline
	job      *model.Job
	ctx      context.Context

	mu       sync.Mutex
	streamed bool
}

// Speak extracts text from the document (recognizing it when no digital text
// is found), synthesizes it chunk by chunk and merges the fragments into one
// WAV. On failure the workspace is already gone when the error is returned.
func (p *Pipeline) Speak(ctx context.Context, req SpeakRequest) (*SpeakResult, error) {
	if !p.canSpeak() {
		return nil, utils.WrapIfNotNil(errSpeechNotConfigured)
	}

	ctx, job, err := p.openJob(ctx)
	if err != nil {
		return nil, err
	}
	log := logging.NewLogger(ctx)

	handedOff := false
	defer func() {
		if !handedOff {
			p.closeJob(ctx, job, model.OutcomeFailed)
		}
	}()

	inputPath, err := p.persistSource(ctx, job, req.Name, req.Source)
	if err != nil {
		return nil, err
	}

	text, err := p.extractText(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	normalized := textsplit.Normalize(text)
	chunks := textsplit.Segment(normalized, p.cfg.ChunkMaxChars)
	if len(chunks) == 0 {
		return nil, model.ErrExtractionEmpty
	}
	log.Infof("segmented %d characters into %d chunks", len([]rune(normalized)), len(chunks))

	for _, chunk := range chunks {
		if _, err := p.deps.Workspace.Track(job, speech.FragmentName(chunk.Index)); err != nil {
			return nil, err
		}
	}

	fragments, err := p.chunks.SynthesizeAll(ctx, chunks, job.Dir, p.cfg.Concurrency)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		paths = append(paths, fragment.Path)
	}

	outPath, err := p.deps.Workspace.Track(job, mergedAudioName)
	if err != nil {
		return nil, err
	}
	if err := wav.Merge(outPath, paths); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	info, err := os.Stat(outPath)
	if err != nil {
		return nil, &model.WorkspaceIOError{Op: "stat", Path: outPath, Err: err}
	}

	log.Infof("merged %d fragments into %d bytes", len(paths), info.Size())
	handedOff = true
	return &SpeakResult{
		JobID:     job.ID,
		Preview:   textsplit.Preview(normalized, p.cfg.PreviewChars),
		Chunks:    len(chunks),
		AudioPath: outPath,
		Size:      info.Size(),
		pipeline:  p,
		job:       job,
		ctx:       ctx,
	}, nil
}

// extractText tries direct extraction first and recognition second.
func (p *Pipeline) extractText(ctx context.Context, path string) (string, error) {
	log := logging.NewLogger(ctx)

	text, err := p.deps.Extractor.Extract(ctx, path)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	if strings.TrimSpace(text) != "" {
		log.Debugf("direct extraction produced %d bytes", len(text))
		return text, nil
	}

	log.Infof("no digital text, running recognition")
	text, err = p.deps.Recognizer.Recognize(ctx, path)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	if strings.TrimSpace(text) == "" {
		return "", model.ErrExtractionEmpty
	}
	return text, nil
}

// Stream copies the merged audio to w and then removes the workspace. A copy
// failure, such as the consumer going away, closes the job as aborted.
func (r *SpeakResult) Stream(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.streamed || r.job.Closed() {
		return utils.WrapIfNotNil(os.ErrClosed, r.JobID)
	}
	r.streamed = true

	err := r.copyTo(w)
	outcome := model.OutcomeSucceeded
	if err != nil {
		outcome = model.OutcomeAborted
		logging.NewLogger(r.ctx).Warnf("stream aborted: %v", err)
	}
	r.pipeline.closeJob(r.ctx, r.job, outcome)
	return err
}

func (r *SpeakResult) copyTo(w io.Writer) error {
	file, err := os.Open(r.AudioPath)
	if err != nil {
		return &model.WorkspaceIOError{Op: "read", Path: r.AudioPath, Err: err}
	}
	defer utils.CloseLogged(file, logging.NewLogger(r.ctx), r.AudioPath)

	if _, err := io.Copy(w, file); err != nil {
		return utils.WrapIfNotNil(err)
	}
	return nil
}

// Close releases the workspace without streaming. A result that was never
// delivered is recorded as aborted; after Stream it does nothing.
func (r *SpeakResult) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.job.Closed() {
		return nil
	}
	if err := r.pipeline.deps.Workspace.Close(context.WithoutCancel(r.ctx), r.job, model.OutcomeAborted); err != nil {
		return err
	}
	return nil
}

// Outcome is the job outcome recorded so far.
func (r *SpeakResult) Outcome() model.Outcome {
	return r.job.Outcome()
}
