// Package pipeline sequences the document-to-speech and recording-to-transcript
// jobs. Each call owns one workspace and releases it on every exit path.
package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Nephrolytics-ai/docvoice/pkg/logging"
	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/speech"
	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
	"github.com/Nephrolytics-ai/docvoice/pkg/workspace"
)

const (
	mergedAudioName    = "out.wav"
	extractedAudioName = "audio.wav"
	inputBaseName      = "input"
)

var (
	errSpeechNotConfigured     = errors.New("speech path is not configured")
	errTranscribeNotConfigured = errors.New("transcription path is not configured")
)

// Dependencies are the collaborators a Pipeline drives. The speech path needs
// Extractor, Recognizer and Synthesizer; the transcription path needs
// AudioExtractor, Blobs and Transcriber.
type Dependencies struct {
	Workspace      *workspace.Manager
	Extractor      model.TextExtractor
	Recognizer     model.Recognizer
	Synthesizer    model.Synthesizer
	AudioExtractor model.AudioExtractor
	Blobs          model.BlobStore
	Transcriber    model.Transcriber
}

type Pipeline struct {
	deps   Dependencies
	chunks *speech.ChunkSynthesizer
	cfg    model.PipelineConfig
}

func New(deps Dependencies, opts ...model.PipelineOption) (*Pipeline, error) {
	if deps.Workspace == nil {
		return nil, utils.WrapIfNotNil(errors.New("workspace manager is required"))
	}

	cfg := model.ResolvePipelineOpts(opts...)
	p := &Pipeline{deps: deps, cfg: cfg}
	if deps.Synthesizer != nil {
		p.chunks = speech.NewChunkSynthesizer(deps.Synthesizer,
			speech.WithMaxRetries(cfg.MaxRetries),
			speech.WithRetryDelay(cfg.RetryDelay),
		)
	}
	return p, nil
}

func (p *Pipeline) Config() model.PipelineConfig {
	return p.cfg
}

func (p *Pipeline) canSpeak() bool {
	return p.deps.Extractor != nil && p.deps.Recognizer != nil && p.chunks != nil
}

func (p *Pipeline) canTranscribe() bool {
	return p.deps.AudioExtractor != nil && p.deps.Blobs != nil && p.deps.Transcriber != nil
}

// openJob opens a workspace and returns a context whose logs carry the job id.
func (p *Pipeline) openJob(ctx context.Context) (context.Context, *model.Job, error) {
	job, err := p.deps.Workspace.Open(ctx)
	if err != nil {
		return ctx, nil, err
	}
	return logging.WithFields(ctx, map[string]any{"job_id": job.ID}), job, nil
}

// closeJob releases the workspace even when ctx is already canceled.
func (p *Pipeline) closeJob(ctx context.Context, job *model.Job, outcome model.Outcome) {
	if err := p.deps.Workspace.Close(context.WithoutCancel(ctx), job, outcome); err != nil {
		logging.NewLogger(ctx).Errorf("close workspace: %v", err)
	}
}

// persistSource copies the upload into the workspace under input<ext>, keeping
// the extension because extraction dispatches on it.
func (p *Pipeline) persistSource(ctx context.Context, job *model.Job, name string, source io.Reader) (string, error) {
	if source == nil {
		return "", utils.WrapIfNotNil(errors.New("source is required"))
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(strings.TrimSpace(name))))
	path, err := p.deps.Workspace.Track(job, inputBaseName+ext)
	if err != nil {
		return "", err
	}

	file, err := os.Create(path)
	if err != nil {
		return "", &model.WorkspaceIOError{Op: "write", Path: path, Err: err}
	}
	written, copyErr := io.Copy(file, source)
	closeErr := file.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return "", &model.WorkspaceIOError{Op: "write", Path: path, Err: err}
	}

	logging.NewLogger(ctx).Debugf("persisted %d byte source as %s", written, filepath.Base(path))
	return path, nil
}
