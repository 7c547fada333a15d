package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/Nephrolytics-ai/docvoice/pkg/wav"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) (string, error) {
	return f.text, f.err
}

type fakeRecognizer struct {
	text  string
	err   error
	calls int
}

func (f *fakeRecognizer) Recognize(ctx context.Context, path string) (string, error) {
	f.calls++
	return f.text, f.err
}

// fakeSynthesizer renders each text as its own bytes of PCM, failing texts
// listed in fail on every attempt.
type fakeSynthesizer struct {
	mu    sync.Mutex
	fail  map[string]bool
	texts []string
}

func (f *fakeSynthesizer) SynthesizeToFile(ctx context.Context, text string, path string) error {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	fail := f.fail[text]
	f.mu.Unlock()
	if fail {
		return errors.New("voice unavailable")
	}
	return wav.WriteFile(path, wav.PCM16kMono, []byte(text))
}

type fakeAudioExtractor struct {
	err error
}

func (f *fakeAudioExtractor) ExtractAudio(ctx context.Context, srcPath string, dstPath string) error {
	if f.err != nil {
		return f.err
	}
	return wav.WriteFile(dstPath, wav.PCM16kMono, []byte("extracted audio"))
}

type fakeBlobs struct {
	mu        sync.Mutex
	uploads   map[string][]byte
	deleted   []string
	ttl       time.Duration
	uploadErr error
	signErr   error
	deleteErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{uploads: map[string][]byte{}}
}

func (f *fakeBlobs) Upload(ctx context.Context, localPath string, name string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[name] = data
	return name, nil
}

func (f *fakeBlobs) SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	f.ttl = ttl
	return "https://blobs.example.com/" + name + "?sig=1", nil
}

func (f *fakeBlobs) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.uploads, name)
	return nil
}

type fakeTranscriber struct {
	raw        json.RawMessage
	err        error
	contentURL string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, contentURL string) (json.RawMessage, error) {
	f.contentURL = contentURL
	return f.raw, f.err
}

// failingWriter stands in for a consumer that disconnects mid-stream.
type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}
