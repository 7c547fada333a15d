package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/wav"
	"github.com/stretchr/testify/suite"
)

// scriptedBackend fails the first failures[text] calls for a text, writing a
// short file when truncate is set, then writes a valid fragment.
type scriptedBackend struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
	truncate bool
	inFlight atomic.Int32
	peak     atomic.Int32
	hold     time.Duration
}

func newScriptedBackend() *scriptedBackend {
	return &scriptedBackend{failures: map[string]int{}, calls: map[string]int{}}
}

func (b *scriptedBackend) SynthesizeToFile(ctx context.Context, text string, path string) error {
	current := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		peak := b.peak.Load()
		if current <= peak || b.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	if b.hold > 0 {
		time.Sleep(b.hold)
	}

	b.mu.Lock()
	b.calls[text]++
	call := b.calls[text]
	fail := call <= b.failures[text]
	b.mu.Unlock()

	if fail {
		if b.truncate {
			return os.WriteFile(path, []byte("RIFF"), 0o600)
		}
		return fmt.Errorf("service unavailable for %q", text)
	}
	return wav.WriteFile(path, wav.PCM16kMono, []byte(text+" pcm"))
}

func (b *scriptedBackend) callCount(text string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[text]
}

type ChunkSynthesizerSuite struct {
	suite.Suite
	dir     string
	backend *scriptedBackend
	delays  []time.Duration
}

func TestChunkSynthesizerSuite(t *testing.T) {
	suite.Run(t, new(ChunkSynthesizerSuite))
}

func (s *ChunkSynthesizerSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.backend = newScriptedBackend()
	s.delays = nil
}

func (s *ChunkSynthesizerSuite) newSynthesizer(opts ...ChunkOption) *ChunkSynthesizer {
	record := func(ctx context.Context, d time.Duration) error {
		s.delays = append(s.delays, d)
		return ctx.Err()
	}
	return NewChunkSynthesizer(s.backend, append([]ChunkOption{WithSleep(record)}, opts...)...)
}

func (s *ChunkSynthesizerSuite) TestSucceedsFirstAttempt() {
	fragment, err := s.newSynthesizer().Synthesize(context.Background(), model.TextChunk{Index: 4, Text: "hello"}, s.dir)

	s.Require().NoError(err)
	s.Equal(4, fragment.Index)
	s.Equal(filepath.Join(s.dir, "chunk_4.wav"), fragment.Path)
	s.Equal(int64(wav.HeaderSize+len("hello pcm")), fragment.Size)
	s.Empty(s.delays)
}

func (s *ChunkSynthesizerSuite) TestRetriesWithGrowingDelay() {
	s.backend.failures["hello"] = 2

	fragment, err := s.newSynthesizer().Synthesize(context.Background(), model.TextChunk{Index: 0, Text: "hello"}, s.dir)

	s.Require().NoError(err)
	s.FileExists(fragment.Path)
	s.Equal(3, s.backend.callCount("hello"))
	s.Equal([]time.Duration{300 * time.Millisecond, 600 * time.Millisecond}, s.delays)
}

func (s *ChunkSynthesizerSuite) TestShortOutputCountsAsFailure() {
	s.backend.failures["hello"] = 1
	s.backend.truncate = true

	fragment, err := s.newSynthesizer().Synthesize(context.Background(), model.TextChunk{Index: 0, Text: "hello"}, s.dir)

	s.Require().NoError(err)
	s.Equal(2, s.backend.callCount("hello"))
	s.Greater(fragment.Size, int64(wav.HeaderSize))
}

func (s *ChunkSynthesizerSuite) TestExhaustedRetriesLeaveNoFile() {
	s.backend.failures["hello"] = 10

	_, err := s.newSynthesizer(WithMaxRetries(3)).Synthesize(context.Background(), model.TextChunk{Index: 2, Text: "hello"}, s.dir)

	failed := &model.ChunkSynthesisFailedError{}
	s.Require().ErrorAs(err, &failed)
	s.Equal(2, failed.Index)
	s.Equal(3, failed.Attempts)
	s.Contains(err.Error(), "service unavailable")
	s.NoFileExists(filepath.Join(s.dir, "chunk_2.wav"))
	s.Equal(3, s.backend.callCount("hello"))
}

func (s *ChunkSynthesizerSuite) TestExhaustedAfterShortFragments() {
	s.backend.failures["hello"] = 10
	s.backend.truncate = true

	_, err := s.newSynthesizer().Synthesize(context.Background(), model.TextChunk{Index: 1, Text: "hello"}, s.dir)

	s.Require().True(errors.Is(err, wav.ErrShortFragment))
	s.NoFileExists(filepath.Join(s.dir, "chunk_1.wav"))
}

func (s *ChunkSynthesizerSuite) TestCanceledContextStopsRetrying() {
	s.backend.failures["hello"] = 10
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.newSynthesizer().Synthesize(ctx, model.TextChunk{Index: 0, Text: "hello"}, s.dir)

	failed := &model.ChunkSynthesisFailedError{}
	s.Require().ErrorAs(err, &failed)
	s.Equal(1, failed.Attempts)
}

func (s *ChunkSynthesizerSuite) TestEmptyChunkIsRejected() {
	_, err := s.newSynthesizer().Synthesize(context.Background(), model.TextChunk{Index: 0, Text: "  "}, s.dir)

	s.Require().ErrorIs(err, errEmptyChunk)
	s.Zero(s.backend.callCount("  "))
}

func (s *ChunkSynthesizerSuite) chunks(n int) []model.TextChunk {
	chunks := make([]model.TextChunk, n)
	for i := range chunks {
		chunks[i] = model.TextChunk{Index: i, Text: fmt.Sprintf("chunk text %d", i)}
	}
	return chunks
}

func (s *ChunkSynthesizerSuite) TestSynthesizeAllOrdersByIndex() {
	s.backend.hold = 5 * time.Millisecond

	fragments, err := s.newSynthesizer().SynthesizeAll(context.Background(), s.chunks(8), s.dir, 4)

	s.Require().NoError(err)
	s.Require().Len(fragments, 8)
	for i, fragment := range fragments {
		s.Equal(i, fragment.Index)
		s.Equal(filepath.Join(s.dir, FragmentName(i)), fragment.Path)
	}
	s.LessOrEqual(s.backend.peak.Load(), int32(4))
}

func (s *ChunkSynthesizerSuite) TestSynthesizeAllSequentialByDefault() {
	s.backend.hold = 2 * time.Millisecond

	_, err := s.newSynthesizer().SynthesizeAll(context.Background(), s.chunks(4), s.dir, 0)

	s.Require().NoError(err)
	s.Equal(int32(1), s.backend.peak.Load())
}

func (s *ChunkSynthesizerSuite) TestSynthesizeAllFailsOnFirstExhaustedChunk() {
	s.backend.failures["chunk text 1"] = 10

	fragments, err := s.newSynthesizer(WithRetryDelay(0)).SynthesizeAll(context.Background(), s.chunks(3), s.dir, 1)

	failed := &model.ChunkSynthesisFailedError{}
	s.Require().ErrorAs(err, &failed)
	s.Equal(1, failed.Index)
	s.Nil(fragments)
	s.Zero(s.backend.callCount("chunk text 2"))
}

func (s *ChunkSynthesizerSuite) TestSynthesizeAllWithCanceledContextCallsNothing() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fragments, err := s.newSynthesizer().SynthesizeAll(ctx, s.chunks(5), s.dir, 3)

	s.Require().ErrorIs(err, context.Canceled)
	s.Nil(fragments)
	for i := 0; i < 5; i++ {
		s.Zero(s.backend.callCount(fmt.Sprintf("chunk text %d", i)))
	}
	entries, err := os.ReadDir(s.dir)
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *ChunkSynthesizerSuite) TestSynthesizeAllStopsAfterFailureUnderConcurrency() {
	s.backend.failures["chunk text 0"] = 10

	fragments, err := s.newSynthesizer(WithRetryDelay(0), WithMaxRetries(1)).
		SynthesizeAll(context.Background(), s.chunks(2), s.dir, 2)

	failed := &model.ChunkSynthesisFailedError{}
	s.Require().ErrorAs(err, &failed)
	s.Equal(0, failed.Index)
	s.Nil(fragments)
	s.NoFileExists(filepath.Join(s.dir, FragmentName(0)))
}
