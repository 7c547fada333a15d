package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/stretchr/testify/suite"
)

type ManagerSuite struct {
	suite.Suite
	root    string
	now     time.Time
	manager *Manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.root = filepath.Join(s.T().TempDir(), "scratch")
	s.now = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	s.manager = NewManager(s.root, WithClock(func() time.Time { return s.now }))
}

func (s *ManagerSuite) TestOpenCreatesRootAndUniqueDirs() {
	first, err := s.manager.Open(context.Background())
	s.Require().NoError(err)
	second, err := s.manager.Open(context.Background())
	s.Require().NoError(err)

	s.NotEqual(first.ID, second.ID)
	s.DirExists(first.Dir)
	s.DirExists(second.Dir)
	s.Equal(s.root, filepath.Dir(first.Dir))
	s.Equal(s.now, first.CreatedAt)
}

func (s *ManagerSuite) TestOpenFailsOnDuplicateID() {
	manager := NewManager(s.root, WithIDGenerator(func() string { return "fixed" }))
	_, err := manager.Open(context.Background())
	s.Require().NoError(err)

	_, err = manager.Open(context.Background())

	ioErr := &model.WorkspaceIOError{}
	s.Require().ErrorAs(err, &ioErr)
	s.Equal("create", ioErr.Op)
}

func (s *ManagerSuite) TestTrackRecordsArtifactsInOrder() {
	job, err := s.manager.Open(context.Background())
	s.Require().NoError(err)

	input, err := s.manager.Track(job, "input.pdf")
	s.Require().NoError(err)
	output, err := s.manager.Track(job, "out.wav")
	s.Require().NoError(err)

	s.Equal(filepath.Join(job.Dir, "input.pdf"), input)
	s.Equal([]string{input, output}, job.Artifacts())
}

func (s *ManagerSuite) TestTrackRejectsEscapes() {
	job, err := s.manager.Open(context.Background())
	s.Require().NoError(err)

	for _, name := range []string{"../other", "", ".", "a/../../b"} {
		_, err := s.manager.Track(job, name)
		s.Require().ErrorIs(err, errEscapesWorkspace, name)
	}
	s.Empty(job.Artifacts())
}

func (s *ManagerSuite) TestCloseRemovesDirAndIsIdempotent() {
	job, err := s.manager.Open(context.Background())
	s.Require().NoError(err)
	path, err := s.manager.Track(job, "chunk_0.wav")
	s.Require().NoError(err)
	s.Require().NoError(os.WriteFile(path, []byte("data"), 0o600))

	s.Require().NoError(s.manager.Close(context.Background(), job, model.OutcomeFailed))
	s.Require().NoError(s.manager.Close(context.Background(), job, model.OutcomeSucceeded))

	s.NoDirExists(job.Dir)
	s.True(job.Closed())
	s.Equal(model.OutcomeFailed, job.Outcome())
}

func (s *ManagerSuite) TestConcurrentClose() {
	job, err := s.manager.Open(context.Background())
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.manager.Close(context.Background(), job, model.OutcomeAborted))
		}()
	}
	wg.Wait()

	s.NoDirExists(job.Dir)
	s.Equal(model.OutcomeAborted, job.Outcome())
}

func (s *ManagerSuite) TestCloseReportsRemovalFailure() {
	manager := NewManager(s.root, WithRemoveAll(func(string) error { return errors.New("busy") }))
	job, err := manager.Open(context.Background())
	s.Require().NoError(err)

	err = manager.Close(context.Background(), job, model.OutcomeSucceeded)

	ioErr := &model.WorkspaceIOError{}
	s.Require().ErrorAs(err, &ioErr)
	s.Equal("remove", ioErr.Op)
	s.True(job.Closed())
}

func (s *ManagerSuite) TestCloseNilJob() {
	s.NoError(s.manager.Close(context.Background(), nil, model.OutcomeFailed))
}

func (s *ManagerSuite) age(path string, age time.Duration) {
	stamp := s.now.Add(-age)
	s.Require().NoError(os.Chtimes(path, stamp, stamp))
}

func (s *ManagerSuite) TestSweepRemovesOnlyStaleEntries() {
	stale, err := s.manager.Open(context.Background())
	s.Require().NoError(err)
	fresh, err := s.manager.Open(context.Background())
	s.Require().NoError(err)
	strayFile := filepath.Join(s.root, "temp-audio.wav")
	s.Require().NoError(os.WriteFile(strayFile, []byte("x"), 0o600))

	s.age(stale.Dir, 7*time.Hour)
	s.age(strayFile, 6*time.Hour+time.Second)
	s.age(fresh.Dir, 5*time.Hour)

	removed, err := s.manager.Sweep(context.Background(), s.now)

	s.Require().NoError(err)
	s.ElementsMatch([]string{stale.Dir, strayFile}, removed)
	s.NoDirExists(stale.Dir)
	s.NoFileExists(strayFile)
	s.DirExists(fresh.Dir)
}

func (s *ManagerSuite) TestSweepCustomRetention() {
	manager := NewManager(s.root, WithRetention(time.Minute))
	job, err := manager.Open(context.Background())
	s.Require().NoError(err)
	s.age(job.Dir, 2*time.Minute)

	removed, err := manager.Sweep(context.Background(), s.now)

	s.Require().NoError(err)
	s.Equal([]string{job.Dir}, removed)
}

func (s *ManagerSuite) TestSweepMissingRoot() {
	removed, err := NewManager(filepath.Join(s.root, "never")).Sweep(context.Background(), s.now)

	s.Require().NoError(err)
	s.Empty(removed)
}

func (s *ManagerSuite) TestSweepContinuesPastFailures() {
	calls := 0
	manager := NewManager(s.root, WithRemoveAll(func(path string) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("locked: %s", path)
		}
		return os.RemoveAll(path)
	}))
	first, err := manager.Open(context.Background())
	s.Require().NoError(err)
	second, err := manager.Open(context.Background())
	s.Require().NoError(err)
	s.age(first.Dir, 24*time.Hour)
	s.age(second.Dir, 24*time.Hour)

	removed, err := manager.Sweep(context.Background(), s.now)

	ioErr := &model.WorkspaceIOError{}
	s.Require().ErrorAs(err, &ioErr)
	s.Equal("sweep", ioErr.Op)
	s.Len(removed, 1)
	s.Equal(2, calls)
}

func (s *ManagerSuite) TestRunSweepsUntilCanceled() {
	job, err := s.manager.Open(context.Background())
	s.Require().NoError(err)
	s.age(job.Dir, 10*time.Hour)

	manager := NewManager(s.root,
		WithClock(func() time.Time { return s.now }),
		WithSweepInterval(5*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		manager.Run(ctx)
		close(done)
	}()

	s.Eventually(func() bool {
		_, statErr := os.Stat(job.Dir)
		return errors.Is(statErr, os.ErrNotExist)
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("Run did not stop after cancel")
	}
}
