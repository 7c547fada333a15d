// Package workspace owns per-job scratch directories: creation, artifact
// bookkeeping, guaranteed removal, and a periodic sweep of leftovers.
package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/docvoice/pkg/logging"
	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/google/uuid"
)

const (
	DefaultRetention     = 6 * time.Hour
	DefaultSweepInterval = 30 * time.Minute
)

var errEscapesWorkspace = errors.New("artifact path escapes the job directory")

type Option func(*Manager)

// WithRetention sets how old a root entry must be before Sweep removes it.
func WithRetention(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retention = d
		}
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) {
		if newID != nil {
			m.newID = newID
		}
	}
}

// WithRemoveAll replaces os.RemoveAll, letting tests simulate undeletable directories.
func WithRemoveAll(removeAll func(path string) error) Option {
	return func(m *Manager) {
		if removeAll != nil {
			m.removeAll = removeAll
		}
	}
}

type Manager struct {
	root          string
	retention     time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	newID         func() string
	removeAll     func(path string) error
}

func NewManager(root string, opts ...Option) *Manager {
	m := &Manager{
		root:          filepath.Clean(root),
		retention:     DefaultRetention,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		newID:         uuid.NewString,
		removeAll:     os.RemoveAll,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Root() string {
	return m.root
}

// Open creates a fresh <root>/<id> directory for a new job.
func (m *Manager) Open(ctx context.Context) (*model.Job, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, &model.WorkspaceIOError{Op: "create root", Path: m.root, Err: err}
	}

	id := m.newID()
	dir := filepath.Join(m.root, id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, &model.WorkspaceIOError{Op: "create", Path: dir, Err: err}
	}

	job := model.NewJob(id, dir, m.now())
	logging.NewLogger(ctx).WithField("job_id", id).Debugf("opened workspace %s", dir)
	return job, nil
}

// Track resolves name inside the job directory and records it as an artifact.
func (m *Manager) Track(job *model.Job, name string) (string, error) {
	path := filepath.Join(job.Dir, name)
	rel, err := filepath.Rel(job.Dir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &model.WorkspaceIOError{Op: "track", Path: path, Err: errEscapesWorkspace}
	}
	job.RecordArtifact(path)
	return path, nil
}

// Close removes the job directory and records outcome. It may be called any
// number of times from any goroutine; the first outcome is the one kept.
func (m *Manager) Close(ctx context.Context, job *model.Job, outcome model.Outcome) error {
	if job == nil {
		return nil
	}

	first := job.MarkClosed(outcome)
	if err := m.removeAll(job.Dir); err != nil {
		logging.NewLogger(ctx).WithField("job_id", job.ID).Errorf("remove workspace: %v", err)
		return &model.WorkspaceIOError{Op: "remove", Path: job.Dir, Err: err}
	}
	if first {
		logging.NewLogger(ctx).WithField("job_id", job.ID).Infof("closed workspace outcome=%s", outcome)
	}
	return nil
}

// Sweep removes every entry directly under the root whose modification time is
// older than the retention window at now. It returns the removed paths; one
// entry failing does not stop the rest.
func (m *Manager) Sweep(ctx context.Context, now time.Time) ([]string, error) {
	log := logging.NewLogger(ctx)

	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &model.WorkspaceIOError{Op: "list", Path: m.root, Err: err}
	}

	cutoff := now.Add(-m.retention)
	var (
		removed []string
		errs    []error
	)
	for _, entry := range entries {
		path := filepath.Join(m.root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, &model.WorkspaceIOError{Op: "stat", Path: path, Err: err})
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := m.removeAll(path); err != nil {
			errs = append(errs, &model.WorkspaceIOError{Op: "sweep", Path: path, Err: err})
			continue
		}
		removed = append(removed, path)
	}

	if len(removed) > 0 {
		log.Infof("swept %d stale workspace entries from %s", len(removed), m.root)
	}
	return removed, errors.Join(errs...)
}

// Run sweeps once immediately and then every sweep interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	log := logging.NewLogger(ctx)
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		if _, err := m.Sweep(ctx, m.now()); err != nil {
			log.Warnf("workspace sweep: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
