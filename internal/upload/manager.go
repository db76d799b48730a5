package upload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	storeTimeout  = 5 * time.Second
	notifyTimeout = 30 * time.Second
)

// Request is one upload handed to the Manager. Token is forwarded to the
// collaborators; Cleanup runs once the upload has finished.
type Request struct {
	Nickname string
	Token    string
	File     File
	Cleanup  func()
}

type ManagerConfig struct {
	// Collaborators builds the remote calls for one viewer token.
	Collaborators func(token string) Collaborators
	Store         Recorder
	Notifier      Notifier
	Options       Options
	// Retention is how long a finished flow stays in memory.
	Retention     time.Duration
	SweepInterval time.Duration
}

type tracked struct {
	flow     *Flow
	nickname string
	cleanup  func()
	// released guards cleanup and the upload's wg count; both the start
	// goroutine and the finishing record may reach it.
	released sync.Once

	persistMu sync.Mutex
	last      Snapshot
	finished  time.Time
}

// Manager runs uploads in the background and keeps their state in Postgres.
type Manager struct {
	cfg ManagerConfig

	ctx    context.Context
	cancel context.CancelFunc
	// wg counts uploads that have not finished plus their notifications.
	wg sync.WaitGroup

	mu      sync.Mutex
	uploads map[uuid.UUID]*tracked
	now     func() time.Time
	stop    chan struct{}
	stopped bool
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Retention <= 0 {
		cfg.Retention = 15 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		uploads: make(map[uuid.UUID]*tracked),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Begin records the upload and starts its flow in the background.
func (m *Manager) Begin(ctx context.Context, req Request) (uuid.UUID, error) {
	id := uuid.New()
	t := &tracked{nickname: req.Nickname, cleanup: req.Cleanup}

	opts := m.cfg.Options
	opts.OnChange = func(s Snapshot) { m.record(id, t, s) }
	t.flow = NewFlow(m.cfg.Collaborators(req.Token), nil, opts)

	t.last = Snapshot{FileName: req.File.Name, MediaKind: KindFromMIME(req.File.MIMEType), Phase: PhaseSelecting}
	if m.cfg.Store != nil {
		if err := m.cfg.Store.Create(ctx, id, req.Nickname, t.last); err != nil {
			return uuid.Nil, fmt.Errorf("record upload: %w", err)
		}
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return uuid.Nil, ErrCancelled
	}
	m.uploads[id] = t
	m.wg.Add(1)
	m.mu.Unlock()

	if err := t.flow.SelectFile(req.File); err != nil {
		m.mu.Lock()
		delete(m.uploads, id)
		m.mu.Unlock()
		m.wg.Done()
		return uuid.Nil, fmt.Errorf("select file: %w", err)
	}

	go func() {
		err := t.flow.Start(m.ctx)
		if err == nil {
			return
		}
		slog.Warn("upload: start failed", "upload_id", id, "error", err)
		// Refused before any work began, so record never sees a result.
		if !t.flow.Snapshot().Phase.IsFinished() {
			m.release(t)
		}
	}()

	slog.Info("upload: started", "upload_id", id, "file", req.File.Name, "size", req.File.Size)
	return id, nil
}

// Snapshot reports an upload that is still in memory.
func (m *Manager) Snapshot(id uuid.UUID) (Snapshot, error) {
	m.mu.Lock()
	t, ok := m.uploads[id]
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return t.flow.Snapshot(), nil
}

// Owner reports the nickname that started the upload.
func (m *Manager) Owner(id uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.uploads[id]
	if !ok {
		return "", ErrNotFound
	}
	return t.nickname, nil
}

func (m *Manager) Cancel(id uuid.UUID) error {
	m.mu.Lock()
	t, ok := m.uploads[id]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	t.flow.Cancel()
	return nil
}

// Active is the number of uploads still in memory.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}

// Close cancels every upload and waits for pending store writes and
// notifications.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	flows := make([]*Flow, 0, len(m.uploads))
	for _, t := range m.uploads {
		flows = append(flows, t.flow)
	}
	m.mu.Unlock()

	close(m.stop)
	for _, f := range flows {
		f.Cancel()
	}
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) record(id uuid.UUID, t *tracked, s Snapshot) {
	t.persistMu.Lock()
	defer t.persistMu.Unlock()

	prev := t.last
	if prev.Phase.IsFinished() {
		return
	}
	if s.Phase == prev.Phase && s.Percent == prev.Percent && s.Key == prev.Key && taskOf(s) == taskOf(prev) {
		return
	}
	t.last = s

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if !s.Phase.IsFinished() {
		if m.cfg.Store != nil {
			if err := m.cfg.Store.UpdateProgress(ctx, id, s); err != nil {
				slog.Error("upload: failed to store progress", "upload_id", id, "phase", s.Phase, "error", err)
			}
		}
		return
	}

	if m.cfg.Store != nil {
		if err := m.cfg.Store.Finish(ctx, id, s); err != nil {
			slog.Error("upload: failed to store result", "upload_id", id, "phase", s.Phase, "error", err)
		}
	}

	m.mu.Lock()
	t.finished = m.now()
	finishedAt := t.finished
	m.mu.Unlock()

	slog.Info("upload: finished", "upload_id", id, "phase", s.Phase, "key", s.Key, "error", s.Error)

	if m.cfg.Notifier == nil {
		m.release(t)
		return
	}
	event := Event{
		ID:         id,
		Key:        s.Key,
		Nickname:   t.nickname,
		FileName:   s.FileName,
		MediaKind:  s.MediaKind,
		Phase:      s.Phase,
		Error:      s.Error,
		FinishedAt: finishedAt,
	}
	m.wg.Add(1)
	m.release(t)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := m.cfg.Notifier.UploadFinished(ctx, event); err != nil {
			slog.Error("upload: notification failed", "upload_id", id, "event", event.Name(), "error", err)
		}
	}()
}

// release runs the upload's cleanup and drops its wg count, at most once.
func (m *Manager) release(t *tracked) {
	t.released.Do(func() {
		if t.cleanup != nil {
			t.cleanup()
		}
		m.wg.Done()
	})
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

// sweep drops finished flows older than the retention window.
func (m *Manager) sweep() {
	m.mu.Lock()
	cutoff := m.now().Add(-m.cfg.Retention)
	var evicted []*Flow
	for id, t := range m.uploads {
		if !t.finished.IsZero() && t.finished.Before(cutoff) {
			evicted = append(evicted, t.flow)
			delete(m.uploads, id)
		}
	}
	m.mu.Unlock()

	for _, f := range evicted {
		f.Cancel()
	}
}
