package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrNoFile     = errors.New("no file selected")
	ErrInProgress = errors.New("upload already in progress")
	ErrCancelled  = errors.New("upload cancelled")
)

// File is a selected local file. Open is called once per transfer attempt.
type File struct {
	Name     string
	MIMEType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// Collaborators are the remote calls an upload goes through.
type Collaborators interface {
	RequestKey(ctx context.Context) (string, error)
	Upload(ctx context.Context, key string, file File, onProgress func(loaded, total int64)) error
	Finalize(ctx context.Context, key string) error
	Status(ctx context.Context, key string) (*Status, error)
}

// Navigator sends the viewer somewhere else once the upload is done.
type Navigator interface {
	NavigateTo(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) NavigateTo(path string) { f(path) }

type Options struct {
	PollInterval    time.Duration
	CallTimeout     time.Duration
	UploadTimeout   time.Duration
	MaxAttempts     int
	RetryInterval   time.Duration
	MaxPollFailures int
	// OnChange receives a snapshot after every state change. It runs on the
	// goroutine that made the change and must not call back into the Flow.
	OnChange func(Snapshot)
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 7 * time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 30 * time.Second
	}
	if o.UploadTimeout <= 0 {
		o.UploadTimeout = 10 * time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = time.Second
	}
	if o.MaxPollFailures <= 0 {
		o.MaxPollFailures = 3
	}
	return o
}

// Snapshot is a copy of the upload state at one point in time.
type Snapshot struct {
	FileName  string    `json:"fileName,omitempty"`
	MediaKind MediaKind `json:"mediaKind"`
	Phase     Phase     `json:"phase"`
	Percent   int       `json:"percent"`
	Key       string    `json:"key,omitempty"`
	Status    *Status   `json:"status,omitempty"`
	Label     string    `json:"label,omitempty"`
	Error     string    `json:"error,omitempty"`
	Redirect  string    `json:"redirect,omitempty"`
}

// Flow drives one upload: request a key, transfer the file, finalize, then
// poll the encoder until it reports complete or error.
type Flow struct {
	collab Collaborators
	nav    Navigator
	opts   Options

	life context.Context
	stop context.CancelFunc

	mu           sync.Mutex
	file         *File
	kind         MediaKind
	phase        Phase
	percent      int
	key          string
	remote       *Status
	errMsg       string
	redirect     string
	pollFailures int
	cancelRun    context.CancelFunc
	task         *Task
	done         chan struct{}
	closed       bool
}

func NewFlow(collab Collaborators, nav Navigator, opts Options) *Flow {
	life, stop := context.WithCancel(context.Background())
	return &Flow{
		collab: collab,
		nav:    nav,
		opts:   opts.withDefaults(),
		life:   life,
		stop:   stop,
		phase:  PhaseIdle,
	}
}

// SelectFile records the file to upload. Selecting while an upload is
// running is refused.
func (f *Flow) SelectFile(file File) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrCancelled
	}
	if f.phase.IsActive() {
		f.mu.Unlock()
		return ErrInProgress
	}
	f.file = &file
	f.kind = KindFromMIME(file.MIMEType)
	f.phase = PhaseSelecting
	f.percent = 0
	f.key = ""
	f.remote = nil
	f.errMsg = ""
	f.redirect = ""
	f.mu.Unlock()

	f.changed()
	return nil
}

// Start runs the key request, transfer and finalize calls on ctx and returns
// once polling has been scheduled. Polling is tied to the Flow, not to ctx;
// it ends on a terminal status or on Cancel.
func (f *Flow) Start(ctx context.Context) error {
	f.mu.Lock()
	switch {
	case f.closed:
		f.mu.Unlock()
		return ErrCancelled
	case f.file == nil:
		f.mu.Unlock()
		return ErrNoFile
	case f.phase.IsActive():
		f.mu.Unlock()
		return ErrInProgress
	}
	file := *f.file
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	f.cancelRun = cancel
	f.phase = PhaseRequestingKey
	f.percent = 0
	f.key = ""
	f.remote = nil
	f.errMsg = ""
	f.redirect = ""
	f.pollFailures = 0
	f.done = make(chan struct{})
	f.mu.Unlock()
	f.changed()

	var key string
	err := retry(runCtx, f.opts, f.opts.CallTimeout, func(ctx context.Context) error {
		k, err := f.collab.RequestKey(ctx)
		key = k
		return err
	})
	if err != nil {
		return f.fail("request upload key", err)
	}
	if !f.advance(PhaseRequestingKey, PhaseUploading, func() { f.key = key }) {
		return ErrCancelled
	}

	err = retry(runCtx, f.opts, f.opts.UploadTimeout, func(ctx context.Context) error {
		return f.collab.Upload(ctx, key, file, f.onProgress)
	})
	if err != nil {
		return f.fail("upload file", err)
	}

	err = retry(runCtx, f.opts, f.opts.CallTimeout, func(ctx context.Context) error {
		return f.collab.Finalize(ctx, key)
	})
	if err != nil {
		return f.fail("finalize upload", err)
	}

	f.mu.Lock()
	if f.phase != PhaseUploading {
		f.mu.Unlock()
		return ErrCancelled
	}
	f.phase = PhasePolling
	f.task = Schedule(f.life, f.opts.PollInterval, func(ctx context.Context) bool {
		return f.poll(ctx, key)
	})
	f.mu.Unlock()
	f.changed()

	slog.Info("upload: polling encoder status", "key", key, "interval", f.opts.PollInterval)
	return nil
}

// Wait blocks until the current attempt is complete or failed, or ctx ends.
func (f *Flow) Wait(ctx context.Context) error {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()
	if done == nil {
		return ErrNoFile
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel tears the flow down: in-flight calls and the poll timer are
// cancelled and an active upload ends in PhaseError. The Flow cannot be
// reused afterwards.
func (f *Flow) Cancel() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	// The phase moves under the same lock as closed so a call failing
	// concurrently can never observe a closed flow that is still active.
	var release func()
	if f.phase.IsActive() {
		release = f.endLocked(PhaseError, ErrCancelled.Error(), "")
	}
	f.mu.Unlock()

	f.stop()
	if release != nil {
		release()
		f.changed()
	}
}

func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Flow) snapshotLocked() Snapshot {
	s := Snapshot{
		MediaKind: f.kind,
		Phase:     f.phase,
		Percent:   f.percent,
		Key:       f.key,
		Error:     f.errMsg,
		Redirect:  f.redirect,
	}
	if f.file != nil {
		s.FileName = f.file.Name
	}
	if f.remote != nil {
		remote := *f.remote
		s.Status = &remote
		s.Label = StatusLabel(remote.Task, f.percent)
	}
	return s
}

func (f *Flow) onProgress(loaded, total int64) {
	f.mu.Lock()
	if f.phase != PhaseUploading {
		f.mu.Unlock()
		return
	}
	next := transferPercent(f.percent, loaded, total)
	if next == f.percent {
		f.mu.Unlock()
		return
	}
	f.percent = next
	f.mu.Unlock()
	f.changed()
}

func (f *Flow) poll(ctx context.Context, key string) bool {
	callCtx, cancel := context.WithTimeout(ctx, f.opts.CallTimeout)
	status, err := f.collab.Status(callCtx, key)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		f.mu.Lock()
		f.pollFailures++
		failures := f.pollFailures
		f.mu.Unlock()
		slog.Warn("upload: status check failed", "key", key, "failures", failures, "error", err)
		if failures >= f.opts.MaxPollFailures {
			f.fail("check upload status", err)
			return false
		}
		return true
	}

	if status == nil {
		f.finish(PhaseError, "upload status unavailable")
		return false
	}

	f.mu.Lock()
	if f.phase != PhasePolling {
		f.mu.Unlock()
		return false
	}
	f.pollFailures = 0
	f.remote = status
	f.percent = pollPercent(status)
	f.mu.Unlock()
	f.changed()

	switch status.Task {
	case TaskComplete:
		f.finishWith(PhaseComplete, "", "/")
		return false
	case TaskError:
		f.finish(PhaseError, "encoding failed")
		return false
	}
	return true
}

// advance moves from one phase to the next unless the flow was finished or
// cancelled in between.
func (f *Flow) advance(from, to Phase, apply func()) bool {
	f.mu.Lock()
	if f.phase != from {
		f.mu.Unlock()
		return false
	}
	apply()
	f.phase = to
	f.mu.Unlock()
	f.changed()
	return true
}

func (f *Flow) fail(step string, err error) error {
	wrapped := fmt.Errorf("%s: %w", step, err)
	f.mu.Lock()
	cancelled := f.closed
	f.mu.Unlock()
	if cancelled {
		return ErrCancelled
	}
	slog.Error("upload: failed", "step", step, "error", err)
	f.finish(PhaseError, wrapped.Error())
	return wrapped
}

// finish ends the current attempt. It reports false when the attempt had
// already ended.
func (f *Flow) finish(phase Phase, message string) bool {
	return f.finishWith(phase, message, "")
}

// finishWith also navigates to redirect, at most once per attempt, before
// waiters are released.
func (f *Flow) finishWith(phase Phase, message, redirect string) bool {
	f.mu.Lock()
	if !f.phase.IsActive() {
		f.mu.Unlock()
		return false
	}
	release := f.endLocked(phase, message, redirect)
	f.mu.Unlock()

	release()
	f.changed()
	return true
}

// endLocked moves an active attempt to its terminal phase. The returned func
// stops the attempt and releases waiters; call it after unlocking f.mu.
func (f *Flow) endLocked(phase Phase, message, redirect string) func() {
	f.phase = phase
	f.errMsg = message
	f.redirect = redirect
	task := f.task
	f.task = nil
	cancelRun := f.cancelRun
	f.cancelRun = nil
	done := f.done

	return func() {
		if task != nil {
			task.Cancel()
		}
		if cancelRun != nil {
			cancelRun()
		}
		if redirect != "" && f.nav != nil {
			f.nav.NavigateTo(redirect)
		}
		if done != nil {
			close(done)
		}
	}
}

func (f *Flow) changed() {
	if f.opts.OnChange == nil {
		return
	}
	f.opts.OnChange(f.Snapshot())
}
