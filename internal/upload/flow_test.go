package upload

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSelectFile_DerivesMediaKind(t *testing.T) {
	tests := []struct {
		mime string
		want MediaKind
	}{
		{"image/gif", KindGIF},
		{"video/mp4", KindVideo},
		{"video/quicktime", KindVideo},
		{"", KindVideo},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			f := NewFlow(&fakeCollaborators{}, nil, fastOptions())
			if err := f.SelectFile(testFile(tt.mime)); err != nil {
				t.Fatalf("select: %v", err)
			}
			s := f.Snapshot()
			if s.MediaKind != tt.want {
				t.Errorf("expected %s, got %s", tt.want, s.MediaKind)
			}
			if s.Phase != PhaseSelecting {
				t.Errorf("expected phase selecting, got %s", s.Phase)
			}
		})
	}
}

func TestStart_WithoutFile(t *testing.T) {
	f := NewFlow(&fakeCollaborators{}, nil, fastOptions())
	if err := f.Start(context.Background()); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}
}

func TestStart_CompletesAndNavigatesOnce(t *testing.T) {
	collab := &fakeCollaborators{
		key: "ShinyBlueCat",
		statuses: []*Status{
			{Task: "uploading", Progress: progressOf(0.1)},
			{Task: "uploading", Progress: progressOf(0.6)},
			{Task: TaskComplete},
		},
	}
	nav := &recordingNavigator{}
	f := NewFlow(collab, nav, fastOptions())
	_ = f.SelectFile(testFile("image/gif"))

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := waitFor(context.Background(), f); err != nil {
		t.Fatalf("wait: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	_, _, _, statusCalls := collab.calls()
	if statusCalls != 3 {
		t.Errorf("expected polling to stop after 3 readings, got %d", statusCalls)
	}
	if paths := nav.visited(); len(paths) != 1 || paths[0] != "/" {
		t.Errorf("expected exactly one navigation to /, got %v", paths)
	}

	s := f.Snapshot()
	if s.Phase != PhaseComplete {
		t.Errorf("expected phase complete, got %s", s.Phase)
	}
	if s.Redirect != "/" {
		t.Errorf("expected redirect /, got %q", s.Redirect)
	}
	if s.Key != "ShinyBlueCat" {
		t.Errorf("expected key to be kept, got %q", s.Key)
	}
}

func TestStart_EncoderErrorStopsWithoutNavigation(t *testing.T) {
	collab := &fakeCollaborators{
		key: "k",
		statuses: []*Status{
			{Task: "encoding", Progress: progressOf(0.2)},
			{Task: TaskError},
		},
	}
	nav := &recordingNavigator{}
	f := NewFlow(collab, nav, fastOptions())
	_ = f.SelectFile(testFile("video/mp4"))

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := waitFor(context.Background(), f); err != nil {
		t.Fatalf("wait: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	_, _, _, statusCalls := collab.calls()
	if statusCalls != 2 {
		t.Errorf("expected polling to stop after 2 readings, got %d", statusCalls)
	}
	if paths := nav.visited(); len(paths) != 0 {
		t.Errorf("expected no navigation, got %v", paths)
	}
	if s := f.Snapshot(); s.Phase != PhaseError || s.Error == "" {
		t.Errorf("expected error phase with message, got %s %q", s.Phase, s.Error)
	}
}

func TestStart_MissingStatusStopsPolling(t *testing.T) {
	collab := &fakeCollaborators{key: "k", statuses: []*Status{nil}}
	f := NewFlow(collab, nil, fastOptions())
	_ = f.SelectFile(testFile("image/gif"))

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := waitFor(context.Background(), f); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if s := f.Snapshot(); s.Phase != PhaseError {
		t.Errorf("expected error phase, got %s", s.Phase)
	}
}

func TestTransferPercentIsMonotonic(t *testing.T) {
	collab := &fakeCollaborators{
		key: "k",
		progress: [][2]int64{
			{10, 100}, {55, 100}, {40, 100}, {99, 100}, {100, 100},
		},
	}

	var mu sync.Mutex
	var seen []int
	opts := fastOptions()
	opts.PollInterval = time.Hour
	opts.OnChange = func(s Snapshot) {
		if s.Phase == PhaseUploading {
			mu.Lock()
			seen = append(seen, s.Percent)
			mu.Unlock()
		}
	}

	f := NewFlow(collab, nil, opts)
	defer f.Cancel()
	_ = f.SelectFile(testFile("image/gif"))
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("percent regressed: %v", seen)
		}
	}
	if len(seen) == 0 || seen[len(seen)-1] != 100 {
		t.Errorf("expected transfer to reach 100, got %v", seen)
	}
}

func TestPollingReplacesPercentWithRemoteProgress(t *testing.T) {
	collab := &fakeCollaborators{
		key:      "k",
		progress: [][2]int64{{100, 100}},
		statuses: []*Status{{Task: "NotFoundo"}},
	}
	f := NewFlow(collab, nil, fastOptions())
	defer f.Cancel()
	_ = f.SelectFile(testFile("image/gif"))
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := f.Snapshot(); s.Status != nil {
			if s.Percent != 1 {
				t.Errorf("expected default progress of 1%%, got %d", s.Percent)
			}
			if s.Label != "preparing encoding 1%" {
				t.Errorf("unexpected label %q", s.Label)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no status reading arrived")
}

func TestStart_RetriesTransientFailures(t *testing.T) {
	collab := &fakeCollaborators{
		key:        "k",
		keyErrs:    []error{errFlaky, nil},
		uploadErrs: []error{errFlaky, errFlaky, nil},
		statuses:   []*Status{{Task: TaskComplete}},
	}
	f := NewFlow(collab, nil, fastOptions())
	_ = f.SelectFile(testFile("image/gif"))

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := waitFor(context.Background(), f); err != nil {
		t.Fatalf("wait: %v", err)
	}
	keyCalls, uploadCalls, _, _ := collab.calls()
	if keyCalls != 2 || uploadCalls != 3 {
		t.Errorf("expected 2 key calls and 3 upload calls, got %d and %d", keyCalls, uploadCalls)
	}
	if s := f.Snapshot(); s.Phase != PhaseComplete {
		t.Errorf("expected complete, got %s", s.Phase)
	}
}

func TestStart_GivesUpAfterMaxAttempts(t *testing.T) {
	collab := &fakeCollaborators{keyErrs: []error{errFlaky, errFlaky, errFlaky, errFlaky}}
	f := NewFlow(collab, nil, fastOptions())
	_ = f.SelectFile(testFile("image/gif"))

	err := f.Start(context.Background())
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected flaky error, got %v", err)
	}
	keyCalls, uploadCalls, _, _ := collab.calls()
	if keyCalls != 3 {
		t.Errorf("expected 3 attempts, got %d", keyCalls)
	}
	if uploadCalls != 0 {
		t.Errorf("expected no upload before a key is issued, got %d", uploadCalls)
	}
	s := f.Snapshot()
	if s.Phase != PhaseError || s.Error == "" {
		t.Errorf("expected error phase with message, got %s %q", s.Phase, s.Error)
	}
	if waitErr := waitFor(context.Background(), f); waitErr != nil {
		t.Errorf("expected Wait to return after failure, got %v", waitErr)
	}
}

func TestStart_PermanentFailureIsNotRetried(t *testing.T) {
	collab := &fakeCollaborators{key: "k", finalizeErr: permanentErr{"gif already exists"}}
	f := NewFlow(collab, nil, fastOptions())
	_ = f.SelectFile(testFile("image/gif"))

	if err := f.Start(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	_, _, finalizeCalls, _ := collab.calls()
	if finalizeCalls != 1 {
		t.Errorf("expected one finalize call, got %d", finalizeCalls)
	}
}

func TestPollingGivesUpAfterRepeatedFailures(t *testing.T) {
	collab := &fakeCollaborators{key: "k", statusErrs: []error{errFlaky, errFlaky, errFlaky}}
	opts := fastOptions()
	opts.MaxPollFailures = 3
	f := NewFlow(collab, nil, opts)
	_ = f.SelectFile(testFile("image/gif"))

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := waitFor(context.Background(), f); err != nil {
		t.Fatalf("wait: %v", err)
	}
	_, _, _, statusCalls := collab.calls()
	if statusCalls != 3 {
		t.Errorf("expected 3 status calls, got %d", statusCalls)
	}
	if s := f.Snapshot(); s.Phase != PhaseError {
		t.Errorf("expected error phase, got %s", s.Phase)
	}
}

func TestCancel_DuringTransfer(t *testing.T) {
	collab := &fakeCollaborators{key: "k", blockUpload: make(chan struct{})}
	f := NewFlow(collab, nil, fastOptions())
	_ = f.SelectFile(testFile("image/gif"))

	errCh := make(chan error, 1)
	go func() { errCh <- f.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for f.Snapshot().Phase != PhaseUploading {
		if time.Now().After(deadline) {
			t.Fatal("upload never started")
		}
		time.Sleep(time.Millisecond)
	}

	f.Cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Cancel")
	}
	if s := f.Snapshot(); s.Phase != PhaseError || s.Error != ErrCancelled.Error() {
		t.Errorf("expected cancelled error phase, got %s %q", s.Phase, s.Error)
	}
	if err := f.SelectFile(testFile("image/gif")); !errors.Is(err, ErrCancelled) {
		t.Errorf("expected cancelled flow to refuse new files, got %v", err)
	}
}

// cancellingCollaborators cancels the flow from inside the transfer and then
// fails the call, the way a dropped connection races a user's cancel.
type cancellingCollaborators struct {
	*fakeCollaborators
	flow *Flow
}

func (c *cancellingCollaborators) Upload(ctx context.Context, key string, file File, onProgress func(loaded, total int64)) error {
	c.flow.Cancel()
	return permanentErr{msg: "connection closed"}
}

func TestCancel_FailingCallEndsOnceAsCancelled(t *testing.T) {
	var mu sync.Mutex
	var terminal []Snapshot
	opts := fastOptions()
	opts.OnChange = func(s Snapshot) {
		if s.Phase.IsFinished() {
			mu.Lock()
			terminal = append(terminal, s)
			mu.Unlock()
		}
	}
	collab := &cancellingCollaborators{fakeCollaborators: &fakeCollaborators{key: "k"}}
	f := NewFlow(collab, nil, opts)
	collab.flow = f
	_ = f.SelectFile(testFile("image/gif"))

	err := f.Start(context.Background())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if s := f.Snapshot(); s.Phase != PhaseError || s.Error != ErrCancelled.Error() {
		t.Errorf("expected the attempt to be finished as cancelled when Start returns, got %s %q", s.Phase, s.Error)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(terminal) != 1 {
		t.Fatalf("expected one terminal change, got %d", len(terminal))
	}
	if terminal[0].Error != ErrCancelled.Error() {
		t.Errorf("expected the cancel to win over the failed call, got %q", terminal[0].Error)
	}
}

func TestCancel_StopsPolling(t *testing.T) {
	collab := &fakeCollaborators{key: "k"}
	f := NewFlow(collab, nil, fastOptions())
	_ = f.SelectFile(testFile("image/gif"))
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	f.Cancel()
	_, _, _, before := collab.calls()
	time.Sleep(20 * time.Millisecond)
	_, _, _, after := collab.calls()

	if after > before+1 {
		t.Errorf("expected polling to stop after cancel, status calls went from %d to %d", before, after)
	}
	if s := f.Snapshot(); s.Phase != PhaseError {
		t.Errorf("expected error phase after cancel, got %s", s.Phase)
	}
}

func TestSelectFile_RefusedWhileActive(t *testing.T) {
	collab := &fakeCollaborators{key: "k"}
	opts := fastOptions()
	opts.PollInterval = time.Hour
	f := NewFlow(collab, nil, opts)
	defer f.Cancel()
	_ = f.SelectFile(testFile("image/gif"))
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := f.SelectFile(testFile("video/mp4")); !errors.Is(err, ErrInProgress) {
		t.Errorf("expected ErrInProgress, got %v", err)
	}
	if err := f.Start(context.Background()); !errors.Is(err, ErrInProgress) {
		t.Errorf("expected ErrInProgress, got %v", err)
	}
}
