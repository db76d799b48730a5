package upload

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

type fakeCollaborators struct {
	mu sync.Mutex

	key         string
	keyErrs     []error
	uploadErrs  []error
	finalizeErr error
	progress    [][2]int64
	statuses    []*Status
	statusErrs  []error
	blockUpload chan struct{}

	keyCalls      int
	uploadCalls   int
	finalizeCalls int
	statusCalls   int
}

func (c *fakeCollaborators) RequestKey(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keyCalls++
	if len(c.keyErrs) > 0 {
		err := c.keyErrs[0]
		c.keyErrs = c.keyErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return c.key, nil
}

func (c *fakeCollaborators) Upload(ctx context.Context, key string, file File, onProgress func(loaded, total int64)) error {
	c.mu.Lock()
	c.uploadCalls++
	var err error
	if len(c.uploadErrs) > 0 {
		err = c.uploadErrs[0]
		c.uploadErrs = c.uploadErrs[1:]
	}
	progress := c.progress
	block := c.blockUpload
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	for _, p := range progress {
		onProgress(p[0], p[1])
	}
	return nil
}

func (c *fakeCollaborators) Finalize(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finalizeCalls++
	return c.finalizeErr
}

func (c *fakeCollaborators) Status(ctx context.Context, key string) (*Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCalls++
	if len(c.statusErrs) > 0 {
		err := c.statusErrs[0]
		c.statusErrs = c.statusErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(c.statuses) == 0 {
		return &Status{Task: "encoding"}, nil
	}
	s := c.statuses[0]
	if len(c.statuses) > 1 {
		c.statuses = c.statuses[1:]
	}
	return s, nil
}

func (c *fakeCollaborators) calls() (key, upload, finalize, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keyCalls, c.uploadCalls, c.finalizeCalls, c.statusCalls
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) NavigateTo(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type permanentErr struct{ msg string }

func (e permanentErr) Error() string   { return e.msg }
func (e permanentErr) Temporary() bool { return false }

var errFlaky = errors.New("connection reset by peer")

func progressOf(v float64) *float64 { return &v }

func testFile(mime string) File {
	return File{
		Name:     "cat.gif",
		MIMEType: mime,
		Size:     5,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("GIF89")), nil
		},
	}
}

func fastOptions() Options {
	return Options{
		PollInterval:  2 * time.Millisecond,
		CallTimeout:   time.Second,
		UploadTimeout: time.Second,
		MaxAttempts:   3,
		RetryInterval: time.Millisecond,
	}
}

func waitFor(ctx context.Context, f *Flow) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return f.Wait(ctx)
}
