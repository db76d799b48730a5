package notify

import (
	"context"
	"log/slog"

	"github.com/rngallery/rngallery/internal/upload"
)

var _ upload.Notifier = (*MultiUploadNotifier)(nil)

// MultiUploadNotifier fans out upload notifications to all registered notifiers.
type MultiUploadNotifier struct {
	notifiers []upload.Notifier
}

// NewMultiUploadNotifier skips nil entries so optional channels can be passed unconditionally.
func NewMultiUploadNotifier(notifiers ...upload.Notifier) *MultiUploadNotifier {
	m := &MultiUploadNotifier{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

func (m *MultiUploadNotifier) Len() int {
	return len(m.notifiers)
}

func (m *MultiUploadNotifier) UploadFinished(ctx context.Context, event upload.Event) error {
	for _, n := range m.notifiers {
		if err := n.UploadFinished(ctx, event); err != nil {
			slog.Error("multi-notifier: upload notification failed", "upload_id", event.ID, "event", event.Name(), "error", err)
		}
	}
	return nil
}
