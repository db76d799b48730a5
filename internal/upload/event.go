package upload

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventCompleted = "upload.completed"
	EventFailed    = "upload.failed"
)

// Event describes an upload that reached Complete or Error.
type Event struct {
	ID         uuid.UUID
	Key        string
	Nickname   string
	FileName   string
	MediaKind  MediaKind
	Phase      Phase
	Error      string
	FinishedAt time.Time
}

func (e Event) Name() string {
	if e.Phase == PhaseComplete {
		return EventCompleted
	}
	return EventFailed
}

// Notifier is told about every finished upload. Delivery failures are the
// notifier's to log; the upload outcome does not change.
type Notifier interface {
	UploadFinished(ctx context.Context, event Event) error
}
