package upload

import (
	"fmt"
	"math"
)

const (
	TaskComplete = "complete"
	TaskError    = "error"

	// taskEncodingPending is what the encoder reports before it has picked
	// the upload up.
	taskEncodingPending = "NotFoundo"

	// defaultProgress keeps the ring from showing 0% while the encoder has
	// not reported any progress yet.
	defaultProgress = 0.01
)

// Status is one reading of the remote encoding status.
type Status struct {
	Task     string   `json:"task"`
	Progress *float64 `json:"progress,omitempty"`
}

// StatusLabel is the text under the progress ring.
func StatusLabel(task string, percent int) string {
	if task == taskEncodingPending {
		task = "preparing encoding"
	}
	return fmt.Sprintf("%s %d%%", task, percent)
}

// pollPercent scales a remote progress fraction to a whole percentage,
// substituting defaultProgress when the reading has none.
func pollPercent(s *Status) int {
	progress := defaultProgress
	if s != nil && s.Progress != nil && *s.Progress != 0 {
		progress = *s.Progress
	}
	// The epsilon absorbs float error such as 0.29*100 = 28.999999999999996.
	percent := math.Floor(progress*100 + 1e-9)
	if percent > 100 {
		return 100
	}
	if percent < 0 {
		return 0
	}
	return int(percent)
}

// transferPercent is floor(loaded*100/total), kept at previous when lower.
func transferPercent(previous int, loaded, total int64) int {
	if total <= 0 {
		return previous
	}
	percent := int(loaded * 100 / total)
	if percent > 100 {
		percent = 100
	}
	if previous > percent {
		return previous
	}
	return percent
}
