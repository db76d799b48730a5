package upload

import "fmt"

// Phase is the step an upload attempt is in.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSelecting
	PhaseRequestingKey
	PhaseUploading
	PhasePolling
	PhaseComplete
	PhaseError
)

var phaseNames = map[Phase]string{
	PhaseIdle:          "idle",
	PhaseSelecting:     "selecting",
	PhaseRequestingKey: "requesting_key",
	PhaseUploading:     "uploading",
	PhasePolling:       "polling",
	PhaseComplete:      "complete",
	PhaseError:         "error",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range phaseNames {
		if name == string(text) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown upload phase %q", text)
}

// IsActive is true while network calls or polling are outstanding.
func (p Phase) IsActive() bool {
	return p == PhaseRequestingKey || p == PhaseUploading || p == PhasePolling
}

func (p Phase) IsFinished() bool {
	return p == PhaseComplete || p == PhaseError
}
