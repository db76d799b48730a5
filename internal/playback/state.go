package playback

// State is the play/pause state of a gif card.
type State int

const (
	Paused State = iota
	Playing
)

func (s State) String() string {
	switch s {
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}
