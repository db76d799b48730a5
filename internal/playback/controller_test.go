package playback

import (
	"errors"
	"testing"
)

type fakeMedia struct {
	plays, pauses int
	playErr       error
	pauseErr      error
}

func (m *fakeMedia) Play() error {
	m.plays++
	return m.playErr
}

func (m *fakeMedia) Pause() error {
	m.pauses++
	return m.pauseErr
}

func TestNew_InitialState(t *testing.T) {
	if New(&fakeMedia{}, true).State() != Playing {
		t.Error("expected autoplay card to start playing")
	}
	if New(&fakeMedia{}, false).State() != Paused {
		t.Error("expected non-autoplay card to start paused")
	}
}

func TestAutoplayLocked_IgnoresEveryHandler(t *testing.T) {
	media := &fakeMedia{}
	c := New(media, true)

	steps := []func() error{c.PointerEnter, c.PointerLeave, c.Activate, c.Activate, c.PointerLeave}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: unexpected error %v", i, err)
		}
		if !c.Playing() {
			t.Fatalf("step %d: autoplay card stopped playing", i)
		}
	}
	if media.plays != 0 || media.pauses != 0 {
		t.Errorf("expected no media calls, got %d plays and %d pauses", media.plays, media.pauses)
	}
}

func TestPointerEnterAndLeave(t *testing.T) {
	media := &fakeMedia{}
	c := New(media, false)

	if err := c.PointerEnter(); err != nil {
		t.Fatal(err)
	}
	if !c.Playing() || !c.Hovering() {
		t.Errorf("expected playing and hovering after enter, got playing=%v hovering=%v", c.Playing(), c.Hovering())
	}

	if err := c.PointerLeave(); err != nil {
		t.Fatal(err)
	}
	if c.Playing() || c.Hovering() {
		t.Errorf("expected paused and not hovering after leave, got playing=%v hovering=%v", c.Playing(), c.Hovering())
	}
	if media.plays != 1 || media.pauses != 1 {
		t.Errorf("expected one play and one pause, got %d and %d", media.plays, media.pauses)
	}
}

func TestActivate(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(c *Controller)
		wantPlaying bool
		wantPlays   int
		wantPauses  int
	}{
		{
			name:        "paused card starts on tap",
			setup:       func(c *Controller) {},
			wantPlaying: true,
			wantPlays:   1,
		},
		{
			name: "playing card without hover pauses on tap",
			setup: func(c *Controller) {
				_ = c.Activate()
			},
			wantPlaying: false,
			wantPlays:   1,
			wantPauses:  1,
		},
		{
			name: "playing card under pointer keeps playing on click",
			setup: func(c *Controller) {
				_ = c.PointerEnter()
			},
			wantPlaying: true,
			wantPlays:   2,
		},
		{
			name: "card paused by leave restarts on click",
			setup: func(c *Controller) {
				_ = c.PointerEnter()
				_ = c.PointerLeave()
			},
			wantPlaying: true,
			wantPlays:   2,
			wantPauses:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			media := &fakeMedia{}
			c := New(media, false)
			tt.setup(c)

			if err := c.Activate(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Playing() != tt.wantPlaying {
				t.Errorf("expected playing=%v, got %v", tt.wantPlaying, c.Playing())
			}
			if media.plays != tt.wantPlays || media.pauses != tt.wantPauses {
				t.Errorf("expected %d plays and %d pauses, got %d and %d", tt.wantPlays, tt.wantPauses, media.plays, media.pauses)
			}
		})
	}
}

func TestRefusedPlayKeepsState(t *testing.T) {
	blocked := errors.New("NotAllowedError")
	media := &fakeMedia{playErr: blocked}
	c := New(media, false)

	err := c.PointerEnter()
	if !errors.Is(err, ErrPlayback) {
		t.Fatalf("expected ErrPlayback, got %v", err)
	}
	if !errors.Is(err, blocked) {
		t.Errorf("expected wrapped media error, got %v", err)
	}
	if c.Playing() {
		t.Error("expected card to stay paused when play is refused")
	}
	if !c.Hovering() {
		t.Error("expected hover to follow the pointer even when play is refused")
	}
	if c.Err() == nil {
		t.Error("expected Err to report the refused play")
	}

	media.playErr = nil
	if err := c.Activate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Playing() || c.Err() != nil {
		t.Errorf("expected recovery after a successful play, playing=%v err=%v", c.Playing(), c.Err())
	}
}

func TestRefusedPauseKeepsPlaying(t *testing.T) {
	media := &fakeMedia{pauseErr: errors.New("detached")}
	c := New(media, false)
	_ = c.Activate()

	if err := c.Activate(); !errors.Is(err, ErrPlayback) {
		t.Fatalf("expected ErrPlayback, got %v", err)
	}
	if !c.Playing() {
		t.Error("expected card to keep playing when pause is refused")
	}
}

func TestNilMediaIsSilent(t *testing.T) {
	c := New(nil, false)
	if err := c.Activate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Playing() {
		t.Error("expected state to advance without a media handle")
	}
}

func TestOverlayButton(t *testing.T) {
	c := New(&fakeMedia{}, false)

	c.ButtonHover()
	if !c.ButtonHovered() {
		t.Error("expected button hover flag")
	}

	path := c.ButtonPress("jane doe", "spinning-cat")
	if path != "/jane%20doe/spinning-cat" {
		t.Errorf("unexpected detail path %q", path)
	}
	if !c.ButtonClicked() {
		t.Error("expected button clicked flag")
	}
	if c.Playing() {
		t.Error("pressing the overlay button must not start playback")
	}

	c.ButtonLeave()
	if c.ButtonHovered() || c.ButtonClicked() {
		t.Error("expected leave to clear both button flags")
	}
}

func TestStateString(t *testing.T) {
	if Playing.String() != "playing" || Paused.String() != "paused" {
		t.Errorf("unexpected names %q %q", Playing, Paused)
	}
	if State(9).String() != "unknown" {
		t.Errorf("expected unknown, got %q", State(9))
	}
}
