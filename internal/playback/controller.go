// Package playback turns pointer and tap events on a gif card into play and
// pause calls against the embedded media element.
package playback

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrPlayback matches every error returned by a MediaHandle through the controller.
var ErrPlayback = errors.New("playback failed")

// MediaHandle is the media element embedded in a card.
type MediaHandle interface {
	Play() error
	Pause() error
}

// PlaybackError wraps a refused Play or Pause, typically a platform autoplay
// restriction.
type PlaybackError struct {
	Op  string
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

func (e *PlaybackError) Is(target error) bool { return target == ErrPlayback }

// Controller owns the playback state of one card. It is driven from a single
// event loop and is not safe for concurrent use.
//
// With autoplay locked every handler is a no-op and the card keeps playing.
type Controller struct {
	media    MediaHandle
	autoplay bool

	playing        bool
	hovering       bool
	buttonHovering bool
	buttonClicked  bool
	lastErr        error
}

func New(media MediaHandle, autoplay bool) *Controller {
	return &Controller{media: media, autoplay: autoplay, playing: autoplay}
}

func (c *Controller) PointerEnter() error {
	if c.autoplay {
		return nil
	}
	c.hovering = true
	if err := c.play(); err != nil {
		return err
	}
	c.playing = true
	return nil
}

func (c *Controller) PointerLeave() error {
	if c.autoplay {
		return nil
	}
	c.hovering = false
	if err := c.pause(); err != nil {
		return err
	}
	c.playing = false
	return nil
}

// Activate handles a click or tap. Touch devices never send pointer enter or
// leave, so a tap on a playing card pauses it only when no pointer hovers.
func (c *Controller) Activate() error {
	if c.autoplay {
		return nil
	}
	if c.playing && !c.hovering {
		if err := c.pause(); err != nil {
			return err
		}
		c.playing = false
		return nil
	}
	if err := c.play(); err != nil {
		return err
	}
	c.playing = true
	return nil
}

func (c *Controller) ButtonHover() {
	c.buttonHovering = true
}

func (c *Controller) ButtonLeave() {
	c.buttonHovering = false
	c.buttonClicked = false
}

// ButtonPress marks the overlay button pressed and returns the detail page
// path to navigate to. It does not touch playback.
func (c *Controller) ButtonPress(username, slug string) string {
	c.buttonClicked = true
	return DetailPath(username, slug)
}

func (c *Controller) Playing() bool       { return c.playing }
func (c *Controller) Hovering() bool      { return c.hovering }
func (c *Controller) ButtonHovered() bool { return c.buttonHovering }
func (c *Controller) ButtonClicked() bool { return c.buttonClicked }
func (c *Controller) Autoplay() bool      { return c.autoplay }

// Err returns the last refused Play or Pause, or nil once a later call succeeds.
func (c *Controller) Err() error { return c.lastErr }

func (c *Controller) State() State {
	if c.playing {
		return Playing
	}
	return Paused
}

func (c *Controller) play() error {
	return c.call("play", func(m MediaHandle) error { return m.Play() })
}

func (c *Controller) pause() error {
	return c.call("pause", func(m MediaHandle) error { return m.Pause() })
}

func (c *Controller) call(op string, fn func(MediaHandle) error) error {
	if c.media == nil {
		c.lastErr = nil
		return nil
	}
	if err := fn(c.media); err != nil {
		c.lastErr = &PlaybackError{Op: op, Err: err}
		return c.lastErr
	}
	c.lastErr = nil
	return nil
}

// DetailPath is the detail page of a gif owned by username.
func DetailPath(username, slug string) string {
	return "/" + url.PathEscape(username) + "/" + url.PathEscape(slug)
}
