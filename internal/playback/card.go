package playback

import (
	"strings"

	"github.com/mssola/useragent"
)

const (
	DefaultMediaBase  = "https://giant.gfycat.com/"
	DefaultPosterBase = "https://thumbs.gfycat.com/"
)

type Source struct {
	URL  string
	Type string
}

type CardOptions struct {
	GifID      string
	Username   string
	Slug       string
	MinWidth   int
	Autoplay   bool
	UserAgent  string
	MediaBase  string
	PosterBase string
}

// Card is what a page renders for one gif. Playing is the initial state of
// the controller the page script runs. DetailURL is empty when the card has
// no owner to link to, as on the embed player.
type Card struct {
	GifID     string
	Username  string
	Slug      string
	MinWidth  int
	Autoplay  bool
	Playing   bool
	Touch     bool
	PosterURL string
	Sources   []Source
	DetailURL string
}

func NewCard(opts CardOptions) Card {
	mediaBase := withSlash(opts.MediaBase, DefaultMediaBase)
	posterBase := withSlash(opts.PosterBase, DefaultPosterBase)

	initial := New(nil, opts.Autoplay)

	var detail string
	if opts.Username != "" && opts.Slug != "" {
		detail = DetailPath(opts.Username, opts.Slug)
	}

	return Card{
		GifID:     opts.GifID,
		Username:  opts.Username,
		Slug:      opts.Slug,
		MinWidth:  opts.MinWidth,
		Autoplay:  opts.Autoplay,
		Playing:   initial.Playing(),
		Touch:     IsTouchDevice(opts.UserAgent),
		PosterURL: posterBase + opts.GifID + "-poster.jpg",
		Sources: []Source{
			{URL: mediaBase + opts.GifID + ".webm", Type: "video/webm"},
			{URL: mediaBase + opts.GifID + ".mp4", Type: "video/mp4"},
		},
		DetailURL: detail,
	}
}

// IsTouchDevice reports whether the user agent belongs to a phone or tablet,
// where hover never fires and a tap is the only way to start playback.
func IsTouchDevice(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	return useragent.New(userAgent).Mobile()
}

func withSlash(base, fallback string) string {
	if base == "" {
		return fallback
	}
	if !strings.HasSuffix(base, "/") {
		return base + "/"
	}
	return base
}
