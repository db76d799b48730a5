package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/rngallery/rngallery/internal/api"
	"github.com/rngallery/rngallery/internal/auth"
	"github.com/rngallery/rngallery/internal/github"
)

var ErrNotFound = errors.New("gif not found")

// Backend is the part of the gallery REST API the pages use.
type Backend interface {
	GifBySlug(ctx context.Context, slug string) (*api.Gif, error)
	GifInfo(ctx context.Context, id string) (*api.GifInfo, error)
	IncrementViews(ctx context.Context, id string) error
	UserLikes(ctx context.Context, nickname string) ([]string, error)
	Like(ctx context.Context, nickname, gifID string) error
	Unlike(ctx context.Context, nickname, gifID string) error
}

// BackendFor returns a backend that acts with the viewer's token. An empty
// token means an anonymous backend.
type BackendFor func(token string) Backend

type StarCounter interface {
	StargazersCount(ctx context.Context, fullName string) (int, error)
}

// Site holds the site-wide defaults and media locations.
type Site struct {
	Name        string
	Website     string
	Description string
	Keywords    []string
	TwitterSite string
	// ThumbsBase and ThumbsBaseUnsecure prefix the share preview renditions.
	ThumbsBase         string
	ThumbsBaseUnsecure string
	MediaBase          string
	PosterBase         string
}

// Request is everything a detail page depends on besides the backend.
type Request struct {
	Username    string
	Slug        string
	OriginalURL string
	Viewer      *auth.Viewer
}

// Detail is the composed detail page.
type Detail struct {
	ID               string
	Slug             string
	Name             string
	ShortDescription string
	Category         []string
	Comments         []api.Comment
	NumberOfView     int
	Like             int
	GithubLink       string
	OwnerID          string
	Username         string
	OriginalURL      string
	Width            int
	Height           int
	Stars            int
	Viewer           *auth.Viewer
	Checked          bool
}

type Composer struct {
	backend BackendFor
	stars   StarCounter
	site    Site
}

func NewComposer(backend BackendFor, stars StarCounter, site Site) *Composer {
	return &Composer{backend: backend, stars: stars, site: site}
}

func (c *Composer) Site() Site { return c.site }

// Compose loads the gif, its size, the star count and whether the viewer
// liked it, and counts one view. Only the gif and its size are required.
func (c *Composer) Compose(ctx context.Context, req Request) (*Detail, error) {
	token := ""
	if req.Viewer != nil {
		token = req.Viewer.Token
	}
	backend := c.backend(token)

	gif, err := backend.GifBySlug(ctx, req.Slug)
	if err != nil {
		var statusErr *api.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load gif %s: %w", req.Slug, err)
	}

	info, err := backend.GifInfo(ctx, gif.ID)
	if err != nil {
		return nil, fmt.Errorf("load gif info %s: %w", gif.ID, err)
	}

	if err := backend.IncrementViews(ctx, gif.ID); err != nil {
		slog.Warn("gallery: failed to count view", "gif_id", gif.ID, "error", err)
	}

	d := &Detail{
		ID:               gif.ID,
		Slug:             gif.Slug,
		Name:             gif.Name,
		ShortDescription: gif.ShortDescription,
		Category:         gif.Category,
		Comments:         gif.Comment,
		NumberOfView:     gif.NumberOfView,
		Like:             gif.Like,
		GithubLink:       gif.GithubLink,
		OwnerID:          gif.Owner.ID,
		Username:         req.Username,
		OriginalURL:      req.OriginalURL,
		Width:            info.Width,
		Height:           info.Height,
		Viewer:           req.Viewer,
	}
	c.applyDefaults(d)

	d.Stars = c.starsFor(ctx, gif.GithubLink)

	if req.Viewer != nil {
		likes, err := backend.UserLikes(ctx, req.Viewer.Nickname)
		if err != nil {
			slog.Warn("gallery: failed to load likes", "nickname", req.Viewer.Nickname, "error", err)
		}
		d.Checked = slices.Contains(likes, gif.ID)
	}

	return d, nil
}

func (c *Composer) applyDefaults(d *Detail) {
	if d.Comments == nil {
		d.Comments = []api.Comment{}
	}
	if len(d.Category) == 0 {
		d.Category = append([]string(nil), c.site.Keywords...)
	}
	if d.ShortDescription == "" {
		d.ShortDescription = c.site.Description
	}
}

func (c *Composer) starsFor(ctx context.Context, link string) int {
	if link == "" || c.stars == nil {
		return 0
	}
	fullName, err := github.FullNameFromURL(link)
	if err != nil {
		slog.Debug("gallery: github link is not a repository", "link", link, "error", err)
		return 0
	}
	stars, err := c.stars.StargazersCount(ctx, fullName)
	if err != nil {
		slog.Warn("gallery: failed to load stargazers", "repo", fullName, "error", err)
		return 0
	}
	return stars
}
