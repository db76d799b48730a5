package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

type Owner struct {
	ID string `json:"id"`
}

type Comment struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Body   string `json:"body"`
}

// Gif is a gallery entry as the backend stores it.
type Gif struct {
	ID               string    `json:"id"`
	Slug             string    `json:"slug"`
	Name             string    `json:"name"`
	ShortDescription string    `json:"shortDescription"`
	Category         []string  `json:"category"`
	Comment          []Comment `json:"comment"`
	NumberOfView     int       `json:"numberOfView"`
	Like             int       `json:"like"`
	GithubLink       string    `json:"githubLink"`
	Owner            Owner     `json:"owner"`
}

// GifInfo is the rendition size reported by the encoding service.
type GifInfo struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (c *Client) GifBySlug(ctx context.Context, slug string) (*Gif, error) {
	var gif Gif
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/gifs/slug/"+url.PathEscape(slug), nil, &gif); err != nil {
		return nil, fmt.Errorf("get gif by slug: %w", err)
	}
	return &gif, nil
}

func (c *Client) GifInfo(ctx context.Context, id string) (*GifInfo, error) {
	var resp struct {
		Item GifInfo `json:"gfyItem"`
	}
	u := c.encoderURL + "/gfycats/" + url.PathEscape(id)
	if err := c.do(ctx, c.http, http.MethodGet, u, nil, "", false, &resp); err != nil {
		return nil, fmt.Errorf("get gif info: %w", err)
	}
	return &resp.Item, nil
}

func (c *Client) IncrementViews(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodPut, c.baseURL+"/gifs/"+url.PathEscape(id)+"/views", nil, nil); err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	return nil
}

// UserLikes lists the gif ids the user has liked.
func (c *Client) UserLikes(ctx context.Context, nickname string) ([]string, error) {
	var likes []string
	if err := c.doJSON(ctx, http.MethodGet, c.likesURL(nickname, ""), nil, &likes); err != nil {
		return nil, fmt.Errorf("get user likes: %w", err)
	}
	if likes == nil {
		likes = []string{}
	}
	return likes, nil
}

func (c *Client) Like(ctx context.Context, nickname, gifID string) error {
	if err := c.doJSON(ctx, http.MethodPut, c.likesURL(nickname, gifID), nil, nil); err != nil {
		return fmt.Errorf("like gif: %w", err)
	}
	return nil
}

func (c *Client) Unlike(ctx context.Context, nickname, gifID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, c.likesURL(nickname, gifID), nil, nil); err != nil {
		return fmt.Errorf("unlike gif: %w", err)
	}
	return nil
}

func (c *Client) likesURL(nickname, gifID string) string {
	u := c.baseURL + "/users/" + url.PathEscape(nickname) + "/likes"
	if gifID != "" {
		u += "/" + url.PathEscape(gifID)
	}
	return u
}
