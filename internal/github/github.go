package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultBaseURL = "https://api.github.com"

var ErrNotRepository = errors.New("not a github repository link")

// FullNameFromURL extracts "owner/repo" from a github.com link such as
// https://github.com/owner/repo/tree/master.
func FullNameFromURL(link string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", fmt.Errorf("parse github link: %w", err)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host != "github.com" {
		return "", ErrNotRepository
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", ErrNotRepository
	}
	return parts[0] + "/" + strings.TrimSuffix(parts[1], ".git"), nil
}

type Config struct {
	BaseURL   string
	Token     string
	CacheSize int
	CacheTTL  time.Duration
	Timeout   time.Duration
}

// Client reads repository star counts, caching each count for CacheTTL.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	cache   *expirable.LRU[string, int]
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 512
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   expirable.NewLRU[string, int](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

func (c *Client) StargazersCount(ctx context.Context, fullName string) (int, error) {
	key := strings.ToLower(fullName)
	if count, ok := c.cache.Get(key); ok {
		return count, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/repos/"+fullName, nil)
	if err != nil {
		return 0, fmt.Errorf("create github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get repository %s: %w", fullName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return 0, fmt.Errorf("github returned status %d for %s: %s", resp.StatusCode, fullName, strings.TrimSpace(string(body)))
	}

	var repo struct {
		StargazersCount int `json:"stargazers_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		return 0, fmt.Errorf("decode repository %s: %w", fullName, err)
	}

	c.cache.Add(key, repo.StargazersCount)
	slog.Debug("github: fetched stargazers", "repo", fullName, "stars", repo.StargazersCount)
	return repo.StargazersCount, nil
}
