package gallery

import (
	"context"
	"errors"
	"sync"

	"github.com/rngallery/rngallery/internal/api"
)

type fakeBackend struct {
	mu sync.Mutex

	gif      *api.Gif
	gifErr   error
	info     *api.GifInfo
	infoErr  error
	viewErr  error
	likes    []string
	likesErr error
	likeErr  error

	tokens  []string
	views   []string
	liked   []string
	unliked []string
}

func (f *fakeBackend) forToken(token string) Backend {
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	f.mu.Unlock()
	return f
}

func (f *fakeBackend) GifBySlug(ctx context.Context, slug string) (*api.Gif, error) {
	if f.gifErr != nil {
		return nil, f.gifErr
	}
	if f.gif == nil || f.gif.Slug != slug {
		return nil, &api.StatusError{Method: "GET", URL: "/gifs/slug/" + slug, StatusCode: 404}
	}
	g := *f.gif
	return &g, nil
}

func (f *fakeBackend) GifInfo(ctx context.Context, id string) (*api.GifInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	if f.info == nil {
		return &api.GifInfo{}, nil
	}
	return f.info, nil
}

func (f *fakeBackend) IncrementViews(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, id)
	return f.viewErr
}

func (f *fakeBackend) UserLikes(ctx context.Context, nickname string) ([]string, error) {
	if f.likesErr != nil {
		return nil, f.likesErr
	}
	return f.likes, nil
}

func (f *fakeBackend) Like(ctx context.Context, nickname, gifID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liked = append(f.liked, nickname+":"+gifID)
	return f.likeErr
}

func (f *fakeBackend) Unlike(ctx context.Context, nickname, gifID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unliked = append(f.unliked, nickname+":"+gifID)
	return f.likeErr
}

type fakeStars struct {
	count    int
	err      error
	requests []string
}

func (f *fakeStars) StargazersCount(ctx context.Context, fullName string) (int, error) {
	f.requests = append(f.requests, fullName)
	return f.count, f.err
}

var errBackendDown = errors.New("backend down")

func testSite() Site {
	return Site{
		Name:               "React Native Gallery",
		Website:            "https://rngallery.example",
		Description:        "A gallery of React Native components",
		Keywords:           []string{"react-native", "gallery"},
		TwitterSite:        "@rn_gallery",
		ThumbsBase:         "https://thumbs.example/",
		ThumbsBaseUnsecure: "http://thumbs.example/",
	}
}

var testInfo = api.GifInfo{Width: 320, Height: 568}

func testGif() *api.Gif {
	return &api.Gif{
		ID:           "ShinyBlueCat",
		Slug:         "swipe-cards",
		Name:         "Swipe cards",
		NumberOfView: 41,
		Like:         3,
		Owner:        api.Owner{ID: "alice"},
	}
}
