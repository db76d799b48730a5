package gallery

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/rngallery/rngallery/internal/auth"
	"github.com/rngallery/rngallery/internal/httputil"
	"github.com/rngallery/rngallery/internal/playback"
	"github.com/rngallery/rngallery/internal/validate"
)

const detailCardMinWidth = 250

type Handler struct {
	composer *Composer
}

func NewHandler(composer *Composer) *Handler {
	return &Handler{composer: composer}
}

type detailPageData struct {
	Meta   Meta
	Detail *Detail
	Card   playback.Card
	Nonce  string
}

type playerPageData struct {
	Title string
	Card  playback.Card
	Nonce string
}

type statusPageData struct {
	Title   string
	Message string
	Nonce   string
}

func (h *Handler) card(r *http.Request, id, username, slug string, minWidth int) playback.Card {
	site := h.composer.site
	return playback.NewCard(playback.CardOptions{
		GifID:      id,
		Username:   username,
		Slug:       slug,
		MinWidth:   minWidth,
		Autoplay:   true,
		UserAgent:  r.UserAgent(),
		MediaBase:  site.MediaBase,
		PosterBase: site.PosterBase,
	})
}

func (h *Handler) writeStatusPage(w http.ResponseWriter, r *http.Request, status int, title, message string) {
	httputil.WriteHTML(w, status, statusTemplate, statusPageData{
		Title:   title,
		Message: message,
		Nonce:   httputil.NonceFromContext(r.Context()),
	})
}

// DetailPage renders /{username}/{slug}.
func (h *Handler) DetailPage(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	slug := chi.URLParam(r, "slug")
	if validate.Username(username) != "" || validate.Slug(slug) != "" {
		h.writeStatusPage(w, r, http.StatusNotFound, "Not found", "This gif does not exist.")
		return
	}

	req := Request{Username: username, Slug: slug, OriginalURL: r.URL.RequestURI()}
	if viewer, ok := auth.ViewerFromContext(r.Context()); ok {
		req.Viewer = &viewer
	}

	detail, err := h.composer.Compose(r.Context(), req)
	if errors.Is(err, ErrNotFound) {
		h.writeStatusPage(w, r, http.StatusNotFound, "Not found", "This gif does not exist.")
		return
	}
	if err != nil {
		slog.Error("gallery: failed to compose detail page", "username", username, "slug", slug, "error", err)
		h.writeStatusPage(w, r, http.StatusBadGateway, "Unavailable", "This gif cannot be shown right now.")
		return
	}

	httputil.WriteHTML(w, http.StatusOK, detailTemplate, detailPageData{
		Meta:   h.composer.Meta(detail),
		Detail: detail,
		Card:   h.card(r, detail.ID, detail.OwnerID, detail.Slug, detailCardMinWidth),
		Nonce:  httputil.NonceFromContext(r.Context()),
	})
}

// PlayerPage renders the twitter player embed, /player?id={id}.
func (h *Handler) PlayerPage(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if msg := validate.GifID(id); msg != "" {
		h.writeStatusPage(w, r, http.StatusBadRequest, "Bad request", msg)
		return
	}

	httputil.WriteHTML(w, http.StatusOK, playerTemplate, playerPageData{
		Title: h.composer.site.Name,
		Card:  h.card(r, id, "", "", 0),
		Nonce: httputil.NonceFromContext(r.Context()),
	})
}

type likeResponse struct {
	Liked bool `json:"liked"`
}

// ToggleLike likes the gif for the viewer, or unlikes it when already
// liked. Anonymous requests are turned away by auth.Require.
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if msg := validate.GifID(id); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	viewer, ok := auth.ViewerFromContext(r.Context())
	if !ok {
		httputil.WriteRedirectError(w, http.StatusUnauthorized, "sign in required", auth.SignInURL(r.URL.Path))
		return
	}

	backend := h.composer.backend(viewer.Token)
	likes, err := backend.UserLikes(r.Context(), viewer.Nickname)
	if err != nil {
		slog.Error("gallery: failed to load likes", "nickname", viewer.Nickname, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "failed to load likes")
		return
	}

	if slices.Contains(likes, id) {
		if err := backend.Unlike(r.Context(), viewer.Nickname, id); err != nil {
			slog.Error("gallery: failed to unlike", "nickname", viewer.Nickname, "gif_id", id, "error", err)
			httputil.WriteError(w, http.StatusBadGateway, "failed to unlike")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, likeResponse{Liked: false})
		return
	}

	if err := backend.Like(r.Context(), viewer.Nickname, id); err != nil {
		slog.Error("gallery: failed to like", "nickname", viewer.Nickname, "gif_id", id, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "failed to like")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, likeResponse{Liked: true})
}
