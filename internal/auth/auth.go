package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/rngallery/rngallery/internal/httputil"
)

// CookieName is the cookie the sign-in page stores the viewer token in.
const CookieName = "jwt"

type contextKey string

const viewerKey contextKey = "viewer"

// Viewer is the signed-in person looking at a page.
type Viewer struct {
	Nickname string
	Token    string
}

type Authenticator struct {
	secret string
}

func New(secret string) *Authenticator {
	return &Authenticator{secret: secret}
}

// tokenFromRequest prefers the Authorization header over the cookie.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, found := strings.CutPrefix(header, "Bearer "); found {
			return token
		}
		return ""
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Middleware attaches the viewer to the request context when a valid token
// is present. Anonymous and invalid requests pass through without one.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := ValidateToken(a.secret, token)
		if err != nil {
			slog.Debug("auth: ignoring invalid viewer token", "path", r.URL.Path, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		ctx := ContextWithViewer(r.Context(), Viewer{Nickname: claims.Nickname, Token: token})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require answers 401 with a sign-in redirect when there is no viewer.
// next is taken from the Referer path when present so the viewer lands back
// on the page they acted from.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ViewerFromContext(r.Context()); !ok {
			httputil.WriteRedirectError(w, http.StatusUnauthorized, "sign in required", SignInURL(returnPath(r)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func returnPath(r *http.Request) string {
	if ref, err := url.Parse(r.Referer()); err == nil && ref.Path != "" && (ref.Host == "" || ref.Host == r.Host) {
		return ref.Path
	}
	return r.URL.Path
}

func ContextWithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerKey, v)
}

func ViewerFromContext(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(viewerKey).(Viewer)
	return v, ok
}

// SignInURL is the sign-in page that returns to next afterwards.
func SignInURL(next string) string {
	if next == "" {
		return "/sign-in"
	}
	return "/sign-in?" + url.Values{"next": {next}}.Encode()
}
