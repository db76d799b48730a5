package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rngallery/rngallery/internal/httputil"
)

type SecurityConfig struct {
	BaseURL string
	// MediaHosts serve the gif renditions, posters and share images.
	MediaHosts []string
	// AllowedFrameAncestors extends frame-ancestors for regular pages.
	AllowedFrameAncestors string
	// EmbedPaths may be framed by any site, e.g. the twitter player.
	EmbedPaths []string
}

func securityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	strictTransport := cfg.BaseURL != "" && hasHTTPS(cfg.BaseURL)

	mediaSuffix := ""
	if len(cfg.MediaHosts) > 0 {
		mediaSuffix = " " + strings.Join(cfg.MediaHosts, " ")
	}

	frameAncestors := "'self'"
	if cfg.AllowedFrameAncestors != "" {
		frameAncestors += " " + cfg.AllowedFrameAncestors
	}

	embeddable := make(map[string]bool, len(cfg.EmbedPaths))
	for _, p := range cfg.EmbedPaths {
		embeddable[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nonce := httputil.GenerateNonce()
			ctx := httputil.ContextWithNonce(r.Context(), nonce)

			ancestors := frameAncestors
			if embeddable[r.URL.Path] {
				ancestors = "*"
			} else {
				w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			}

			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), autoplay=(self)")

			csp := fmt.Sprintf(
				"default-src 'self'; img-src 'self' data: blob:%s; media-src 'self' blob:%s; script-src 'self' 'nonce-%s'; style-src 'self' 'nonce-%s'; connect-src 'self'; frame-ancestors %s;",
				mediaSuffix, mediaSuffix, nonce, nonce, ancestors,
			)
			w.Header().Set("Content-Security-Policy", csp)

			if strictTransport {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasHTTPS(baseURL string) bool {
	return strings.HasPrefix(baseURL, "https://")
}
