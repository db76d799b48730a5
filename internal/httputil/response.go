package httputil

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
)

type ErrorBody struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("httputil: failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Error: message})
}

// WriteRedirectError tells a script-driven page where to send the browser,
// e.g. to the sign-in page for an anonymous like.
func WriteRedirectError(w http.ResponseWriter, status int, message, redirect string) {
	WriteJSON(w, status, ErrorBody{Error: message, Redirect: redirect})
}

func WriteHTML(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		slog.Error("httputil: failed to render page", "template", tmpl.Name(), "error", err)
	}
}
