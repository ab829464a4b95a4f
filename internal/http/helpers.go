package http

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

var errInvalidRequest = errors.New("invalid request")

// formRequest is implemented by payloads that can also arrive as an HTML
// form post.
type formRequest interface {
	fromForm(form url.Values)
}

// bind decodes a JSON or form body into out and validates it.
func (s *Server) bind(r *http.Request, out formRequest) error {
	if hasJSONBody(r) {
		if err := decodeJSON(r, out); err != nil {
			return errInvalidRequest
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return errInvalidRequest
		}
		out.fromForm(r.PostForm)
	}
	return s.validate.Struct(out)
}

func hasJSONBody(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// wantsJSON reports whether the caller is an API client rather than a browser.
func wantsJSON(r *http.Request) bool {
	if bearerToken(r.Header.Get("Authorization")) != "" || hasJSONBody(r) {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func optionalFormValue(form url.Values, key string) *string {
	values, ok := form[key]
	if !ok || len(values) == 0 {
		return nil
	}
	value := values[0]
	return &value
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
