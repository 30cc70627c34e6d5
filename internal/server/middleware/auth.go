package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Auth guards the API with a single shared key. An empty apiKey disables the
// check, as do CORS preflights and the exact paths listed in public.
func Auth(apiKey string, public ...string) func(http.Handler) http.Handler {
	exempt := make(map[string]struct{}, len(public))
	for _, p := range public {
		exempt[p] = struct{}{}
	}
	want := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exempt[r.URL.Path]; ok || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			switch got := presentedKey(r); {
			case got == "":
				w.Header().Set("WWW-Authenticate", `Bearer realm="verdict"`)
				writeError(w, http.StatusUnauthorized, "missing api key")
			case subtle.ConstantTimeCompare([]byte(got), want) != 1:
				writeError(w, http.StatusUnauthorized, "invalid api key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// presentedKey returns the first key found in, in order, an
// "Authorization: Bearer" header, X-API-Key, or the api_key query parameter.
// The query form exists for browser websocket clients, which cannot set
// headers on the upgrade.
func presentedKey(r *http.Request) string {
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(r.Header.Get("X-API-Key")); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("api_key"))
}

// writeError is the middleware-local JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
