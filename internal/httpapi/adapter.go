// Package httpapi serves envelope handlers over net/http.
package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/leonardcser/kv-handlers/internal/envelope"
)

// MaxBodySize caps the request body read into an envelope.
const MaxBodySize = 1 << 20

// Adapt converts each HTTP request into an envelope request for h, then
// writes the envelope back. The envelope status becomes the HTTP status.
func Adapt(h envelope.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := FromHTTP(w, r)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				log.Warn("Request body too large", "path", r.URL.Path, "limit", tooLarge.Limit)
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			log.Warn("Cannot read request body", "path", r.URL.Path, "error", err)
			http.Error(w, "cannot read request body", http.StatusBadRequest)
			return
		}
		resp := h.Handle(r.Context(), req)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-Id", req.ID)
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
	})
}

// FromHTTP builds an envelope request. The method is passed through
// unchanged and only the first value of a repeated query parameter is kept.
// Bodies over MaxBodySize fail with *http.MaxBytesError.
func FromHTTP(w http.ResponseWriter, r *http.Request) (envelope.Request, error) {
	query := make(map[string]string)
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
		if err != nil {
			return envelope.Request{}, err
		}
	}
	return envelope.NewRequest(r.Method, query, body), nil
}
