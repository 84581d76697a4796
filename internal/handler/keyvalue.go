// Package handler implements the request handlers served by this repository.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/leonardcser/kv-handlers/internal/envelope"
	"github.com/leonardcser/kv-handlers/internal/store"
)

const (
	msgStored      = "Stored successfully"
	msgDeleted     = "Deleted successfully"
	msgKeyRequired = "Key parameter is required"
	msgNotFound    = "Key not found"
	msgNotAllowed  = "Method Not Allowed"
	msgStoreFailed = "Error: store unavailable"
	msgInternal    = "Error: internal error"

	// DefaultStoreTimeout bounds a single store round trip.
	DefaultStoreTimeout = 5 * time.Second
)

var _ envelope.Handler = (*KeyValue)(nil)

// KeyValue maps POST, GET, DELETE and HEAD requests onto a single store
// operation each.
type KeyValue struct {
	kv      store.KV
	log     *slog.Logger
	timeout time.Duration
}

// KVBody is the JSON body of every KeyValue response.
type KVBody struct {
	Status    int    `json:"status"`
	Body      string `json:"body"`
	Execution string `json:"execution"`
}

type Option func(*KeyValue)

// WithStoreTimeout overrides DefaultStoreTimeout.
func WithStoreTimeout(d time.Duration) Option {
	return func(h *KeyValue) {
		if d > 0 {
			h.timeout = d
		}
	}
}

func NewKeyValue(kv store.KV, log *slog.Logger, opts ...Option) *KeyValue {
	if log == nil {
		log = slog.Default()
	}
	h := &KeyValue{kv: kv, log: log, timeout: DefaultStoreTimeout}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle serves one request. Timing brackets the whole invocation, failed
// validation included.
func (h *KeyValue) Handle(ctx context.Context, req envelope.Request) envelope.Response {
	sw := envelope.Start()

	body, err := h.dispatch(ctx, req)
	status := StatusFor(err)
	if err != nil {
		body = h.describe(req, err)
	} else {
		h.log.Debug("Handled request", "id", req.ID, "method", req.Method, "status", status)
	}
	if req.Method == http.MethodHead {
		// existence checks answer with the status alone
		body = ""
	}

	return envelope.JSON(status, KVBody{
		Status:    status,
		Body:      body,
		Execution: sw.Millis(),
	})
}

func (h *KeyValue) dispatch(ctx context.Context, req envelope.Request) (string, error) {
	switch req.Method {
	case http.MethodPost:
		rec, err := ParseRecord(req.Body)
		if err != nil {
			return "", err
		}
		if err := h.put(ctx, rec); err != nil {
			return "", err
		}
		return msgStored, nil
	case http.MethodGet:
		key, err := requireKey(req)
		if err != nil {
			return "", err
		}
		return h.get(ctx, key)
	case http.MethodDelete:
		key, err := requireKey(req)
		if err != nil {
			return "", err
		}
		if err := h.delete(ctx, key); err != nil {
			return "", err
		}
		return msgDeleted, nil
	case http.MethodHead:
		key, err := requireKey(req)
		if err != nil {
			return "", err
		}
		if _, err := h.get(ctx, key); err != nil {
			return "", err
		}
		return "", nil
	default:
		return "", ErrUnsupported
	}
}

func requireKey(req envelope.Request) (string, error) {
	key := req.Param("key")
	if key == "" {
		return "", invalid(msgKeyRequired)
	}
	return key, nil
}

func (h *KeyValue) put(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.kv.Put(ctx, rec.Key, rec.Value); err != nil {
		return &StoreError{Op: "put", Key: rec.Key, Err: err}
	}
	return nil
}

func (h *KeyValue) get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	res, err := h.kv.Get(ctx, key)
	if err != nil {
		return "", &StoreError{Op: "get", Key: key, Err: err}
	}
	if !res.Found {
		return "", ErrNotFound
	}
	return res.Value, nil
}

func (h *KeyValue) delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.kv.Delete(ctx, key); err != nil {
		return &StoreError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// describe logs a failed request and returns the body shown to the caller.
// Store details stay in the log.
func (h *KeyValue) describe(req envelope.Request, err error) string {
	var (
		ve *ValidationError
		se *StoreError
	)
	switch {
	case errors.As(err, &ve):
		h.log.Warn("Invalid request", "id", req.ID, "method", req.Method, "reason", ve.Reason)
		return ve.Reason
	case errors.Is(err, ErrNotFound):
		h.log.Debug("Key not found", "id", req.ID, "method", req.Method, "key", req.Param("key"))
		return msgNotFound
	case errors.Is(err, ErrUnsupported):
		h.log.Warn("Unsupported method", "id", req.ID, "method", req.Method)
		return msgNotAllowed
	case errors.As(err, &se):
		h.log.Error("Store error", "id", req.ID, "method", req.Method,
			"op", se.Op, "key", se.Key, "error", se.Err)
		return msgStoreFailed
	default:
		h.log.Error("Internal error", "id", req.ID, "method", req.Method, "error", err)
		return msgInternal
	}
}
