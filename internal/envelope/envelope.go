// Package envelope defines the request/response shape shared by every handler.
// A handler is invoked once per request and always answers with a Response,
// whatever happened while serving it.
package envelope

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Request struct {
	// ID identifies a single invocation in logs.
	ID     string
	Method string
	// Query holds the first value of every query parameter.
	Query map[string]string
	Body  []byte
}

// NewRequest returns a request with a fresh ID. The method is kept as given;
// methods are case-sensitive.
func NewRequest(method string, query map[string]string, body []byte) Request {
	if query == nil {
		query = map[string]string{}
	}
	return Request{
		ID:     uuid.NewString(),
		Method: method,
		Query:  query,
		Body:   body,
	}
}

// Param returns the named query parameter, or "" if it is absent.
func (r Request) Param(name string) string { return r.Query[name] }

type Response struct {
	StatusCode int
	Body       []byte
}

// Handler serves one request at a time. It never fails: every outcome,
// including internal failures, is encoded in the returned Response.
type Handler interface {
	Handle(ctx context.Context, req Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response { return f(ctx, req) }

// JSON encodes v as the response body.
func JSON(status int, v any) Response {
	b, err := json.Marshal(v)
	if err != nil {
		return Response{
			StatusCode: 500,
			Body:       []byte(`{"status":500,"body":"Error: cannot encode response"}`),
		}
	}
	return Response{StatusCode: status, Body: b}
}

// Stopwatch measures the elapsed time of a handler invocation.
type Stopwatch struct {
	start time.Time
}

func Start() Stopwatch { return Stopwatch{start: time.Now()} }

func (s Stopwatch) Elapsed() time.Duration { return time.Since(s.start) }

// Millis formats the elapsed time as a decimal count of milliseconds.
func (s Stopwatch) Millis() string { return FormatMillis(s.Elapsed()) }

// MillisUnit is Millis suffixed with " ms".
func (s Stopwatch) MillisUnit() string { return FormatMillis(s.Elapsed()) + " ms" }

// FormatMillis renders d in milliseconds with six fractional digits.
func FormatMillis(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.6f", float64(d)/float64(time.Millisecond))
}
