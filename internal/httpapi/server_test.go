package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/kv-handlers/internal/envelope"
	"github.com/leonardcser/kv-handlers/internal/handler"
	"github.com/leonardcser/kv-handlers/internal/store"
)

func newTestServer(t *testing.T, accessLog io.Writer) *httptest.Server {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	routes := []Route{
		{Name: "kv", Path: "/kv", Handler: handler.NewKeyValue(store.NewMemory(), log)},
		{Name: "countries", Path: "/countries", Handler: handler.Countries()},
		{Name: "panic", Path: "/panic", Handler: envelope.HandlerFunc(func(context.Context, envelope.Request) envelope.Response {
			panic("boom")
		})},
	}
	srv := httptest.NewServer(NewRouter(log, Config{Routes: routes, Version: "test", AccessLog: accessLog}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, handler.KVBody) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var got handler.KVBody
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &got))
	}
	return resp, got
}

func TestKeyValueOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, got := do(t, "POST", srv.URL+"/kv", `{"userid":"u1","value":"hello"}`)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.Equal(t, "Stored successfully", got.Body)

	resp, got = do(t, "GET", srv.URL+"/kv?key=u1", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "hello", got.Body)

	resp, _ = do(t, "HEAD", srv.URL+"/kv?key=u1", "")
	assert.Equal(t, 200, resp.StatusCode)

	resp, got = do(t, "DELETE", srv.URL+"/kv?key=u1", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Deleted successfully", got.Body)

	resp, got = do(t, "GET", srv.URL+"/kv?key=u1", "")
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "Key not found", got.Body)

	resp, _ = do(t, "HEAD", srv.URL+"/kv?key=u1", "")
	assert.Equal(t, 404, resp.StatusCode)

	resp, got = do(t, "GET", srv.URL+"/kv", "")
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "Key parameter is required", got.Body)

	resp, got = do(t, "PUT", srv.URL+"/kv?key=u1", "")
	assert.Equal(t, 405, resp.StatusCode)
	assert.Equal(t, "Method Not Allowed", got.Body)
}

func TestFirstQueryValueWins(t *testing.T) {
	srv := newTestServer(t, nil)

	do(t, "POST", srv.URL+"/kv", `{"userid":"a","value":"first"}`)
	do(t, "POST", srv.URL+"/kv", `{"userid":"b","value":"second"}`)

	_, got := do(t, "GET", srv.URL+"/kv?key=a&key=b", "")
	assert.Equal(t, "first", got.Body)
}

func TestCountriesOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/countries")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	var body handler.CountriesBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Countries, 27)
	assert.True(t, strings.HasSuffix(body.Execution, " ms"))
}

func TestHealthzAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, "GET", srv.URL+"/kv?key=missing", "")

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "test", health["version"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `kvh_requests_total{handler="kv",method="GET",status="404"} 1`)
	assert.Contains(t, string(raw), "kvh_request_duration_seconds")
}

func TestRecoversFromPanics(t *testing.T) {
	srv := newTestServer(t, io.Discard)

	resp, err := http.Get(srv.URL + "/panic")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFromHTTP(t *testing.T) {
	r := httptest.NewRequest("POST", "/kv?key=k&other=1", strings.NewReader(`{"userid":"u"}`))
	req, err := FromHTTP(httptest.NewRecorder(), r)
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "k", req.Param("key"))
	assert.Equal(t, "1", req.Param("other"))
	assert.Equal(t, `{"userid":"u"}`, string(req.Body))
}

func TestMethodsAreCaseSensitiveOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, "POST", srv.URL+"/kv", `{"userid":"u1","value":"hello"}`)

	for _, method := range []string{"get", "Delete", "post"} {
		resp, got := do(t, method, srv.URL+"/kv?key=u1", `{"userid":"u1","value":"x"}`)
		assert.Equal(t, 405, resp.StatusCode, method)
		assert.Equal(t, "Method Not Allowed", got.Body, method)
	}

	_, got := do(t, "GET", srv.URL+"/kv?key=u1", "")
	assert.Equal(t, "hello", got.Body)
}

func TestOversizedBodyIsRejected(t *testing.T) {
	srv := newTestServer(t, nil)

	body := `{"userid":"big","value":"` + strings.Repeat("x", MaxBodySize) + `"}`
	resp, err := http.Post(srv.URL+"/kv", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	_, got := do(t, "GET", srv.URL+"/kv?key=big", "")
	assert.Equal(t, 404, got.Status)
}
