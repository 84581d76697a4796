// Package tools exposes the envelope handlers as MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/kv-handlers/internal/envelope"
)

// ToolHandler is the signature mcp-go expects for a tool.
type ToolHandler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Register adds the key-value and countries tools to s.
func Register(s *server.MCPServer, kv, countries envelope.Handler) {
	key := mcp.WithString("key", mcp.Required(), mcp.Description("The record key"))

	s.AddTool(mcp.NewTool("kv-put",
		mcp.WithDescription(multiline(
			"Stores a value under a key, overwriting any previous value",
			"- Returns the response envelope with status 200 on success",
			"- Returns status 400 if userid or value is missing or empty",
		)),
		mcp.WithString("userid", mcp.Required(), mcp.Description("The record key")),
		mcp.WithString("value", mcp.Required(), mcp.Description("The value to store")),
	), PutHandler(kv))

	s.AddTool(mcp.NewTool("kv-get",
		mcp.WithDescription(multiline(
			"Reads the value stored under a key",
			"- Returns status 404 if the key does not exist",
		)),
		key,
	), KeyHandler(kv, http.MethodGet))

	s.AddTool(mcp.NewTool("kv-delete",
		mcp.WithDescription(multiline(
			"Deletes a key",
			"- Deleting a missing key succeeds with status 200",
		)),
		key,
	), KeyHandler(kv, http.MethodDelete))

	s.AddTool(mcp.NewTool("kv-head",
		mcp.WithDescription(multiline(
			"Checks whether a key exists without returning its value",
			"- Returns status 200 if present, 404 otherwise",
		)),
		key,
	), KeyHandler(kv, http.MethodHead))

	s.AddTool(mcp.NewTool("countries",
		mcp.WithDescription("Lists the EU member states and their ISO codes"),
	), CountriesHandler(countries))
}

// PutHandler returns the tool handler issuing a write. Missing arguments are
// passed through so the handler reports them like any other bad request.
func PutHandler(h envelope.Handler) ToolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body := map[string]string{}
		if v := req.GetString("userid", ""); v != "" {
			body["userid"] = v
		}
		if v := req.GetString("value", ""); v != "" {
			body["value"] = v
		}
		raw, err := json.Marshal(body)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return invoke(ctx, h, envelope.NewRequest(http.MethodPost, nil, raw)), nil
	}
}

// KeyHandler returns the tool handler issuing method against the "key"
// argument.
func KeyHandler(h envelope.Handler, method string) ToolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := map[string]string{}
		if key := req.GetString("key", ""); key != "" {
			query["key"] = key
		}
		return invoke(ctx, h, envelope.NewRequest(method, query, nil)), nil
	}
}

func CountriesHandler(h envelope.Handler) ToolHandler {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return invoke(ctx, h, envelope.NewRequest(http.MethodGet, nil, nil)), nil
	}
}

// invoke runs h and returns its JSON body as text. Server-side failures are
// flagged as tool errors.
func invoke(ctx context.Context, h envelope.Handler, req envelope.Request) *mcp.CallToolResult {
	if ctx.Err() != nil {
		return mcp.NewToolResultError(ctx.Err().Error())
	}
	resp := h.Handle(ctx, req)
	if resp.StatusCode >= http.StatusInternalServerError {
		return mcp.NewToolResultError(string(resp.Body))
	}
	return mcp.NewToolResultText(string(resp.Body))
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }
