package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/leonardcser/kvcache/internal/cache"
)

// Handler is the signature of an MCP tool handler.
type Handler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Register adds every cache tool to s, backed by c.
func Register(s *server.MCPServer, c cache.Cache[any]) {
	keyArg := mcp.WithString("key", mcp.Required(), mcp.Description("Cache key. Must not contain any of "+cache.ReservedChars))
	ttlArg := mcp.WithNumber("ttl_seconds", mcp.Description("Time to live in seconds. Omit or use 0 for no expiration; a negative value stores an already expired entry"))

	s.AddTool(mcp.NewTool("cache-get",
		mcp.WithDescription(multiline(
			"Returns the value stored under a key as JSON",
			"- Returns the default (or null) when the key is absent or expired",
		)),
		keyArg,
		mcp.WithString("default", mcp.Description("JSON value returned on a miss")),
	), GetHandler(c))

	s.AddTool(mcp.NewTool("cache-set",
		mcp.WithDescription(multiline(
			"Stores a value under a key",
			"- The value is parsed as JSON; anything else is stored as a plain string",
			"- Overwrites any existing entry",
		)),
		keyArg,
		mcp.WithString("value", mcp.Required(), mcp.Description("JSON value to store")),
		ttlArg,
	), SetHandler(c))

	s.AddTool(mcp.NewTool("cache-delete",
		mcp.WithDescription("Deletes a key. Deleting a missing key succeeds"),
		keyArg,
	), DeleteHandler(c))

	s.AddTool(mcp.NewTool("cache-has",
		mcp.WithDescription("Reports whether a key holds a value that has not expired"),
		keyArg,
	), HasHandler(c))

	s.AddTool(mcp.NewTool("cache-clear",
		mcp.WithDescription("Removes every entry from the cache"),
	), ClearHandler(c))

	s.AddTool(mcp.NewTool("cache-get-multiple",
		mcp.WithDescription("Returns a JSON object with the value of each key, in the order given"),
		mcp.WithString("keys", mcp.Required(), mcp.Description(`JSON array of keys, e.g. ["a","b"]`)),
		mcp.WithString("default", mcp.Description("JSON value used for missing keys")),
	), GetMultipleHandler(c))

	s.AddTool(mcp.NewTool("cache-set-multiple",
		mcp.WithDescription(multiline(
			"Stores several values, in the order given",
			"- Stops at the first failure; earlier writes are kept",
		)),
		mcp.WithString("values", mcp.Required(), mcp.Description(`JSON object of key to value, e.g. {"a":1,"b":2}`)),
		ttlArg,
	), SetMultipleHandler(c))

	s.AddTool(mcp.NewTool("cache-delete-multiple",
		mcp.WithDescription("Deletes several keys, stopping at the first failure"),
		mcp.WithString("keys", mcp.Required(), mcp.Description(`JSON array of keys, e.g. ["a","b"]`)),
	), DeleteMultipleHandler(c))
}

// GetHandler returns the MCP tool handler for the "cache-get" tool.
func GetHandler(c cache.Cache[any]) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		def, err := parseDefault(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		v, err := c.Get(key, def)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(v)
	}
}

// SetHandler returns the MCP tool handler for the "cache-set" tool.
func SetHandler(c cache.Cache[any]) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		raw, err := req.RequireString("value")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ok, err := c.Set(key, ParseValue(raw), ttl(req))
		return boolResult(ok, err)
	}
}

// DeleteHandler returns the MCP tool handler for the "cache-delete" tool.
func DeleteHandler(c cache.Cache[any]) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ok, err := c.Delete(key)
		return boolResult(ok, err)
	}
}

// HasHandler returns the MCP tool handler for the "cache-has" tool.
func HasHandler(c cache.Cache[any]) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ok, err := c.Has(key)
		return boolResult(ok, err)
	}
}

// ClearHandler returns the MCP tool handler for the "cache-clear" tool.
func ClearHandler(c cache.Cache[any]) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return boolResult(c.Clear(), nil)
	}
}

// GetMultipleHandler returns the MCP tool handler for the "cache-get-multiple" tool.
func GetMultipleHandler(c cache.Cache[any]) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keys, err := parseKeys(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		def, err := parseDefault(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		seq, err := c.GetMultiple(keys, def)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out := orderedmap.New[string, any]()
		for k, v := range seq {
			if ctx.Err() != nil {
				return mcp.NewToolResultError(ctx.Err().Error()), nil
			}
			out.Set(k, v)
		}
		return jsonResult(out)
	}
}

// SetMultipleHandler returns the MCP tool handler for the "cache-set-multiple" tool.
func SetMultipleHandler(c cache.Cache[any]) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("values")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		values := orderedmap.New[string, any]()
		if err := values.UnmarshalJSON([]byte(raw)); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("values must be a JSON object: %v", err)), nil
		}
		ok, err := c.SetMultiple(values, ttl(req))
		return boolResult(ok, err)
	}
}

// DeleteMultipleHandler returns the MCP tool handler for the "cache-delete-multiple" tool.
func DeleteMultipleHandler(c cache.Cache[any]) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keys, err := parseKeys(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ok, err := c.DeleteMultiple(keys)
		return boolResult(ok, err)
	}
}

// ParseValue decodes raw as JSON, falling back to the raw string.
func ParseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func parseDefault(req mcp.CallToolRequest) (any, error) {
	raw := req.GetString("default", "")
	if raw == "" {
		return nil, nil
	}
	return ParseValue(raw), nil
}

func parseKeys(req mcp.CallToolRequest) ([]string, error) {
	raw, err := req.RequireString("keys")
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("keys must be a JSON array of strings: %w", err)
	}
	return keys, nil
}

func ttl(req mcp.CallToolRequest) time.Duration {
	return time.Duration(req.GetFloat("ttl_seconds", 0) * float64(time.Second))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func boolResult(ok bool, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%t", ok)), nil
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }
