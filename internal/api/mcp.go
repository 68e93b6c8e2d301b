package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/cadence/internal/identity"
	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/storage"
	"github.com/kalambet/cadence/internal/suggest"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store     *storage.Store
	Engine    *suggest.Engine
	Timezones *identity.Resolver
}

// NewMCPServer creates an MCP server exposing suggestions, patterns,
// conflict checks and availability as tools.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"cadence",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("cadence: personal session scheduling. Suggest free slots, inspect habits and check conflicts."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("suggest_slots",
			mcp.WithDescription("Suggest future session slots for a user based on their history and weekly availability."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithNumber("look_ahead_days", mcp.Description("Days to look ahead (default 14, max 30)")),
			mcp.WithArray("types", mcp.Description("Restrict to these session types, e.g. DEEP_WORK")),
			mcp.WithNumber("min_priority", mcp.Description("Lowest priority to suggest (1-5)")),
			mcp.WithNumber("max_priority", mcp.Description("Highest priority to suggest (1-5)")),
			mcp.WithString("timezone", mcp.Description("IANA timezone overriding the stored one")),
		),
		mcpSuggestSlots(deps),
	)

	s.AddTool(
		mcp.NewTool("detect_patterns",
			mcp.WithDescription("List the recurring weekly habits detected in a user's recent sessions."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithString("timezone", mcp.Description("IANA timezone overriding the stored one")),
		),
		mcpDetectPatterns(deps),
	)

	s.AddTool(
		mcp.NewTool("check_conflicts",
			mcp.WithDescription("List the active sessions that overlap a proposed time range."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithString("start_time", mcp.Description("Range start, RFC 3339"), mcp.Required()),
			mcp.WithString("end_time", mcp.Description("Range end, RFC 3339"), mcp.Required()),
			mcp.WithString("exclude_id", mcp.Description("Session id to ignore, e.g. the one being moved")),
		),
		mcpCheckConflicts(deps),
	)

	s.AddTool(
		mcp.NewTool("get_availability",
			mcp.WithDescription("Return a user's weekly availability windows and timezone."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
		),
		mcpGetAvailability(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"cadence://session-types",
			"Session Types",
			mcp.WithResourceDescription("Session types accepted by the scheduling tools"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSessionTypes(),
	)

	return s
}

func mcpSuggestSlots(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		tz, err := deps.Timezones.Resolve(ctx, userID, req.GetString("timezone", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}

		var opts suggest.Options
		for _, f := range []struct {
			key string
			dst *int
		}{
			{"look_ahead_days", &opts.LookAheadDays},
			{"min_priority", &opts.MinPriority},
			{"max_priority", &opts.MaxPriority},
		} {
			v, err := optionalPositiveInt(req, f.key)
			if err != nil {
				return mcpError(err.Error()), nil
			}
			*f.dst = v
		}
		for _, name := range req.GetStringSlice("types", nil) {
			t, err := schedule.ParseSessionType(name)
			if err != nil {
				return mcpError(err.Error()), nil
			}
			opts.PreferredTypes = append(opts.PreferredTypes, t)
		}

		suggestions, err := deps.Engine.SuggestTimeSlots(ctx, userID, opts, tz)
		if err != nil {
			return mcpError(fmt.Sprintf("suggest failed: %v", err)), nil
		}
		return mcpJSON(SuggestionsResponse{Timezone: tz, Suggestions: suggestions})
	}
}

func mcpDetectPatterns(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		tz, err := deps.Timezones.Resolve(ctx, userID, req.GetString("timezone", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}
		ps, err := deps.Engine.PatternsFor(ctx, userID, tz)
		if err != nil {
			return mcpError(fmt.Sprintf("detect patterns failed: %v", err)), nil
		}
		return mcpJSON(PatternsResponse{Timezone: tz, Patterns: ps})
	}
}

func mcpCheckConflicts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		start, err := requireTime(req, "start_time")
		if err != nil {
			return mcpError(err.Error()), nil
		}
		end, err := requireTime(req, "end_time")
		if err != nil {
			return mcpError(err.Error()), nil
		}

		found, err := deps.Engine.CheckConflicts(ctx, userID, start, end, req.GetString("exclude_id", ""))
		if err != nil {
			return mcpError(fmt.Sprintf("conflict check failed: %v", err)), nil
		}
		return mcpJSON(ConflictResponse{HasConflict: len(found) > 0, Conflicts: found})
	}
}

func mcpGetAvailability(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		wa, err := deps.Store.GetAvailability(ctx, userID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load availability: %v", err)), nil
		}
		tz, err := deps.Timezones.Get(ctx, userID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load timezone: %v", err)), nil
		}
		return mcpJSON(struct {
			Timezone     string                      `json:"timezone"`
			Availability schedule.WeeklyAvailability `json:"availability"`
		}{tz, wa})
	}
}

func mcpResourceSessionTypes() server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		type typeInfo struct {
			Type  schedule.SessionType `json:"type"`
			Label string               `json:"label"`
		}
		types := make([]typeInfo, len(schedule.SessionTypes))
		for i, t := range schedule.SessionTypes {
			types[i] = typeInfo{Type: t, Label: t.Label()}
		}
		b, err := json.Marshal(types)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal session types: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func requireTime(req mcp.CallToolRequest, key string) (time.Time, error) {
	s, err := req.RequireString(key)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp", key)
	}
	return t, nil
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

// optionalPositiveInt reads an optional integer argument. An absent key
// yields 0; a present one must be a positive integer.
func optionalPositiveInt(req mcp.CallToolRequest, key string) (int, error) {
	raw, ok := req.GetArguments()[key]
	if !ok {
		return 0, nil
	}
	var v int
	switch n := raw.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		v = int(n)
	case int:
		v = n
	case string:
		var err error
		if v, err = strconv.Atoi(n); err != nil {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	if v < 1 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return v, nil
}
