package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/uiscout/uiscout/internal/catalog"
)

// NewMCPServer creates an MCP server exposing the component index to an IDE
// chat agent. The agent decides whether a user message is a literal lookup
// or a UI-need suggestion and picks the matching tool; the server itself
// does no intent classification.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"uiscout",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("uiscout: semantic index over the project's React component library."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_components",
			mcp.WithDescription("Semantically search indexed React components by name, description, props or tags."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
			mcp.WithString("category", mcp.Description("Only return components in this category")),
		),
		mcpSearchComponents(deps),
	)

	s.AddTool(
		mcp.NewTool("suggest_component",
			mcp.WithDescription("Suggest the best-fitting component for a described UI need."),
			mcp.WithString("description", mcp.Description("What the UI needs to do"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of suggestions (default 5)")),
		),
		mcpSuggestComponent(deps),
	)

	s.AddTool(
		mcp.NewTool("get_component",
			mcp.WithDescription("Fetch a component's full record (props, examples, import path) by name."),
			mcp.WithString("name", mcp.Description("Component display name"), mcp.Required()),
		),
		mcpGetComponent(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"components://list",
			"Indexed Components",
			mcp.WithResourceDescription("All indexed components as JSON, without vectors"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceComponents(deps),
	)

	return s
}

func mcpSearchComponents(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		q := catalog.SearchQuery{
			Text:  query,
			Limit: req.GetInt("limit", 0),
		}
		if category := req.GetString("category", ""); category != "" {
			q.Filters = &catalog.Filters{Category: category}
		}

		results, err := deps.Searcher.Search(ctx, q)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcpResults(results)
	}
}

func mcpSuggestComponent(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		description, err := req.RequireString("description")
		if err != nil {
			return mcpError("description is required"), nil
		}

		results, err := deps.Searcher.Suggest(ctx, description, req.GetInt("limit", 0))
		if err != nil {
			return mcpError(fmt.Sprintf("suggest failed: %v", err)), nil
		}

		return mcpResults(results)
	}
}

func mcpGetComponent(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}

		components, err := deps.Store.GetByName(ctx, name)
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}
		if len(components) == 0 {
			return mcpError(fmt.Sprintf("no component named %q", name)), nil
		}

		b, err := json.Marshal(components)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal components: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceComponents(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		components, err := deps.Store.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list components: %w", err)
		}
		if components == nil {
			components = []catalog.Component{}
		}

		b, err := json.Marshal(components)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal components: %w", err)
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

// mcpResults serializes search results, trimming example code so tool output
// stays compact for the agent's context window.
func mcpResults(results []catalog.SearchResult) (*mcp.CallToolResult, error) {
	if len(results) == 0 {
		return mcpText("[]"), nil
	}

	type resultSummary struct {
		ID            string   `json:"id"`
		Name          string   `json:"name"`
		Description   string   `json:"description"`
		Category      string   `json:"category,omitempty"`
		ImportPath    string   `json:"import_path,omitempty"`
		Tags          []string `json:"tags,omitempty"`
		Score         float64  `json:"score"`
		MatchedFields []string `json:"matched_fields"`
	}

	summaries := make([]resultSummary, len(results))
	for i, r := range results {
		summaries[i] = resultSummary{
			ID:            r.Component.ID,
			Name:          r.Component.Name,
			Description:   r.Component.Description,
			Category:      r.Component.Category,
			ImportPath:    r.Component.ImportPath,
			Tags:          r.Component.Tags,
			Score:         r.Score,
			MatchedFields: r.MatchedFields,
		}
	}

	b, err := json.Marshal(summaries)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
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
