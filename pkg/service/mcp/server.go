package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/agentmem/pkg/model"
	"github.com/m-mizutani/agentmem/pkg/schema"
	"github.com/m-mizutani/agentmem/pkg/usecase/memory"
	"github.com/m-mizutani/agentmem/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverName = "agentmem"

type saveParams struct {
	Memory map[string]any `json:"memory" jsonschema:"Memory snapshot with project, context, state, decisions, nextActions and optional raw. Must not contain meta. See the memory_schema tool."`
}

type idParams struct {
	ID string `json:"id,omitempty" jsonschema:"Memory ID (UUID). Omit or pass 'latest' for the most recently saved memory"`
}

type listParams struct {
	Project string `json:"project,omitempty" jsonschema:"Glob pattern matched against the project name"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of entries to return"`
}

type schemaParams struct {
	Version string `json:"version,omitempty" jsonschema:"Schema version. Defaults to the current version"`
}

type saveResult struct {
	ID        model.MemoryID `json:"id"`
	Project   string         `json:"project"`
	CreatedAt time.Time      `json:"createdAt"`
}

type handler struct {
	uc *memory.UseCase
}

// NewServer creates an MCP server exposing the memory store as tools
func NewServer(uc *memory.UseCase, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: version,
	}, nil)

	h := &handler{uc: uc}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_memory",
		Description: "Save a snapshot of the current working context (goal, tech stack, decisions, state, next actions) as a new memory",
	}, h.save)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "load_memory",
		Description: "Load a saved memory by ID, or the latest one",
	}, h.load)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_memories",
		Description: "List saved memories, newest first",
	}, h.list)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "regenerate_markdown",
		Description: "Re-render the Markdown companion file of a saved memory",
	}, h.regenerate)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "memory_schema",
		Description: "Return the JSON Schema of a memory record",
	}, h.memorySchema)

	return server
}

// Serve runs the MCP server over stdin/stdout until ctx is done or the client disconnects
func Serve(ctx context.Context, uc *memory.UseCase, version string) error {
	if err := NewServer(uc, version).Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "MCP server failed")
	}
	return nil
}

func (h *handler) save(ctx context.Context, req *mcp.CallToolRequest, params *saveParams) (*mcp.CallToolResult, any, error) {
	m, err := h.uc.Save(ctx, params.Memory)
	if err != nil {
		return errorResult(ctx, "save_memory", err), nil, nil
	}

	return jsonResult(saveResult{
		ID:        m.Meta.ID,
		Project:   m.Meta.Project,
		CreatedAt: m.Meta.CreatedAt,
	})
}

func (h *handler) load(ctx context.Context, req *mcp.CallToolRequest, params *idParams) (*mcp.CallToolResult, any, error) {
	m, err := h.uc.Load(ctx, params.ID)
	if err != nil {
		return errorResult(ctx, "load_memory", err), nil, nil
	}
	return jsonResult(m)
}

func (h *handler) list(ctx context.Context, req *mcp.CallToolRequest, params *listParams) (*mcp.CallToolResult, any, error) {
	summaries, err := h.uc.List(ctx, memory.ListOptions{
		Project: params.Project,
		Limit:   params.Limit,
	})
	if err != nil {
		return errorResult(ctx, "list_memories", err), nil, nil
	}
	return jsonResult(summaries)
}

func (h *handler) regenerate(ctx context.Context, req *mcp.CallToolRequest, params *idParams) (*mcp.CallToolResult, any, error) {
	if err := h.uc.RegenerateMarkdown(ctx, params.ID); err != nil {
		return errorResult(ctx, "regenerate_markdown", err), nil, nil
	}
	return textResult("markdown regenerated"), nil, nil
}

func (h *handler) memorySchema(ctx context.Context, req *mcp.CallToolRequest, params *schemaParams) (*mcp.CallToolResult, any, error) {
	version := params.Version
	if version == "" {
		version = model.SchemaVersion
	}

	s, err := schema.JSONSchema(version)
	if err != nil {
		return errorResult(ctx, "memory_schema", err), nil, nil
	}
	return jsonResult(s)
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal tool result")
	}
	return textResult(string(data)), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// errorResult reports a failure as tool output (IsError) rather than a protocol error
func errorResult(ctx context.Context, tool string, err error) *mcp.CallToolResult {
	logging.From(ctx).Warn("tool call failed", "tool", tool, "error", err)

	result := textResult(err.Error())
	result.IsError = true
	return result
}
