package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/ryo246912/gh-issues-export/internal/analysis"
	"github.com/ryo246912/gh-issues-export/internal/export"
	"github.com/ryo246912/gh-issues-export/internal/service"
)

// Tool names
const (
	ToolExport    = "github_issues_export"
	ToolSummarize = "github_issues_summarize"
	ToolMetrics   = "github_issues_metrics"
)

// ServiceFactory builds an export service for "owner/name"; an empty repo
// selects the configured default
type ServiceFactory func(repo string) (*service.ExportService, error)

// ExportParams defines the input of github_issues_export
type ExportParams struct {
	Repo            string `json:"repo,omitempty" jsonschema:"GitHub repository in format owner/repo"`
	Output          string `json:"output,omitempty" jsonschema:"Output file; the extension selects csv, xlsx, json or sqlite"`
	IncludeComments *bool  `json:"include_comments,omitempty" jsonschema:"Whether to fetch issue comments"`
}

// SummarizeParams defines the input of github_issues_summarize
type SummarizeParams struct {
	Repo       string `json:"repo,omitempty" jsonschema:"GitHub repository in format owner/repo"`
	ByProduct  bool   `json:"by_product,omitempty" jsonschema:"Whether to group by product label (product:<name>)"`
	ByTag      bool   `json:"by_tag,omitempty" jsonschema:"Whether to count issues per label"`
	TimePeriod string `json:"time_period,omitempty" jsonschema:"Time period to filter by creation date: 1w, 1m, 3m or 1y"`
}

// MetricsParams defines the input of github_issues_metrics
type MetricsParams struct {
	Repo string `json:"repo,omitempty" jsonschema:"GitHub repository in format owner/repo"`
}

// Tools serves the issue tools over MCP
type Tools struct {
	services ServiceFactory
	opts     service.FetchOptions
	output   string
	fields   []export.Field
	log      *slog.Logger
	now      func() time.Time
}

// NewTools creates the tool set. opts, output and fields are the defaults
// each call starts from.
func NewTools(services ServiceFactory, opts service.FetchOptions, output string, fields []export.Field, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tools{
		services: services,
		opts:     opts,
		output:   output,
		fields:   fields,
		log:      logger,
		now:      time.Now,
	}
}

// Register adds every tool to server
func (t *Tools) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolExport,
		Description: "Export GitHub issues with comments and project status to a CSV, Excel, JSON or SQLite file",
	}, t.HandleExport)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolSummarize,
		Description: "Summarize GitHub issues by product, tag, or time period",
	}, t.HandleSummarize)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolMetrics,
		Description: "Analyze issue counts per month, time-to-close and comment coverage",
	}, t.HandleMetrics)
}

// HandleExport handles the github_issues_export tool call
func (t *Tools) HandleExport(ctx context.Context, req *mcp.CallToolRequest, params ExportParams) (*mcp.CallToolResult, any, error) {
	svc, err := t.services(params.Repo)
	if err != nil {
		return t.failure(ToolExport, err), nil, nil
	}

	opts := t.opts
	if params.IncludeComments != nil {
		opts.IncludeComments = *params.IncludeComments
	}
	output := t.output
	if params.Output != "" {
		output = params.Output
	}

	result, err := svc.ExportIssues(ctx, opts, output, t.fields)
	if err != nil {
		return t.failure(ToolExport, err), nil, nil
	}
	return success(result), nil, nil
}

// HandleSummarize handles the github_issues_summarize tool call
func (t *Tools) HandleSummarize(ctx context.Context, req *mcp.CallToolRequest, params SummarizeParams) (*mcp.CallToolResult, any, error) {
	svc, err := t.services(params.Repo)
	if err != nil {
		return t.failure(ToolSummarize, err), nil, nil
	}
	issues, err := svc.FetchIssues(ctx, t.opts)
	if err != nil {
		return t.failure(ToolSummarize, err), nil, nil
	}

	summary := analysis.Summarize(issues, analysis.SummaryOptions{
		ByProduct:  params.ByProduct,
		ByTag:      params.ByTag,
		TimePeriod: params.TimePeriod,
	}, t.now())
	return success(summary), nil, nil
}

// HandleMetrics handles the github_issues_metrics tool call
func (t *Tools) HandleMetrics(ctx context.Context, req *mcp.CallToolRequest, params MetricsParams) (*mcp.CallToolResult, any, error) {
	svc, err := t.services(params.Repo)
	if err != nil {
		return t.failure(ToolMetrics, err), nil, nil
	}
	issues, err := svc.FetchIssues(ctx, t.opts)
	if err != nil {
		return t.failure(ToolMetrics, err), nil, nil
	}
	return success(analysis.AnalyzeMetrics(issues)), nil, nil
}

type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func success(data any) *mcp.CallToolResult {
	return textResult(envelope{Status: "success", Data: data}, false)
}

func (t *Tools) failure(tool string, err error) *mcp.CallToolResult {
	t.log.Error("Tool call failed", "tool", tool, "err", err)
	return textResult(envelope{Status: "error", Message: err.Error()}, true)
}

func textResult(body envelope, isError bool) *mcp.CallToolResult {
	text, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		text = []byte(fmt.Sprintf(`{"status":"error","message":%q}`, err.Error()))
		isError = true
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
		IsError: isError,
	}
}
