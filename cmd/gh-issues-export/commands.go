package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/ryo246912/gh-issues-export/internal/analysis"
	"github.com/ryo246912/gh-issues-export/internal/config"
	"github.com/ryo246912/gh-issues-export/internal/export"
	"github.com/ryo246912/gh-issues-export/internal/mcptools"
	"github.com/ryo246912/gh-issues-export/internal/ui"
	"github.com/spf13/cobra"
)

const serverVersion = "v1.0.0"

func newExportCmd(a *app) *cobra.Command {
	var (
		force        bool
		format       string
		chooseFormat bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export issues to CSV, Excel, JSON or SQLite",
		Long: `Export issues to a file. The output extension selects the format:
.xlsx for Excel, .json for JSON, .db or .sqlite for SQLite, anything else CSV.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := export.ParseFields(a.cfg.Fields)
			if err != nil {
				return err
			}

			output, err := a.resolveOutput(format, chooseFormat)
			if err != nil {
				return err
			}
			proceed, err := a.confirmOverwrite(output, force)
			if err != nil {
				return err
			}
			if !proceed {
				fmt.Fprintln(a.stdout, "Export cancelled")
				return nil
			}

			opts, err := a.fetchOptions()
			if err != nil {
				return err
			}
			svc, err := a.newService("")
			if err != nil {
				return err
			}

			result, err := svc.ExportIssues(cmd.Context(), opts, output, fields)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Exported %d issues from %s to %s\n", result.Issues, result.Repository, result.Output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringP("output", "o", config.DefaultOutput, "output file")
	f.StringSlice("fields", nil, "comma separated fields to export (default: "+strings.Join(export.Header(export.DefaultFields), ", ")+")")
	f.BoolVarP(&force, "force", "f", false, "overwrite the output file without asking")
	f.StringVar(&format, "format", "", "output format, replacing the output extension: csv, xlsx, json or sqlite")
	f.BoolVar(&chooseFormat, "choose-format", false, "pick the output format interactively")
	_ = a.v.BindPFlag(config.KeyOutput, f.Lookup("output"))
	_ = a.v.BindPFlag(config.KeyFields, f.Lookup("fields"))

	return cmd
}

// resolveOutput applies --format or the interactive format choice to the
// configured output path
func (a *app) resolveOutput(format string, choose bool) (string, error) {
	output := a.cfg.Output
	if choose {
		names := make([]string, len(export.Formats))
		for i, f := range export.Formats {
			names[i] = string(f)
		}
		selected, err := a.prompter.SelectFormat(names)
		if err != nil {
			return "", err
		}
		format = selected
	}
	if format == "" {
		return output, nil
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return "", err
	}
	return export.WithFormat(output, f), nil
}

// confirmOverwrite asks before replacing an existing file. Without a
// terminal the file is overwritten.
func (a *app) confirmOverwrite(output string, force bool) (bool, error) {
	if force || !export.Exists(output) {
		return true, nil
	}
	if !ui.IsInteractive() {
		a.log.Warn("Overwriting existing file", "path", output)
		return true, nil
	}
	return a.prompter.ConfirmOverwrite(output)
}

func newSummaryCmd(a *app) *cobra.Command {
	var (
		opts   analysis.SummaryOptions
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize issues by product, tag, or time period",
		RunE: func(cmd *cobra.Command, args []string) error {
			fetch, err := a.fetchOptions()
			if err != nil {
				return err
			}
			svc, err := a.newService("")
			if err != nil {
				return err
			}
			issues, err := svc.FetchIssues(cmd.Context(), fetch)
			if err != nil {
				return err
			}

			summary := analysis.Summarize(issues, opts, time.Now())
			if asJSON {
				return a.printJSON(summary)
			}
			fmt.Fprint(a.stdout, ui.RenderSummary(svc.Repository(), summary))
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.ByProduct, "by-product", false, "group by product:<name> label")
	f.BoolVar(&opts.ByTag, "by-tag", false, "count issues per label")
	f.StringVar(&opts.TimePeriod, "period", "", "only issues created in the last 1w, 1m, 3m or 1y")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newMetricsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show monthly issue counts, time-to-close and comment coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			fetch, err := a.fetchOptions()
			if err != nil {
				return err
			}
			svc, err := a.newService("")
			if err != nil {
				return err
			}
			issues, err := svc.FetchIssues(cmd.Context(), fetch)
			if err != nil {
				return err
			}

			metrics := analysis.AnalyzeMetrics(issues)
			if asJSON {
				return a.printJSON(metrics)
			}
			fmt.Fprint(a.stdout, ui.RenderMetrics(svc.Repository(), metrics))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the export, summary and metrics tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			fetch, err := a.fetchOptions()
			if err != nil {
				return err
			}
			fields, err := export.ParseFields(a.cfg.Fields)
			if err != nil {
				return err
			}

			server := mcp.NewServer(&mcp.Implementation{
				Name:    "gh-issues-export",
				Version: serverVersion,
			}, nil)
			mcptools.NewTools(a.newService, fetch, a.cfg.Output, fields, a.log).Register(server)

			a.log.Info("Starting MCP server on stdio", "repo", a.cfg.FullName())
			if err := server.Run(cmd.Context(), &mcp.StdioTransport{}); err != nil {
				return fmt.Errorf("MCP server error: %w", err)
			}
			a.log.Info("MCP server stopped")
			return nil
		},
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
