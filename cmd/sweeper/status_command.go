package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sweeper/internal/api"
	"sweeper/internal/config"
	"sweeper/internal/preflight"
)

const daemonStatusTimeout = 3 * time.Second

type statusReport struct {
	Preflight   []preflight.Result     `json:"preflight"`
	Daemon      *api.RunStatus         `json:"daemon,omitempty"`
	DaemonError string                 `json:"daemon_error,omitempty"`
	Library     api.StatisticsResponse `json:"library"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration checks, daemon run state, and library totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			report := statusReport{Preflight: preflight.RunAll(cmd.Context(), cfg)}
			if run, err := fetchDaemonStatus(cmd.Context(), cfg); err != nil {
				report.DaemonError = err.Error()
			} else {
				report.Daemon = &run
			}
			if err := ctx.withService(func(svc *api.Service) error {
				stats, err := svc.Statistics(cmd.Context())
				report.Library = stats
				return err
			}); err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, report)
			}
			printStatusReport(cmd, report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	return cmd
}

func printStatusReport(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	renderSectionHeader(out, "Checks", colorize)
	for _, r := range report.Preflight {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}

	fmt.Fprintln(out)
	renderSectionHeader(out, "Daemon", colorize)
	if report.Daemon == nil {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, report.DaemonError, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "reachable", colorize))
		run := *report.Daemon
		kind := statusInfo
		if run.Running {
			kind = statusOK
		}
		fmt.Fprintln(out, renderStatusLine("Run", kind, run.Status, colorize))
		if run.Running || run.Processed > 0 {
			fmt.Fprintln(out, renderStatusLine("Progress", statusInfo, progressLine(run), colorize))
		}
		if run.Error != "" {
			fmt.Fprintln(out, renderStatusLine("Last error", statusError, run.Error, colorize))
		}
	}

	fmt.Fprintln(out)
	renderSectionHeader(out, "Library", colorize)
	lib := report.Library
	fmt.Fprintln(out, renderStatusLine("Analyzed", statusInfo, fmt.Sprintf("%d assets", lib.TotalAnalyzed), colorize))
	fmt.Fprintln(out, renderStatusLine("Candidates", statusInfo,
		fmt.Sprintf("%d (%s)", lib.TotalCandidates, formatBytes(lib.TotalBytes)), colorize))
	fmt.Fprintln(out, renderStatusLine("Marked", statusInfo,
		fmt.Sprintf("%d (%s)", lib.MarkedCount, formatBytes(lib.MarkedBytes)), colorize))
}

// daemonURL converts the bind address into a loopback-reachable base URL.
func daemonURL(bind string) (string, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return "", fmt.Errorf("api_bind is empty; the daemon API is disabled")
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "", fmt.Errorf("parse api_bind %q: %w", bind, err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

func fetchDaemonStatus(ctx context.Context, cfg *config.Config) (api.RunStatus, error) {
	var run api.RunStatus
	base, err := daemonURL(cfg.Paths.APIBind)
	if err != nil {
		return run, err
	}

	ctx, cancel := context.WithTimeout(ctx, daemonStatusTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/status", nil)
	if err != nil {
		return run, err
	}
	if cfg.Paths.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Paths.APIToken)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return run, fmt.Errorf("daemon not reachable at %s", base)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return run, fmt.Errorf("daemon status request returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return run, fmt.Errorf("decode daemon status: %w", err)
	}
	return run, nil
}
