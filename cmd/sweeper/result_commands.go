package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sweeper/internal/api"
	"sweeper/internal/config"
	"sweeper/internal/daemon"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var q api.ResultsQuery
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "results",
		Short: "List stored cleanup candidates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withService(func(svc *api.Service) error {
				resp, err := svc.Results(cmd.Context(), q)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Items) == 0 {
					fmt.Fprintln(out, "No candidates found")
					return nil
				}
				fmt.Fprintln(out, renderTable(resultColumns(), resultRows(resp.Items)))
				if resp.Count == resp.Limit {
					fmt.Fprintf(out, "Showing %d from offset %d; use --offset %d for more\n",
						resp.Count, resp.Offset, resp.Offset+resp.Count)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&q.Category, "category", "", "Only show this category (screenshot, web_cache, ...)")
	cmd.Flags().Float64Var(&q.MinConfidence, "min-confidence", 0, "Only show candidates at or above this confidence (0-1)")
	cmd.Flags().BoolVar(&q.MarkedOnly, "marked", false, "Only show candidates marked for deletion")
	cmd.Flags().IntVar(&q.Limit, "limit", 50, "Maximum rows to show")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "Rows to skip")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	cmd.AddCommand(newResultsClearCommand(ctx))
	return cmd
}

func newResultsClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget every stored candidate and the analysis ledger",
		Long: "Forget every stored candidate and the analysis ledger so the next scan " +
			"re-evaluates the whole library. Nothing is deleted from Immich.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "All stored results will be forgotten.")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}
			release, err := daemon.AcquireLock(cfg.LockPath())
			if err != nil {
				if errors.Is(err, daemon.ErrAlreadyRunning) {
					return fmt.Errorf("%w; clear results from the dashboard or stop the daemon first", err)
				}
				return err
			}
			defer release()

			return ctx.withService(func(svc *api.Service) error {
				resp, err := svc.ClearResults(cmd.Context())
				if resp.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func resultColumns() []column {
	return []column{
		{header: "Asset"},
		{header: "Category"},
		{header: "Conf", align: alignRight},
		{header: "Size", align: alignRight},
		{header: "File", maxWidth: 40},
		{header: "Marked"},
		{header: "Reason", maxWidth: 50},
	}
}

func resultRows(items []api.ResultItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.AssetID,
			categoryLabel(item.Category),
			formatConfidence(item.Confidence),
			formatBytes(item.FileSize),
			item.Filename,
			yesNo(item.MarkedForDeletion),
			item.Reason,
		})
	}
	return rows
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise stored candidates by category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withService(func(svc *api.Service) error {
				stats, err := svc.Statistics(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, stats)
				}
				printStatistics(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print statistics as JSON")
	return cmd
}

func printStatistics(out io.Writer, stats api.StatisticsResponse) {
	columns := []column{
		{header: "Category"},
		{header: "Count", align: alignRight},
		{header: "Avg Conf", align: alignRight},
		{header: "Size", align: alignRight},
	}
	rows := make([][]string, 0, len(stats.Categories)+1)
	for _, c := range stats.Categories {
		rows = append(rows, []string{
			categoryLabel(c.Category),
			strconv.Itoa(c.Count),
			formatConfidence(c.AverageConfidence),
			formatBytes(c.TotalBytes),
		})
	}
	rows = append(rows, []string{"Total", strconv.Itoa(stats.TotalCandidates), "", formatBytes(stats.TotalBytes)})
	fmt.Fprintln(out, renderTable(columns, rows))
	fmt.Fprintf(out, "Analyzed: %d  High confidence: %d  Marked: %d (%s)\n",
		stats.TotalAnalyzed, stats.HighConfidence, stats.MarkedCount, formatBytes(stats.MarkedBytes))
}

func newMarkCommand(ctx *commandContext) *cobra.Command {
	var unmark bool

	cmd := &cobra.Command{
		Use:   "mark <asset-id>...",
		Short: "Mark candidates for deletion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.Service) error {
				resp, err := svc.Mark(cmd.Context(), api.MarkRequest{IDs: args, Marked: !unmark})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unmark, "unmark", false, "Clear the deletion mark instead")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	var marked bool
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete [asset-id...]",
		Short: "Delete candidates from Immich and the result store",
		Args: func(cmd *cobra.Command, args []string) error {
			if marked && len(args) > 0 {
				return errors.New("pass asset ids or --marked, not both")
			}
			if !marked && len(args) == 0 {
				return errors.New("pass asset ids or --marked")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !yes {
				ok, err := confirmDelete(cmd.InOrStdin(), cmd.OutOrStdout(), cfg, marked, len(args))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}
			return ctx.withService(func(svc *api.Service) error {
				resp, err := svc.Delete(cmd.Context(), api.DeleteRequest{IDs: args, Marked: marked})
				if resp.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&marked, "marked", false, "Delete every candidate marked for deletion")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func confirmDelete(in io.Reader, out io.Writer, cfg *config.Config, marked bool, count int) (bool, error) {
	target := fmt.Sprintf("%d assets", count)
	if marked {
		target = "all marked assets"
	}
	mode := "moved to the Immich trash"
	if cfg.Immich.ForceDelete {
		mode = "permanently deleted"
	}
	return confirm(in, out, fmt.Sprintf("%s will be %s.", target, mode))
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(out, "%s Continue? [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var format string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export candidates as CSV or as a deletion shell script",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "csv" && format != "script" {
				return fmt.Errorf("unsupported export format %q (use csv or script)", format)
			}
			return ctx.withService(func(svc *api.Service) error {
				out := cmd.OutOrStdout()
				var file *os.File
				if outputPath != "" && outputPath != "-" {
					path, err := config.ExpandPath(outputPath)
					if err != nil {
						return err
					}
					mode := os.FileMode(0o644)
					if format == "script" {
						mode = 0o755
					}
					file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
					if err != nil {
						return fmt.Errorf("create export file: %w", err)
					}
					defer file.Close()
					out = file
				}

				var err error
				if format == "script" {
					err = svc.Script(cmd.Context(), out)
				} else {
					err = svc.Export(cmd.Context(), out)
				}
				if err != nil {
					return err
				}
				if file != nil {
					if err := file.Close(); err != nil {
						return fmt.Errorf("close export file: %w", err)
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s export to %s\n", format, file.Name())
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Export format: csv or script")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}
