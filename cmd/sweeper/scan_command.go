package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sweeper/internal/api"
	"sweeper/internal/daemon"
	"sweeper/internal/scan"
)

const progressInterval = 2 * time.Second

func newScanCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan of the library in the foreground",
		Long: "Run one scan of the library in the foreground.\n\n" +
			"The scan holds the same lock as the daemon, so stop `sweeper serve` first " +
			"or start the run from the dashboard instead. Interrupting the scan keeps " +
			"every verdict persisted so far.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			release, err := daemon.AcquireLock(cfg.LockPath())
			if err != nil {
				if errors.Is(err, daemon.ErrAlreadyRunning) {
					return fmt.Errorf("%w; start the run from the dashboard or stop the daemon first", err)
				}
				return err
			}
			defer release()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return ctx.withService(func(svc *api.Service) error {
				handle := svc.Handle()
				if handle == nil {
					return fmt.Errorf("%w; set immich.url and immich.api_key or run `sweeper config init`", api.ErrNotConfigured)
				}

				done := make(chan struct{})
				if !quiet && !jsonOutput {
					go reportProgress(cmd.ErrOrStderr(), handle.Coordinator, done)
				}
				state, runErr := handle.Coordinator.Run(runCtx)
				close(done)

				status := api.FromRunState(state, true)
				if jsonOutput {
					if err := writeJSON(cmd, status); err != nil {
						return err
					}
				} else {
					printRunSummary(cmd.OutOrStdout(), status, shouldColorize(cmd.OutOrStdout()))
				}
				return runErr
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the final run state as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress periodic progress lines")
	return cmd
}

func reportProgress(w io.Writer, coordinator *scan.Coordinator, done <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			fmt.Fprintln(w, progressLine(api.FromRunState(coordinator.Status(), true)))
		}
	}
}

func progressLine(s api.RunStatus) string {
	var processed string
	if s.TotalKnown {
		processed = fmt.Sprintf("%d/%d (%.1f%%)", s.Processed, s.Total, s.Percent)
	} else {
		processed = strconv.Itoa(s.Processed)
	}
	line := fmt.Sprintf("page %d  processed %s  candidates %d  failed %d  %.1f/s",
		s.Page, processed, s.CandidatesFound, s.Failed, s.Rate)
	if s.CurrentFile != "" {
		line += "  " + s.CurrentFile
	}
	return line
}

func printRunSummary(w io.Writer, s api.RunStatus, colorize bool) {
	renderSectionHeader(w, "Run", colorize)
	kind := statusInfo
	switch scan.Status(s.Status) {
	case scan.StatusCompleted:
		kind = statusOK
	case scan.StatusStopped:
		kind = statusWarn
	case scan.StatusError:
		kind = statusError
	}
	message := s.Status
	if s.Error != "" {
		message += ": " + s.Error
	}
	fmt.Fprintln(w, renderStatusLine("Status", kind, message, colorize))
	if s.RunID != "" {
		fmt.Fprintln(w, renderStatusLine("Run ID", statusInfo, s.RunID, colorize))
	}
	fmt.Fprintln(w, renderStatusLine("Progress", statusInfo, progressLine(s), colorize))
	fmt.Fprintln(w, renderStatusLine("Skipped", statusInfo, strconv.Itoa(s.Skipped), colorize))
	if s.ElapsedSeconds > 0 {
		elapsed := time.Duration(s.ElapsedSeconds * float64(time.Second)).Round(time.Second)
		fmt.Fprintln(w, renderStatusLine("Elapsed", statusInfo, elapsed.String(), colorize))
	}
}
