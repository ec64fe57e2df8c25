package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sweeper/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Notifications.NtfyTopic == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Notifications disabled; set notifications.ntfy_topic to enable them")
				return nil
			}

			timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
			sendCtx, cancel := context.WithTimeout(cmd.Context(), max(timeout, time.Second))
			defer cancel()

			svc := notifications.NewService(cfg)
			if err := svc.Publish(sendCtx, notifications.EventTest, nil); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
