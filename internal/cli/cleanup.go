package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ServerEye/internal/client"
)

func newCleanupCmd(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Ask the upstream to purge old events",
		Long: `Trigger a manual cleanup of the upstream event cache and print the
result. The command fails when the upstream refuses the cleanup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out := cmd.OutOrStdout()
			res, err := api.TriggerCleanup(ctx)
			var refused *client.CleanupFailure
			if errors.As(err, &refused) {
				fmt.Fprintf(out, "%s %s\n", color.RedString("cleanup failed:"), refused.Result.Message)
				return err
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s removed %s events", color.GreenString("cleanup complete:"), humanize.Comma(int64(res.DeletedCount)))
			if res.Message != "" {
				fmt.Fprintf(out, " (%s)", res.Message)
			}
			fmt.Fprintln(out)
			if res.Status != nil {
				printCleanupStatus(out, *res.Status)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall request timeout")
	return cmd
}
