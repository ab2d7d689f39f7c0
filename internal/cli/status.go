package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ServerEye/internal/client"
	"github.com/SmitUplenchwar2687/ServerEye/internal/pipeline"
)

var levelColors = map[string]*color.Color{
	client.LevelGood:     color.New(color.FgGreen),
	client.LevelWarning:  color.New(color.FgYellow),
	client.LevelCritical: color.New(color.FgRed, color.Bold),
}

func newStatusCmd(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show upstream reachability, event counts and cache usage",
		Example: `  servereye status
  servereye status --upstream http://localhost:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out := cmd.OutOrStdout()
			latency, err := api.Ping(ctx)
			if err != nil {
				fmt.Fprintf(out, "Upstream   %s  %s\n", api.Address(), color.RedString("offline"))
				return err
			}
			fmt.Fprintf(out, "Upstream   %s  %s (%s)\n", api.Address(), color.GreenString("online"), latency.Round(time.Millisecond))

			records, err := api.Events(ctx)
			if err != nil {
				return err
			}
			stats := pipeline.Aggregate(pipeline.Ingest(records))
			fmt.Fprintf(out, "Events     %s total, %s players\n",
				humanize.Comma(int64(stats.Total)), humanize.Comma(int64(stats.DistinctPlayers)))
			for _, tc := range stats.Types() {
				fmt.Fprintf(out, "  %-20s %s\n", typeColor(tc.Type).Sprint(tc.Type), humanize.Comma(int64(tc.Count)))
			}

			st, err := api.CleanupStatus(ctx)
			if err != nil {
				fmt.Fprintf(out, "Cache      %s (%v)\n", color.RedString("unavailable"), err)
				return nil
			}
			printCleanupStatus(out, st)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "overall request timeout")
	return cmd
}

func printCleanupStatus(out io.Writer, st client.CleanupStatus) {
	c, ok := levelColors[st.Level()]
	if !ok {
		c = faint
	}
	fmt.Fprintf(out, "Cache      %s/%s %s\n",
		humanize.Comma(st.CurrentCacheSize),
		humanize.Comma(st.MaxCacheSize),
		c.Sprintf("(%d%%)", st.UsagePercent()))

	auto := "disabled"
	if st.AutoCleanupEnabled {
		auto = "enabled"
	}
	fmt.Fprintf(out, "           oldest event %s days, auto cleanup %s every %s hours\n",
		client.FormatNumber(st.OldestEventAgeDays), auto, client.FormatNumber(st.CleanupIntervalHours))
}
