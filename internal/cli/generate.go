package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
	"github.com/SmitUplenchwar2687/ServerEye/internal/generate"
)

func newGenerateCmd() *cobra.Command {
	var (
		opts   = generate.DefaultOptions()
		start  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate synthetic event records",
		Long: `Generate a JSON array of event records in the upstream wire format,
for seeding the mock API or for testing the dashboard offline.`,
		Example: `  servereye generate --count 500 --players 20 --pattern burst
  servereye generate --seed 42 --output events.json
  servereye generate --types chat_message,player_join`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if start != "" {
				t, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				opts.Start = t
			}

			records, err := generate.Events(opts)
			if err != nil {
				return err
			}
			data, err := event.MarshalRecords(records)
			if err != nil {
				return err
			}
			data = append(data, '\n')

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s events (%s) to %s\n",
				humanize.Comma(int64(len(records))), humanize.Bytes(uint64(len(data))), output)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Count, "count", opts.Count, "number of events")
	cmd.Flags().IntVar(&opts.Players, "players", opts.Players, "number of distinct players")
	cmd.Flags().DurationVar(&opts.Duration, "duration", opts.Duration, "time span covered by the events")
	cmd.Flags().StringVar(&opts.Pattern, "pattern", opts.Pattern, "timing pattern (steady, burst, ramp)")
	cmd.Flags().StringVar(&start, "start", "", "RFC 3339 time of the first event (default: now minus duration)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (default: time based)")
	cmd.Flags().StringSliceVar(&opts.Types, "types", nil, "event types to draw from (default: all known types)")
	cmd.Flags().Float64Var(&opts.AnonymousRatio, "anonymous-ratio", opts.AnonymousRatio, "share of events without a player")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	return cmd
}
