package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
	"github.com/SmitUplenchwar2687/ServerEye/internal/generate"
	"github.com/SmitUplenchwar2687/ServerEye/internal/mockapi"
)

func newMockAPICmd() *cobra.Command {
	var (
		addr     string
		input    string
		count    int
		players  int
		maxCache int
		retain   time.Duration
		live     time.Duration
		auto     bool
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "mockapi",
		Short: "Run a local stand-in for the ServerEye event API",
		Long: `Serve /api/events and /api/cleanup with generated or file-loaded
events, so the dashboard and the other commands can be tried without a
game server.`,
		Example: `  servereye mockapi --addr :8080 --count 200
  servereye mockapi --input events.json --live 5s
  servereye mockapi --max-cache 100 --retain 30m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []event.Record
			if input != "" {
				data, err := os.ReadFile(input)
				if err != nil {
					return fmt.Errorf("reading %s: %w", input, err)
				}
				records, err = event.DecodeRecords(data, event.DecodeOptions{})
				if err != nil {
					return fmt.Errorf("decoding %s: %w", input, err)
				}
			} else if count > 0 {
				var err error
				records, err = generate.Events(generate.Options{
					Count:          count,
					Players:        players,
					Duration:       2 * time.Hour,
					Seed:           seed,
					AnonymousRatio: 0.05,
				})
				if err != nil {
					return err
				}
			}

			srv := mockapi.New(mockapi.Options{
				Addr:         addr,
				Events:       records,
				MaxCacheSize: maxCache,
				Retain:       retain,
				AutoCleanup:  auto,
				LiveInterval: live,
				Players:      players,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON file of events to serve instead of generated ones")
	cmd.Flags().IntVar(&count, "count", 100, "number of generated events to start with")
	cmd.Flags().IntVar(&players, "players", 5, "number of distinct generated players")
	cmd.Flags().IntVar(&maxCache, "max-cache", 1000, "reported cache capacity; older events are dropped beyond it")
	cmd.Flags().DurationVar(&retain, "retain", time.Hour, "events older than this are removed by cleanup")
	cmd.Flags().DurationVar(&live, "live", 0, "append a generated event at this interval (0 = off)")
	cmd.Flags().BoolVar(&auto, "auto-cleanup", true, "report automatic cleanup as enabled")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (default: time based)")

	return cmd
}
