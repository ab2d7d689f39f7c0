package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ServerEye/internal/clock"
	"github.com/SmitUplenchwar2687/ServerEye/internal/limiter"
	"github.com/SmitUplenchwar2687/ServerEye/internal/metrics"
	"github.com/SmitUplenchwar2687/ServerEye/internal/monitor"
	"github.com/SmitUplenchwar2687/ServerEye/internal/server"
	"github.com/SmitUplenchwar2687/ServerEye/internal/storage"
)

func newDashboardCmd(a *app) *cobra.Command {
	var (
		addr         string
		pollInterval time.Duration
		rate         int
		window       time.Duration
		burst        int
		exportGzip   bool
		trustProxy   bool
		store        storageOptions
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the live event dashboard",
		Long: `Start the web dashboard. Events are polled from the upstream API,
pushed to connected browsers over WebSocket and cached so a restart shows
the last good data straight away.`,
		Example: `  servereye dashboard --upstream http://mc.example.com:8080
  servereye dashboard --addr :9000 --poll-interval 10s
  servereye dashboard --storage redis --redis-host localhost:6379`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("addr") {
				a.cfg.Dashboard.Addr = addr
			}
			if flags.Changed("poll-interval") {
				a.cfg.Upstream.PollInterval = pollInterval
			}
			if flags.Changed("rate") {
				a.cfg.Limits.Rate = rate
			}
			if flags.Changed("window") {
				a.cfg.Limits.Window = window
			}
			if flags.Changed("burst") {
				a.cfg.Limits.Burst = burst
			}
			if flags.Changed("export-gzip") {
				a.cfg.Export.Gzip = exportGzip
			}
			if flags.Changed("trust-proxy") {
				a.cfg.Dashboard.TrustProxy = trustProxy
			}
			if err := store.apply(cmd, &a.cfg.Storage); err != nil {
				return err
			}

			api, err := a.newClient()
			if err != nil {
				return err
			}
			cfg := a.cfg
			loc, _ := cfg.Location()
			clk := clock.NewRealClock()

			st, err := storage.New(cfg.Storage, clk)
			if err != nil {
				return fmt.Errorf("creating snapshot cache: %w", err)
			}
			defer st.Close()

			m := metrics.New()
			mon := monitor.New(monitor.Config{
				API:                 api,
				Clock:               clk,
				PollInterval:        cfg.Upstream.PollInterval,
				Timeout:             cfg.Upstream.Timeout,
				CleanupRefreshDelay: cfg.Dashboard.CleanupRefreshDelay,
				Location:            loc,
				Storage:             st,
				CacheTTL:            cfg.Storage.TTL,
				Metrics:             m,
			})
			defer mon.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if ok, err := mon.Restore(ctx); err != nil {
				zlog.Warn().Err(err).Msg("restoring cached snapshot")
			} else if ok {
				zlog.Info().Int("events", mon.Snapshot().Stats.Total).Msg("restored cached snapshot")
			}

			srv := server.New(server.Options{
				Addr:           cfg.Dashboard.Addr,
				Monitor:        mon,
				Limiter:        limiter.New(cfg.Limits, clk),
				Clock:          clk,
				Metrics:        m,
				Language:       cfg.Dashboard.Language,
				Location:       loc,
				MaxDepth:       cfg.Dashboard.DetailMaxDepth,
				FilterDebounce: cfg.Dashboard.FilterDebounce,
				ExportGzip:     cfg.Export.Gzip,
				TrustProxy:     cfg.Dashboard.TrustProxy,
			})

			zlog.Info().
				Str("upstream", api.Address()).
				Str("dashboard", "http://localhost"+cfg.Dashboard.Addr+"/").
				Str("storage", cfg.Storage.Backend).
				Msg("starting dashboard")

			go func() {
				if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					zlog.Error().Err(err).Msg("monitor stopped")
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				zlog.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8090", "address to listen on")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 30*time.Second, "how often to poll the upstream API")
	cmd.Flags().IntVar(&rate, "rate", 6, "refresh and cleanup requests allowed per window per client")
	cmd.Flags().DurationVar(&window, "window", time.Minute, "rate limit window duration")
	cmd.Flags().IntVar(&burst, "burst", 3, "max burst size (0 = same as rate)")
	cmd.Flags().BoolVar(&exportGzip, "export-gzip", false, "gzip dashboard downloads by default")
	cmd.Flags().BoolVar(&trustProxy, "trust-proxy", false, "rate limit by X-Forwarded-For (only behind a trusted proxy)")
	store.addFlags(cmd)

	return cmd
}
