package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
	"github.com/SmitUplenchwar2687/ServerEye/internal/export"
	"github.com/SmitUplenchwar2687/ServerEye/internal/format"
	"github.com/SmitUplenchwar2687/ServerEye/internal/i18n"
	"github.com/SmitUplenchwar2687/ServerEye/internal/pipeline"
)

var typeColors = map[string]*color.Color{
	event.TypePlayerJoin:       color.New(color.FgGreen),
	event.TypePlayerLeave:      color.New(color.FgYellow),
	event.TypeBlockBreak:       color.New(color.FgRed),
	event.TypeBlockPlace:       color.New(color.FgBlue),
	event.TypeChatMessage:      color.New(color.FgCyan),
	event.TypeGamemodeChange:   color.New(color.FgMagenta),
	event.TypeCommandExecution: color.New(color.FgWhite, color.Bold),
}

var faint = color.New(color.Faint)

func typeColor(t string) *color.Color {
	if c, ok := typeColors[t]; ok {
		return c
	}
	return faint
}

func newEventsCmd(a *app) *cobra.Command {
	var (
		filter  filterOptions
		asJSON  bool
		limit   int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Fetch and print the current events",
		Long: `Fetch the event list once, sort it newest first and print it as
cards with formatted details. Filters match the dashboard's: an exact
event type and a case-insensitive player substring.`,
		Example: `  servereye events
  servereye events --type chat_message --player steve
  servereye events --limit 20 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			records, err := api.Events(ctx)
			if err != nil {
				return err
			}
			all := pipeline.Ingest(records)
			f := filter.filter()
			view := f.Apply(all)
			if limit > 0 && len(view) > limit {
				view = view[:limit]
			}

			now := time.Now()
			out := cmd.OutOrStdout()
			if asJSON {
				return export.Encode(out, export.New(view, f, now), false)
			}

			loc, _ := a.cfg.Location()
			tr := i18n.MustLoad(a.cfg.Dashboard.Language)
			printCards(out, format.Cards(view, len(all), now, format.Options{
				Localizer: tr,
				MaxDepth:  a.cfg.Dashboard.DetailMaxDepth,
				Location:  loc,
			}))
			fmt.Fprintf(out, "%s of %s events shown\n",
				humanize.Comma(int64(len(view))), humanize.Comma(int64(len(all))))
			return nil
		},
	}

	filter.addFlags(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the filtered events as an export document")
	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many events (0 = all)")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "overall request timeout")

	return cmd
}

func printCards(w io.Writer, cards []format.Card) {
	for _, c := range cards {
		player := faint.Sprint("-")
		if c.HasPlayer {
			player = color.New(color.Bold).Sprint(c.Player)
		}
		fmt.Fprintf(w, "#%-5d %s  %s  %s %s\n",
			c.Index,
			typeColor(c.Type).Sprint(c.TypeLabel),
			player,
			c.Time,
			faint.Sprintf("(%s)", c.Relative),
		)
		if text := format.Text(c.Details, "    "); text != "" {
			fmt.Fprintln(w, strings.TrimRight(text, "\n"))
		}
	}
}
