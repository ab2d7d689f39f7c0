package server

import (
	"fmt"

	"github.com/SmitUplenchwar2687/ServerEye/internal/client"
	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
	"github.com/SmitUplenchwar2687/ServerEye/internal/format"
	"github.com/SmitUplenchwar2687/ServerEye/internal/i18n"
	"github.com/SmitUplenchwar2687/ServerEye/internal/monitor"
	"github.com/SmitUplenchwar2687/ServerEye/internal/pipeline"
)

// View is everything the dashboard shows for one filter and language.
type View struct {
	Lang         string          `json:"lang"`
	Filter       pipeline.Filter `json:"filter"`
	Stats        pipeline.Stats  `json:"stats"`
	BlocksBroken int             `json:"blocks_broken"`
	ChatMessages int             `json:"chat_messages"`
	Shown        int             `json:"shown"`
	Online       bool            `json:"online"`
	Connection   string          `json:"connection"`
	LastUpdate   string          `json:"last_update"`
	Restored     bool            `json:"restored"`
	Cleanup      CleanupView     `json:"cleanup"`
	Cards        []format.Card   `json:"cards"`
}

// CleanupView is the cache status line.
type CleanupView struct {
	Available bool   `json:"available"`
	Summary   string `json:"summary"`
	Details   string `json:"details"`
	Level     string `json:"level"`
	Usage     int    `json:"usage"`
}

type typeOption struct {
	Value    string
	Label    string
	Selected bool
}

func (s *Server) buildView(snap monitor.Snapshot, f pipeline.Filter, tr *i18n.Catalog) View {
	f = f.Normalize()
	now := s.clock.Now()
	view := snap.View(f)

	v := View{
		Lang:         tr.Name(),
		Filter:       f,
		Stats:        snap.Stats,
		BlocksBroken: snap.Stats.Count(event.TypeBlockBreak),
		ChatMessages: snap.Stats.Count(event.TypeChatMessage),
		Shown:        len(view),
		Online:       snap.Online,
		Restored:     snap.Restored,
		Cleanup:      cleanupView(snap, tr),
		Cards: format.Cards(view, len(snap.Events), now, format.Options{
			Localizer: tr,
			MaxDepth:  s.opts.MaxDepth,
			Location:  s.opts.Location,
		}),
	}
	if v.Stats.PerType == nil {
		v.Stats.PerType = map[string]int{}
	}

	state := tr.T("offline")
	if snap.Online {
		state = tr.T("online")
	}
	v.Connection = tr.T("connection", state)

	last := tr.T("never")
	if !snap.LastUpdate.IsZero() {
		last = snap.LastUpdate.In(s.opts.Location).Format(tr.TimeLayout())
	}
	v.LastUpdate = tr.T("last_update", last)
	return v
}

func cleanupView(snap monitor.Snapshot, tr *i18n.Catalog) CleanupView {
	if !snap.CleanupAvailable() {
		return CleanupView{Summary: tr.T("cache_unavailable"), Level: client.LevelCritical}
	}
	st := snap.Cleanup
	auto := tr.T("disabled")
	if st.AutoCleanupEnabled {
		auto = tr.T("enabled")
	}
	usage := st.UsagePercent()
	return CleanupView{
		Available: true,
		Summary:   formatUsage(st.CurrentCacheSize, st.MaxCacheSize, usage),
		Details: tr.T("cache_details",
			client.FormatNumber(st.OldestEventAgeDays),
			auto,
			client.FormatNumber(st.CleanupIntervalHours)),
		Level: st.Level(),
		Usage: usage,
	}
}

func formatUsage(current, max int64, usage int) string {
	return fmt.Sprintf("%d/%d (%d%%)", current, max, usage)
}

// typeOptions lists the known types first, then any others seen in the
// snapshot.
func typeOptions(stats pipeline.Stats, selected string, tr *i18n.Catalog) []typeOption {
	seen := make(map[string]bool, len(event.KnownTypes))
	opts := make([]typeOption, 0, len(event.KnownTypes))
	for _, t := range event.KnownTypes {
		seen[t] = true
		opts = append(opts, typeOption{Value: t, Label: tr.EventType(t), Selected: t == selected})
	}
	for _, tc := range stats.Types() {
		if seen[tc.Type] || tc.Type == "" {
			continue
		}
		opts = append(opts, typeOption{Value: tc.Type, Label: tr.EventType(tc.Type), Selected: tc.Type == selected})
	}
	return opts
}

func depths(max int) []int {
	out := make([]int, max)
	for i := range out {
		out[i] = i + 1
	}
	return out
}
