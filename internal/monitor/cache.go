package monitor

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/SmitUplenchwar2687/ServerEye/internal/client"
	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
	"github.com/SmitUplenchwar2687/ServerEye/internal/pipeline"
)

// CacheKey is the storage key of the last good snapshot.
const CacheKey = "snapshot"

type cachedSnapshot struct {
	SavedAt time.Time             `json:"savedAt"`
	Events  json.RawMessage       `json:"events"`
	Cleanup *client.CleanupStatus `json:"cleanup,omitempty"`
}

func (m *Monitor) persist(s Snapshot) {
	if m.cfg.Storage == nil {
		return
	}
	events, err := event.MarshalRecords(s.Events)
	if err != nil {
		m.log.Warn().Err(err).Msg("encoding snapshot for cache")
		return
	}
	data, err := json.Marshal(cachedSnapshot{SavedAt: s.LastUpdate, Events: events, Cleanup: s.Cleanup})
	if err != nil {
		m.log.Warn().Err(err).Msg("encoding snapshot for cache")
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.Timeout)
	defer cancel()
	if err := m.cfg.Storage.Set(ctx, CacheKey, data, m.cfg.CacheTTL); err != nil {
		m.log.Warn().Err(err).Msg("saving snapshot to cache")
	}
}

// Restore seeds the monitor from the snapshot cache so the dashboard has
// data before the first successful fetch. It does nothing once a refresh
// has been applied or when the cache is empty. It reports whether a
// snapshot was restored.
func (m *Monitor) Restore(ctx context.Context) (bool, error) {
	if m.cfg.Storage == nil {
		return false, nil
	}
	data, err := m.cfg.Storage.Get(ctx, CacheKey)
	if err != nil {
		return false, fmt.Errorf("reading snapshot cache: %w", err)
	}
	if data == nil {
		return false, nil
	}

	var cached cachedSnapshot
	if err := json.Unmarshal(data, &cached); err != nil {
		return false, fmt.Errorf("decoding snapshot cache: %w", err)
	}
	records, err := event.DecodeRecords(cached.Events, event.DecodeOptions{Location: m.cfg.Location})
	if err != nil {
		return false, fmt.Errorf("decoding cached events: %w", err)
	}
	ingested := pipeline.Ingest(records)
	stats := pipeline.Aggregate(ingested)

	m.mu.Lock()
	if m.snap.Seq != 0 || m.snap.Restored {
		m.mu.Unlock()
		return false, nil
	}
	next := Snapshot{
		Events:     ingested,
		Stats:      stats,
		Cleanup:    cached.Cleanup,
		LastUpdate: cached.SavedAt,
		Restored:   true,
	}
	m.snap = next
	m.mu.Unlock()

	m.log.Info().Int("events", len(ingested)).Time("saved_at", cached.SavedAt).Msg("restored snapshot from cache")
	m.publish(next)
	return true, nil
}
