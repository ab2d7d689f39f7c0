// Package monitor owns the dashboard state. Every refresh, whatever
// triggered it, goes through Monitor.Refresh.
package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/SmitUplenchwar2687/ServerEye/internal/client"
	"github.com/SmitUplenchwar2687/ServerEye/internal/clock"
	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
	"github.com/SmitUplenchwar2687/ServerEye/internal/metrics"
	"github.com/SmitUplenchwar2687/ServerEye/internal/pipeline"
	"github.com/SmitUplenchwar2687/ServerEye/internal/storage"
)

// ErrRefreshInFlight is returned when a refresh is requested while
// another is still running. The request is dropped, not queued.
var ErrRefreshInFlight = errors.New("refresh already in flight")

// Trigger names what started a refresh.
type Trigger string

const (
	TriggerInitial    Trigger = "initial"
	TriggerPoll       Trigger = "poll"
	TriggerManual     Trigger = "manual"
	TriggerVisibility Trigger = "visibility"
	TriggerCleanup    Trigger = "cleanup"
)

// ParseTrigger maps a client-supplied reason to a Trigger, defaulting to
// TriggerManual.
func ParseTrigger(s string) Trigger {
	switch t := Trigger(s); t {
	case TriggerVisibility, TriggerManual:
		return t
	default:
		return TriggerManual
	}
}

// API is the part of the upstream client the monitor uses.
type API interface {
	Events(ctx context.Context) ([]event.Record, error)
	CleanupStatus(ctx context.Context) (client.CleanupStatus, error)
	TriggerCleanup(ctx context.Context) (client.CleanupResult, error)
}

// Config configures a Monitor.
type Config struct {
	API   API
	Clock clock.Clock

	// PollInterval is the period of Run's refresh loop.
	PollInterval time.Duration

	// Timeout bounds each upstream call.
	Timeout time.Duration

	// CleanupRefreshDelay is the wait between a successful cleanup and the
	// refresh that follows it.
	CleanupRefreshDelay time.Duration

	// Location is used when decoding cached snapshots.
	Location *time.Location

	// Storage, when set, receives every successful snapshot and seeds the
	// monitor on Restore.
	Storage  storage.Storage
	CacheTTL time.Duration

	Metrics *metrics.Metrics
}

// Monitor holds the current Snapshot and refreshes it from the API.
type Monitor struct {
	cfg Config
	clk clock.Clock
	log zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	inFlight atomic.Bool
	issued   atomic.Uint64

	mu      sync.RWMutex
	snap    Snapshot
	pending clock.Timer

	subMu  sync.Mutex
	subs   map[uint64]func(Snapshot)
	nextID uint64
}

// New returns a Monitor. Call Close to stop pending work.
func New(cfg Config) *Monitor {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewRealClock()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CleanupRefreshDelay < 0 {
		cfg.CleanupRefreshDelay = 0
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		cfg:    cfg,
		clk:    cfg.Clock,
		log:    zlog.With().Str("component", "monitor").Logger(),
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[uint64]func(Snapshot)),
	}
}

// Snapshot returns the current state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Subscribe registers fn to be called after every publication. fn must
// not block. The returned func unsubscribes.
func (m *Monitor) Subscribe(fn func(Snapshot)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

// Run refreshes immediately and then every PollInterval until ctx is done.
// Ticks that find a refresh in flight are dropped.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info().Dur("interval", m.cfg.PollInterval).Msg("polling upstream")
	m.refreshQuietly(ctx, TriggerInitial)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.clk.After(m.cfg.PollInterval):
			m.refreshQuietly(ctx, TriggerPoll)
		}
	}
}

func (m *Monitor) refreshQuietly(ctx context.Context, t Trigger) {
	if err := m.Refresh(ctx, t); err != nil && !errors.Is(err, ErrRefreshInFlight) && ctx.Err() == nil {
		m.log.Debug().Err(err).Str("trigger", string(t)).Msg("refresh failed")
	}
}

// Refresh fetches events and cleanup status and publishes a new Snapshot.
// It returns ErrRefreshInFlight without doing anything when another
// refresh is running, and the events fetch error otherwise. A failed fetch
// keeps the previous events and marks the snapshot offline.
func (m *Monitor) Refresh(ctx context.Context, trigger Trigger) error {
	if !m.inFlight.CompareAndSwap(false, true) {
		m.cfg.Metrics.ObserveRefresh(string(trigger), metrics.ResultSkipped, 0)
		m.log.Debug().Str("trigger", string(trigger)).Msg("refresh skipped, one already in flight")
		return ErrRefreshInFlight
	}
	defer m.inFlight.Store(false)

	seq := m.issued.Add(1)
	log := m.log.With().
		Str("refresh_id", uuid.NewString()).
		Str("trigger", string(trigger)).
		Uint64("seq", seq).
		Logger()
	start := m.clk.Now()

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	var (
		wg      sync.WaitGroup
		records []event.Record
		evErr   error
		status  client.CleanupStatus
		stErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		records, evErr = m.cfg.API.Events(callCtx)
	}()
	go func() {
		defer wg.Done()
		status, stErr = m.cfg.API.CleanupStatus(callCtx)
	}()
	wg.Wait()

	// A caller that went away says nothing about the upstream.
	if err := ctx.Err(); err != nil {
		m.cfg.Metrics.ObserveRefresh(string(trigger), metrics.ResultSkipped, m.clk.Since(start))
		log.Debug().Err(err).Msg("refresh abandoned by caller")
		return err
	}

	res := fetchResult{seq: seq, records: records, evErr: evErr, status: status, stErr: stErr}
	applied := m.apply(res)
	elapsed := m.clk.Since(start)

	switch {
	case !applied:
		m.cfg.Metrics.ObserveRefresh(string(trigger), metrics.ResultStale, elapsed)
		log.Warn().Msg("dropping stale refresh result")
	case evErr != nil:
		m.cfg.Metrics.ObserveRefresh(string(trigger), metrics.ResultError, elapsed)
		log.Warn().Err(evErr).Bool("connectivity", client.IsConnectivity(evErr)).Msg("event fetch failed, keeping previous events")
	default:
		m.cfg.Metrics.ObserveRefresh(string(trigger), metrics.ResultOK, elapsed)
		log.Debug().Int("events", len(records)).Dur("took", elapsed).Msg("refreshed")
	}
	if stErr != nil {
		log.Warn().Err(stErr).Msg("cleanup status fetch failed")
	}
	return evErr
}

type fetchResult struct {
	seq     uint64
	records []event.Record
	evErr   error
	status  client.CleanupStatus
	stErr   error
}

// apply publishes a fetch result unless a newer one was already applied.
// Ingestion and aggregation run before the lock is taken.
func (m *Monitor) apply(res fetchResult) bool {
	var (
		ingested []event.Record
		stats    pipeline.Stats
	)
	if res.evErr == nil {
		ingested = pipeline.Ingest(res.records)
		stats = pipeline.Aggregate(ingested)
	}
	now := m.clk.Now()

	m.mu.Lock()
	if res.seq <= m.snap.Seq {
		m.mu.Unlock()
		return false
	}
	next := m.snap
	next.Seq = res.seq
	if res.evErr == nil {
		next.Events = ingested
		next.Stats = stats
		next.Online = true
		next.LastUpdate = now
		next.Restored = false
	} else {
		next.Online = false
	}
	if res.stErr == nil {
		status := res.status
		next.Cleanup = &status
		next.CleanupErr = ""
	} else {
		next.CleanupErr = res.stErr.Error()
	}
	m.snap = next
	m.mu.Unlock()

	m.cfg.Metrics.SetUpstream(next.Online)
	if res.evErr == nil {
		m.cfg.Metrics.SetSnapshot(stats.Total, stats.DistinctPlayers, stats.PerType)
		m.persist(next)
	}
	if next.CleanupAvailable() {
		m.cfg.Metrics.SetCacheUsage(next.Cleanup.UsagePercent())
	}
	m.publish(next)
	return true
}

func (m *Monitor) publish(s Snapshot) {
	m.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Cleanup asks the upstream to evict old events. On success the cached
// cleanup status is replaced with the one returned and a refresh is
// scheduled after CleanupRefreshDelay. A refusal (*client.CleanupFailure)
// leaves the cached status untouched.
func (m *Monitor) Cleanup(ctx context.Context) (client.CleanupResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	res, err := m.cfg.API.TriggerCleanup(callCtx)
	if err != nil {
		var cf *client.CleanupFailure
		if errors.As(err, &cf) {
			m.cfg.Metrics.ObserveCleanup("refused")
			m.log.Warn().Str("message", cf.Result.Message).Msg("cleanup refused")
		} else {
			m.cfg.Metrics.ObserveCleanup("error")
			m.log.Warn().Err(err).Msg("cleanup request failed")
		}
		return res, err
	}

	m.cfg.Metrics.ObserveCleanup("ok")
	m.log.Info().Int("deleted", res.DeletedCount).Str("message", res.Message).Msg("cleanup complete")

	if res.Status != nil {
		m.mu.Lock()
		next := m.snap
		status := *res.Status
		next.Cleanup = &status
		next.CleanupErr = ""
		m.snap = next
		m.mu.Unlock()
		m.cfg.Metrics.SetCacheUsage(status.UsagePercent())
		m.publish(next)
	}

	timer := m.clk.AfterFunc(m.cfg.CleanupRefreshDelay, func() {
		m.refreshQuietly(m.ctx, TriggerCleanup)
	})
	m.mu.Lock()
	if m.pending != nil {
		m.pending.Stop()
	}
	m.pending = timer
	m.mu.Unlock()
	return res, nil
}

// Close stops the pending post-cleanup refresh.
func (m *Monitor) Close() {
	m.cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
}
