package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/SmitUplenchwar2687/ServerEye/internal/clock"
)

var (
	epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx   = context.Background()
)

const snapshotKey = "snapshot"

func newTestStorage() (*MemoryStorage, *clock.VirtualClock) {
	vc := clock.NewVirtualClock(epoch)
	return NewMemoryStorage(vc), vc
}

// cachedSnapshot renders a cache entry the way the monitor writes it.
func cachedSnapshot(savedAt time.Time, players ...string) []byte {
	events := make([]string, len(players))
	for i, p := range players {
		events[i] = fmt.Sprintf(`{"event":"player_join","player":%q,"timestamp":%q}`, p, savedAt.Add(-time.Duration(i)*time.Minute).Format(time.RFC3339))
	}
	return []byte(fmt.Sprintf(`{"savedAt":%q,"events":[%s],"cleanup":{"current_cache_size":%d,"max_cache_size":100}}`,
		savedAt.Format(time.RFC3339), strings.Join(events, ","), len(players)))
}

func TestMemoryStorage_SnapshotRoundTrip(t *testing.T) {
	s, _ := newTestStorage()

	if err := s.Set(ctx, snapshotKey, cachedSnapshot(epoch, "alice", "bob"), 0); err != nil {
		t.Fatal(err)
	}
	data, err := s.Get(ctx, snapshotKey)
	if err != nil {
		t.Fatal(err)
	}
	r := gjson.ParseBytes(data)
	if got := r.Get("events.#").Int(); got != 2 {
		t.Errorf("cached events = %d, want 2", got)
	}
	if got := r.Get("events.1.player").String(); got != "bob" {
		t.Errorf("second player = %q, want bob", got)
	}
	if got := r.Get("savedAt").Time(); !got.Equal(epoch) {
		t.Errorf("savedAt = %s, want %s", got, epoch)
	}
}

func TestMemoryStorage_NoSnapshotYet(t *testing.T) {
	s, _ := newTestStorage()

	data, err := s.Get(ctx, snapshotKey)
	if err != nil || data != nil {
		t.Errorf("Get() on empty cache = %q, %v; want nil, nil", data, err)
	}
}

func TestMemoryStorage_SnapshotTTL(t *testing.T) {
	const ttl = 24 * time.Hour
	tests := []struct {
		name    string
		ttl     time.Duration
		elapsed time.Duration
		want    bool
	}{
		{"fresh", ttl, time.Hour, true},
		{"just before expiry", ttl, ttl - time.Second, true},
		{"at expiry", ttl, ttl, false},
		{"long gone", ttl, 3 * ttl, false},
		{"no ttl", 0, 365 * ttl, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, vc := newTestStorage()
			if err := s.Set(ctx, snapshotKey, cachedSnapshot(epoch, "alice"), tt.ttl); err != nil {
				t.Fatal(err)
			}
			vc.Advance(tt.elapsed)
			data, _ := s.Get(ctx, snapshotKey)
			if got := data != nil; got != tt.want {
				t.Errorf("snapshot readable after %s = %v, want %v", tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestMemoryStorage_NewerSnapshotReplaces(t *testing.T) {
	s, vc := newTestStorage()

	s.Set(ctx, snapshotKey, cachedSnapshot(epoch, "alice"), time.Hour)
	vc.Advance(50 * time.Minute)
	later := vc.Now()
	s.Set(ctx, snapshotKey, cachedSnapshot(later, "alice", "bob", "carol"), time.Hour)

	// The replacement carries its own TTL.
	vc.Advance(30 * time.Minute)
	data, _ := s.Get(ctx, snapshotKey)
	if data == nil {
		t.Fatal("replacement snapshot expired with the old TTL")
	}
	r := gjson.ParseBytes(data)
	if got := r.Get("events.#").Int(); got != 3 {
		t.Errorf("cached events = %d, want 3", got)
	}
	if got := r.Get("savedAt").Time(); !got.Equal(later) {
		t.Errorf("savedAt = %s, want %s", got, later)
	}
}

func TestMemoryStorage_DropSnapshot(t *testing.T) {
	s, _ := newTestStorage()

	s.Set(ctx, snapshotKey, cachedSnapshot(epoch, "alice"), 0)
	if err := s.Delete(ctx, snapshotKey); err != nil {
		t.Fatal(err)
	}
	if data, _ := s.Get(ctx, snapshotKey); data != nil {
		t.Errorf("snapshot still cached after Delete: %s", data)
	}
	if err := s.Delete(ctx, snapshotKey); err != nil {
		t.Errorf("deleting an absent snapshot = %v, want nil", err)
	}
}

func TestMemoryStorage_SetPrunesExpiredSnapshots(t *testing.T) {
	s, vc := newTestStorage()

	// Entries left behind by dashboards that shared the store.
	s.Set(ctx, "east:"+snapshotKey, cachedSnapshot(epoch, "alice"), 5*time.Minute)
	s.Set(ctx, "west:"+snapshotKey, cachedSnapshot(epoch, "bob"), 10*time.Minute)
	s.Set(ctx, snapshotKey, cachedSnapshot(epoch), 0)

	vc.Advance(7 * time.Minute)
	s.Set(ctx, snapshotKey, cachedSnapshot(vc.Now(), "carol"), 0)
	if s.Len() != 2 {
		t.Errorf("Len() after first prune = %d, want 2", s.Len())
	}

	vc.Advance(5 * time.Minute)
	s.Set(ctx, snapshotKey, cachedSnapshot(vc.Now(), "carol", "dave"), 0)
	if s.Len() != 1 {
		t.Errorf("Len() after second prune = %d, want 1", s.Len())
	}
}

func TestMemoryStorage_ReturnedSnapshotIsPrivate(t *testing.T) {
	s, _ := newTestStorage()

	in := cachedSnapshot(epoch, "alice")
	s.Set(ctx, snapshotKey, in, 0)
	in[0] = 'X'

	out, _ := s.Get(ctx, snapshotKey)
	out[1] = 'X'

	again, _ := s.Get(ctx, snapshotKey)
	if !gjson.ValidBytes(again) || gjson.GetBytes(again, "events.0.player").String() != "alice" {
		t.Errorf("cached snapshot was mutated through a caller's slice: %s", again)
	}
}

func TestMemoryStorage_ConcurrentRefreshes(t *testing.T) {
	s, _ := newTestStorage()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			players := make([]string, i%5+1)
			for j := range players {
				players[j] = fmt.Sprintf("p%d", j)
			}
			s.Set(ctx, snapshotKey, cachedSnapshot(epoch.Add(time.Duration(i)*time.Second), players...), time.Hour)
		}(i)
		go func() {
			defer wg.Done()
			if data, _ := s.Get(ctx, snapshotKey); data != nil && !gjson.ValidBytes(data) {
				t.Errorf("torn snapshot read: %s", data)
			}
		}()
	}
	wg.Wait()

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestNew_Backends(t *testing.T) {
	s, err := New(Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MemoryStorage); !ok {
		t.Errorf("default backend = %T, want *MemoryStorage", s)
	}
	if _, err := New(Config{Backend: "etcd"}, nil); err == nil {
		t.Error("unknown backend should fail")
	}
	if _, err := New(Config{Backend: BackendRedis}, nil); err == nil {
		t.Error("redis without host should fail")
	}
}

func TestMemoryStorage_ImplementsStorage(t *testing.T) {
	var _ Storage = NewMemoryStorage(clock.NewRealClock())
}
