// Package mockapi is a development stand-in for the ServerEye backend. It
// serves generated events and a toy cache with cleanup.
package mockapi

import (
	"context"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	zlog "github.com/rs/zerolog/log"

	"github.com/SmitUplenchwar2687/ServerEye/internal/client"
	"github.com/SmitUplenchwar2687/ServerEye/internal/clock"
	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
	"github.com/SmitUplenchwar2687/ServerEye/internal/generate"
)

// Options configures the mock upstream.
type Options struct {
	Addr  string
	Clock clock.Clock

	// Seed events served from the start.
	Events []event.Record

	// MaxCacheSize is reported as maxCacheSize. Ingesting beyond it drops
	// the oldest events.
	MaxCacheSize int

	// Retain is how old an event must be before cleanup removes it.
	Retain time.Duration

	AutoCleanup   bool
	CleanupPeriod time.Duration

	// LiveInterval, when positive, appends a generated event at that
	// period while Run is active.
	LiveInterval time.Duration
	Players      int
}

// Server is the mock upstream.
type Server struct {
	opts       Options
	clk        clock.Clock
	httpServer *http.Server

	mu      sync.Mutex
	events  []event.Record
	refuse  string
	nextGen int64
}

// New returns a mock upstream seeded with opts.Events.
func New(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}
	if opts.MaxCacheSize <= 0 {
		opts.MaxCacheSize = 1000
	}
	if opts.Retain <= 0 {
		opts.Retain = time.Hour
	}
	if opts.CleanupPeriod <= 0 {
		opts.CleanupPeriod = 6 * time.Hour
	}
	if opts.Players <= 0 {
		opts.Players = 5
	}
	s := &Server{opts: opts, clk: opts.Clock, nextGen: 1}
	s.Add(opts.Events...)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/cleanup", s.handleStatus)
	mux.HandleFunc("POST /api/cleanup", s.handleCleanup)
	s.httpServer = &http.Server{Addr: opts.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Add appends events, dropping the oldest beyond MaxCacheSize.
func (s *Server) Add(records ...event.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, records...)
	if over := len(s.events) - s.opts.MaxCacheSize; over > 0 {
		s.sortLocked()
		s.events = append([]event.Record(nil), s.events[over:]...)
	}
}

// Len returns the number of cached events.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// RefuseCleanup makes cleanup requests answer success:false with msg
// until called again with an empty msg.
func (s *Server) RefuseCleanup(msg string) {
	s.mu.Lock()
	s.refuse = msg
	s.mu.Unlock()
}

// sortLocked orders events oldest first; invalid timestamps count as oldest.
func (s *Server) sortLocked() {
	sort.SliceStable(s.events, func(i, j int) bool {
		a, b := s.events[i], s.events[j]
		if a.TimeValid != b.TimeValid {
			return !a.TimeValid
		}
		return a.Time.Before(b.Time)
	})
}

// Status reports the cache state.
func (s *Server) Status() client.CleanupStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Server) statusLocked() client.CleanupStatus {
	st := client.CleanupStatus{
		CurrentCacheSize:     int64(len(s.events)),
		MaxCacheSize:         int64(s.opts.MaxCacheSize),
		AutoCleanupEnabled:   s.opts.AutoCleanup,
		CleanupIntervalHours: s.opts.CleanupPeriod.Hours(),
	}
	now := s.clk.Now()
	for _, r := range s.events {
		if !r.TimeValid {
			continue
		}
		if age := now.Sub(r.Time).Hours() / 24; age > st.OldestEventAgeDays {
			st.OldestEventAgeDays = float64(int(age*10)) / 10
		}
	}
	return st
}

// Cleanup removes events older than Retain, and invalid ones.
func (s *Server) Cleanup() client.CleanupResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refuse != "" {
		return client.CleanupResult{Message: s.refuse}
	}

	cutoff := s.clk.Now().Add(-s.opts.Retain)
	kept := make([]event.Record, 0, len(s.events))
	for _, r := range s.events {
		if r.TimeValid && !r.Time.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	deleted := len(s.events) - len(kept)
	s.events = kept
	st := s.statusLocked()
	return client.CleanupResult{
		Success:      true,
		Message:      "removed " + strconv.Itoa(deleted) + " events",
		DeletedCount: deleted,
		Status:       &st,
	}
}

// Run serves on the configured address and, when LiveInterval is set,
// keeps appending generated events until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	zlog.Info().Str("addr", ln.Addr().String()).Int("events", s.Len()).Msg("mock upstream listening")

	errc := make(chan error, 1)
	go func() { errc <- s.httpServer.Serve(ln) }()
	if s.opts.LiveInterval > 0 {
		go s.live(ctx)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

func (s *Server) live(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clk.After(s.opts.LiveInterval):
			s.mu.Lock()
			seed := s.nextGen
			s.nextGen++
			s.mu.Unlock()
			records, err := generate.Events(generate.Options{
				Count:          1,
				Players:        s.opts.Players,
				Duration:       time.Second,
				Start:          s.clk.Now().Truncate(time.Second),
				Seed:           seed,
				AnonymousRatio: 0.05,
			})
			if err != nil {
				zlog.Warn().Err(err).Msg("generating live event")
				continue
			}
			s.Add(records...)
		}
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snapshot := append([]event.Record(nil), s.events...)
	s.mu.Unlock()

	data, err := event.MarshalRecords(snapshot)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeBody(w, r, data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.Status())
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	res := s.Cleanup()
	zlog.Info().Bool("success", res.Success).Int("deleted", res.DeletedCount).Msg("mock cleanup")
	writeJSON(w, r, res)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeBody(w, r, data)
}

// writeBody gzips the response when the client accepts it.
func writeBody(w http.ResponseWriter, r *http.Request, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") || r.Method == http.MethodHead {
		w.Write(data)
		return
	}
	w.Header().Set("Content-Encoding", "gzip")
	zw := gzip.NewWriter(w)
	zw.Write(data)
	zw.Close()
}
