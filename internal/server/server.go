// Package server serves the ServerEye dashboard: the HTML page, JSON and
// fragment endpoints, operator actions and a WebSocket view stream.
package server

import (
	"context"
	"embed"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/SmitUplenchwar2687/ServerEye/internal/clock"
	"github.com/SmitUplenchwar2687/ServerEye/internal/format"
	"github.com/SmitUplenchwar2687/ServerEye/internal/i18n"
	"github.com/SmitUplenchwar2687/ServerEye/internal/limiter"
	"github.com/SmitUplenchwar2687/ServerEye/internal/metrics"
	"github.com/SmitUplenchwar2687/ServerEye/internal/monitor"
	"github.com/SmitUplenchwar2687/ServerEye/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

const langCookie = "lang"

// Options configures a Server.
type Options struct {
	Addr    string
	Monitor *monitor.Monitor
	Limiter limiter.Limiter
	Clock   clock.Clock
	Metrics *metrics.Metrics

	// Language is used when a request expresses no usable preference.
	Language string
	Location *time.Location
	MaxDepth int

	// FilterDebounce is the quiet period applied to WebSocket filter
	// messages before the view is recomputed.
	FilterDebounce time.Duration

	// ExportGzip compresses downloads unless the request says otherwise.
	ExportGzip bool

	// TrustProxy makes the first X-Forwarded-For entry the client
	// identity. Otherwise only the connection address is used.
	TrustProxy bool
}

// Server is the dashboard HTTP server.
type Server struct {
	httpServer *http.Server
	opts       Options
	monitor    *monitor.Monitor
	limiter    limiter.Limiter
	clock      clock.Clock
	mux        *http.ServeMux
	hub        *Hub
	tmpl       *template.Template
	log        zerolog.Logger

	unsubscribe func()
}

// New creates a dashboard server and subscribes it to the monitor.
func New(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}
	if opts.Limiter == nil {
		opts.Limiter = limiter.Unlimited{}
	}
	if opts.Language == "" {
		opts.Language = i18n.Default
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = format.DefaultMaxDepth
	}

	s := &Server{
		opts:    opts,
		monitor: opts.Monitor,
		limiter: opts.Limiter,
		clock:   opts.Clock,
		mux:     http.NewServeMux(),
		log:     zlog.With().Str("component", "server").Logger(),
		tmpl: template.Must(template.New("dashboard.html").
			Funcs(template.FuncMap{"details": format.HTML}).
			ParseFS(templateFS, "templates/*.html")),
	}
	s.hub = newHub(s)
	s.unsubscribe = s.monitor.Subscribe(s.hub.Broadcast)
	s.routes()
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.handle("GET /{$}", "index", s.handleIndex)
	s.handle("GET /api/view", "view", s.handleView)
	s.handle("GET /partials/events", "events", s.handleEvents)
	s.handle("GET /api/export", "export", s.handleExport)
	s.handle("POST /api/refresh", "refresh", s.limited("refresh", s.handleRefresh))
	s.handle("POST /api/cleanup", "cleanup", s.limited("cleanup", s.handleCleanup))
	s.handle("GET /health", "health", s.handleHealth)
	s.mux.HandleFunc("GET /ws", s.hub.HandleWebSocket)
	s.mux.Handle("GET /metrics", s.opts.Metrics.Handler())
}

// Handler returns the server's root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.StartOnListener(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("dashboard listening")
	return s.httpServer.Serve(ln)
}

// Shutdown stops accepting requests, closes WebSocket clients and
// unsubscribes from the monitor.
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// catalog picks the response language from ?lang=, the lang cookie and
// Accept-Language, in that order. An explicit ?lang= is remembered.
func (s *Server) catalog(w http.ResponseWriter, r *http.Request) *i18n.Catalog {
	q := r.URL.Query().Get("lang")
	var cookie string
	if c, err := r.Cookie(langCookie); err == nil {
		cookie = c.Value
	}
	name := i18n.Match(s.opts.Language, q, cookie, r.Header.Get("Accept-Language"))
	if q != "" && w != nil {
		http.SetCookie(w, &http.Cookie{Name: langCookie, Value: name, Path: "/", SameSite: http.SameSiteLaxMode})
	}
	tr, err := i18n.Load(name)
	if err != nil {
		return i18n.MustLoad(i18n.Default)
	}
	return tr
}

func filterFrom(r *http.Request) pipeline.Filter {
	q := r.URL.Query()
	return pipeline.Filter{EventType: q.Get("event"), Player: q.Get("player")}.Normalize()
}

// clientKey identifies the caller for rate limiting.
func (s *Server) clientKey(r *http.Request) string {
	if s.opts.TrustProxy {
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Debug().Err(err).Msg("writing response")
	}
}
