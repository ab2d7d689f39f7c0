package server

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/SmitUplenchwar2687/ServerEye/internal/limiter"
)

// handle registers h under pattern, logging and counting requests as route.
func (s *Server) handle(pattern, route string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.instrument(route, h))
}

// instrument wraps next with an access log line and the request counter.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		s.opts.Metrics.ObserveHTTP(route, sw.code)
		s.log.Debug().
			Str("route", route).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.code).
			Dur("took", s.clock.Since(start)).
			Str("remote", s.clientKey(r)).
			Msg("request")
	})
}

// limited applies the action limiter to next, keyed by client and route.
func (s *Server) limited(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision := s.limiter.Allow(r.Context(), s.clientKey(r)+"|"+route)
		setRateHeaders(w, decision)
		if decision.Allowed {
			next(w, r)
			return
		}

		secs := decision.RetryAfter(s.clock.Now())
		s.opts.Metrics.ObserveRateLimited(route)
		s.log.Warn().Str("route", route).Str("remote", s.clientKey(r)).Int("retry_after", secs).Msg("rate limited")

		tr := s.catalog(w, r)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"ok":          false,
			"success":     false,
			"title":       tr.T(route),
			"error":       tr.T("rate_limited", secs),
			"message":     tr.T("rate_limited", secs),
			"retry_after": secs,
		})
	}
}

func setRateHeaders(w http.ResponseWriter, d limiter.Decision) {
	if d.Limit < 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
