package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/SmitUplenchwar2687/ServerEye/internal/client"
	"github.com/SmitUplenchwar2687/ServerEye/internal/export"
	"github.com/SmitUplenchwar2687/ServerEye/internal/i18n"
	"github.com/SmitUplenchwar2687/ServerEye/internal/monitor"
)

type page struct {
	Tr     *i18n.Catalog
	View   View
	Types  []typeOption
	Depths []int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	tr := s.catalog(w, r)
	f := filterFrom(r)
	snap := s.monitor.Snapshot()
	p := page{
		Tr:     tr,
		View:   s.buildView(snap, f, tr),
		Types:  typeOptions(snap.Stats, f.EventType, tr),
		Depths: depths(s.opts.MaxDepth),
	}
	s.render(w, "dashboard.html", p)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	tr := s.catalog(w, r)
	writeJSON(w, http.StatusOK, s.buildView(s.monitor.Snapshot(), filterFrom(r), tr))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	tr := s.catalog(w, r)
	s.render(w, "events", page{Tr: tr, View: s.buildView(s.monitor.Snapshot(), filterFrom(r), tr)})
}

func (s *Server) render(w http.ResponseWriter, name string, p page) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, p); err != nil {
		s.log.Error().Err(err).Str("template", name).Msg("render failed")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// fragment renders the event list for a view, for WebSocket pushes.
func (s *Server) fragment(v View, tr *i18n.Catalog) (string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, "events", page{Tr: tr, View: v}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f := filterFrom(r)
	snap := s.monitor.Snapshot()
	now := s.clock.Now()

	compress := s.opts.ExportGzip
	if g := r.URL.Query().Get("gzip"); g != "" {
		compress, _ = strconv.ParseBool(g)
	}
	data, contentType, err := export.Bytes(export.New(snap.View(f), f, now), compress)
	if err != nil {
		s.log.Error().Err(err).Msg("export failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	name := export.FileName(now.In(s.opts.Location), compress)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	tr := s.catalog(w, r)
	trigger := monitor.ParseTrigger(r.FormValue("reason"))

	err := s.monitor.Refresh(r.Context(), trigger)
	switch {
	case errors.Is(err, monitor.ErrRefreshInFlight):
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "skipped": true})
	case err != nil:
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"ok":    false,
			"error": tr.T("network_error", err.Error()),
			"view":  s.buildView(s.monitor.Snapshot(), filterFrom(r), tr),
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":   true,
			"view": s.buildView(s.monitor.Snapshot(), filterFrom(r), tr),
		})
	}
}

type cleanupResponse struct {
	Success      bool   `json:"success"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	DeletedCount int    `json:"deletedCount"`
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	tr := s.catalog(w, r)
	// Finish the cleanup even if the page goes away.
	res, err := s.monitor.Cleanup(context.WithoutCancel(r.Context()))

	var cf *client.CleanupFailure
	switch {
	case errors.As(err, &cf):
		writeJSON(w, http.StatusOK, cleanupResponse{Title: tr.T("cleanup_failed"), Message: cf.Result.Message})
	case err != nil:
		writeJSON(w, http.StatusBadGateway, cleanupResponse{Title: tr.T("cleanup_failed"), Message: tr.T("network_error", err.Error())})
	default:
		writeJSON(w, http.StatusOK, cleanupResponse{
			Success:      true,
			Title:        tr.T("cleanup_success"),
			Message:      res.Message,
			DeletedCount: res.DeletedCount,
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.monitor.Snapshot()
	upstream := "offline"
	if snap.Online {
		upstream = "online"
	}
	body := map[string]any{
		"status":     "ok",
		"upstream":   upstream,
		"events":     len(snap.Events),
		"ws_clients": s.hub.ClientCount(),
	}
	if !snap.LastUpdate.IsZero() {
		body["last_update"] = snap.LastUpdate.UTC()
	}
	writeJSON(w, http.StatusOK, body)
}
