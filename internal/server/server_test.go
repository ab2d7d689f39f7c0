package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/SmitUplenchwar2687/ServerEye/internal/client"
	"github.com/SmitUplenchwar2687/ServerEye/internal/clock"
	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
	"github.com/SmitUplenchwar2687/ServerEye/internal/export"
	"github.com/SmitUplenchwar2687/ServerEye/internal/limiter"
	"github.com/SmitUplenchwar2687/ServerEye/internal/metrics"
	"github.com/SmitUplenchwar2687/ServerEye/internal/monitor"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const upstreamEvents = `[
  {"event":"player_join","player":"alice","timestamp":"2024-05-01T11:00:00Z","details":{"ip":"10.0.0.1"}},
  {"event":"chat_message","player":"Bob","timestamp":"2024-05-01T11:30:00Z","details":{"message":"<script>alert(1)</script>"}},
  {"event":"block_break","player":"alice","timestamp":"2024-05-01T11:59:30Z","details":{"block":"stone"}},
  {"event":"block_break","timestamp":"2024-05-01T10:00:00Z"}
]`

type stubAPI struct {
	mu         sync.Mutex
	eventsErr  error
	cleanup    client.CleanupResult
	cleanupErr error
	calls      int
}

func (a *stubAPI) Events(context.Context) ([]event.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.eventsErr != nil {
		return nil, a.eventsErr
	}
	return event.DecodeRecords([]byte(upstreamEvents), event.DecodeOptions{})
}

func (a *stubAPI) CleanupStatus(context.Context) (client.CleanupStatus, error) {
	return client.CleanupStatus{CurrentCacheSize: 95, MaxCacheSize: 100, OldestEventAgeDays: 2.5, AutoCleanupEnabled: true, CleanupIntervalHours: 6}, nil
}

func (a *stubAPI) TriggerCleanup(context.Context) (client.CleanupResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cleanup, a.cleanupErr
}

type fixture struct {
	api     *stubAPI
	mon     *monitor.Monitor
	srv     *Server
	ts      *httptest.Server
	metrics *metrics.Metrics
	clock   *clock.VirtualClock
}

func newFixture(t *testing.T, lim limiter.Limiter) *fixture {
	t.Helper()
	vc := clock.NewVirtualClock(epoch)
	api := &stubAPI{cleanup: client.CleanupResult{Success: true, Message: "removed 3 events", DeletedCount: 3}}
	m := metrics.New()
	mon := monitor.New(monitor.Config{API: api, Clock: vc, CleanupRefreshDelay: 2 * time.Second, Metrics: m})
	if err := mon.Refresh(context.Background(), monitor.TriggerInitial); err != nil {
		t.Fatal(err)
	}
	srv := New(Options{Monitor: mon, Limiter: lim, Clock: vc, Metrics: m})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Shutdown(context.Background())
		mon.Close()
	})
	return &fixture{api: api, mon: mon, srv: srv, ts: ts, metrics: m, clock: vc}
}

func get(t *testing.T, u string, header ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func post(t *testing.T, u string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.PostForm(u, url.Values{"reason": {"manual"}})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func TestServer_Index(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := get(t, f.ts.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, want := range []string{"ServerEye Monitor", "#4", "Block broken", "unknown player", "95/100 (95%)", "status-critical", "oldest event: 2.5 days ago"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Error("details not escaped")
	}
	// Only a successful cleanup notice closes on its own.
	for _, want := range []string{`id="modal-close" hidden>Close</button>`, "if (r.success) {\n      modal(r.title, r.message, 2000);", "modal(r.title, r.message || r.error, 0, true);"} {
		if !strings.Contains(body, want) {
			t.Errorf("cleanup notice script missing %q", want)
		}
	}
}

func TestServer_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	if resp, _ := get(t, f.ts.URL+"/nonexistent"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_Language(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := get(t, f.ts.URL+"/?lang=zh")
	if !strings.Contains(body, `lang="zh-Hans"`) {
		t.Error("?lang=zh not honoured")
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == langCookie {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != "zh" {
		t.Fatalf("lang cookie = %v", cookie)
	}

	_, body = get(t, f.ts.URL+"/", "Accept-Language", "zh-CN,zh;q=0.9")
	if !strings.Contains(body, `lang="zh-Hans"`) {
		t.Error("Accept-Language not honoured")
	}
	_, body = get(t, f.ts.URL+"/", "Cookie", "lang=zh", "Accept-Language", "en")
	if !strings.Contains(body, `lang="zh-Hans"`) {
		t.Error("cookie should win over Accept-Language")
	}
}

func TestServer_View(t *testing.T) {
	f := newFixture(t, nil)

	_, body := get(t, f.ts.URL+"/api/view?event=block_break&player=ALI")
	var v View
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		t.Fatal(err)
	}
	if v.Stats.Total != 4 || v.Stats.DistinctPlayers != 2 || v.BlocksBroken != 2 || v.ChatMessages != 1 {
		t.Errorf("stats = %+v", v.Stats)
	}
	if v.Shown != 1 || len(v.Cards) != 1 {
		t.Fatalf("shown = %d", v.Shown)
	}
	if c := v.Cards[0]; c.Index != 4 || c.Player != "alice" || c.Relative != "just now" {
		t.Errorf("card = %+v", c)
	}
	if !v.Online || !v.Cleanup.Available || v.Cleanup.Level != client.LevelCritical {
		t.Errorf("status = online %v, cleanup %+v", v.Online, v.Cleanup)
	}
}

func TestServer_EventsPartial(t *testing.T) {
	f := newFixture(t, nil)

	_, body := get(t, f.ts.URL+"/partials/events?event=chat_message")
	if !strings.Contains(body, "&lt;script&gt;") || strings.Contains(body, "<script>") {
		t.Errorf("fragment not escaped:\n%s", body)
	}
	if strings.Contains(body, "<html") {
		t.Error("partial should not include the page")
	}

	_, body = get(t, f.ts.URL+"/partials/events?player=nobody")
	if !strings.Contains(body, "No matching events") {
		t.Error("empty state missing")
	}
}

func TestServer_Export(t *testing.T) {
	f := newFixture(t, nil)

	for _, gz := range []string{"0", "1"} {
		resp, body := get(t, f.ts.URL+"/api/export?player=alice&gzip="+gz)
		want := "servereye-events-2024-05-01.json"
		if gz == "1" {
			want += ".gz"
		}
		if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, want) {
			t.Errorf("Content-Disposition = %q, want %s", cd, want)
		}
		doc, err := export.Decode(strings.NewReader(body), time.UTC)
		if err != nil {
			t.Fatalf("gzip=%s: %v", gz, err)
		}
		if len(doc.Events) != 2 || doc.Filter.Player != "alice" {
			t.Errorf("gzip=%s: %d events, filter %+v", gz, len(doc.Events), doc.Filter)
		}
	}
}

func TestServer_RefreshAndRateLimit(t *testing.T) {
	f := newFixture(t, limiter.NewTokenBucket(2, time.Minute, 2, clock.NewVirtualClock(epoch)))

	for i := 0; i < 2; i++ {
		resp, body := post(t, f.ts.URL+"/api/refresh")
		if resp.StatusCode != http.StatusOK || body["ok"] != true {
			t.Fatalf("refresh %d: %d %v", i, resp.StatusCode, body)
		}
	}
	f.api.mu.Lock()
	calls := f.api.calls
	f.api.mu.Unlock()
	if calls != 3 {
		t.Errorf("upstream calls = %d, want 3", calls)
	}

	resp, body := post(t, f.ts.URL+"/api/refresh")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" || !strings.Contains(body["error"].(string), "retry in") {
		t.Errorf("rate limit response = %v", body)
	}

	if resp, _ := post(t, f.ts.URL+"/api/cleanup"); resp.StatusCode != http.StatusOK {
		t.Errorf("cleanup has its own budget, got %d", resp.StatusCode)
	}
}

func TestServer_RateLimitIgnoresForwardedFor(t *testing.T) {
	f := newFixture(t, limiter.NewTokenBucket(1, time.Minute, 1, clock.NewVirtualClock(epoch)))

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
		req.RemoteAddr = "192.0.2.7:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		rec := httptest.NewRecorder()
		f.srv.Handler().ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes with rotating X-Forwarded-For = %v, want [200 429 429]", codes)
	}
}

func TestServer_ClientKey(t *testing.T) {
	tests := []struct {
		name      string
		trust     bool
		remote    string
		forwarded string
		want      string
	}{
		{"remote addr", false, "192.0.2.7:4000", "", "192.0.2.7"},
		{"forwarded ignored", false, "192.0.2.7:4000", "203.0.113.1", "192.0.2.7"},
		{"trusted proxy", true, "192.0.2.7:4000", "203.0.113.1, 10.0.0.1", "203.0.113.1"},
		{"trusted proxy without header", true, "192.0.2.7:4000", "", "192.0.2.7"},
		{"trusted proxy blank entry", true, "192.0.2.7:4000", " ,10.0.0.1", "192.0.2.7"},
		{"unparsable remote", false, "pipe", "", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{opts: Options{TrustProxy: tt.trust}}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := s.clientKey(req); got != tt.want {
				t.Errorf("clientKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServer_RefreshFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.api.mu.Lock()
	f.api.eventsErr = &client.TransportError{Op: "fetch events", URL: "http://up", Err: errors.New("refused")}
	f.api.mu.Unlock()

	resp, body := post(t, f.ts.URL+"/api/refresh")
	if resp.StatusCode != http.StatusBadGateway || body["ok"] != false {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	view := body["view"].(map[string]any)
	if view["online"] != false || view["shown"].(float64) != 4 {
		t.Errorf("view after failure = %v", view)
	}
}

func TestServer_RefreshMethod(t *testing.T) {
	f := newFixture(t, nil)
	if resp, _ := get(t, f.ts.URL+"/api/refresh"); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/refresh = %d, want 405", resp.StatusCode)
	}
}

func TestServer_Cleanup(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := post(t, f.ts.URL+"/api/cleanup")
	if resp.StatusCode != http.StatusOK || body["success"] != true || body["message"] != "removed 3 events" {
		t.Errorf("cleanup = %d %v", resp.StatusCode, body)
	}
	if body["title"] != "Cleanup complete" {
		t.Errorf("title = %v", body["title"])
	}

	f.api.mu.Lock()
	f.api.cleanupErr = &client.CleanupFailure{Result: client.CleanupResult{Message: "cache locked"}}
	f.api.mu.Unlock()
	resp, body = post(t, f.ts.URL+"/api/cleanup")
	if resp.StatusCode != http.StatusOK || body["success"] != false || body["message"] != "cache locked" {
		t.Errorf("refused cleanup = %d %v", resp.StatusCode, body)
	}

	f.api.mu.Lock()
	f.api.cleanupErr = &client.TransportError{Op: "cleanup", URL: "http://up", Err: errors.New("timeout")}
	f.api.mu.Unlock()
	resp, body = post(t, f.ts.URL+"/api/cleanup")
	if resp.StatusCode != http.StatusBadGateway || !strings.HasPrefix(body["message"].(string), "Network error") {
		t.Errorf("network failure = %d %v", resp.StatusCode, body)
	}
}

func TestServer_CleanupRefusedWithErrorStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(upstreamEvents))
	})
	mux.HandleFunc("GET /api/cleanup", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"currentCacheSize":95,"maxCacheSize":100}`))
	})
	mux.HandleFunc("POST /api/cleanup", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"message":"cleanup locked by another job"}`))
	})
	upstream := httptest.NewServer(mux)
	defer upstream.Close()

	api, err := client.New(client.Config{Address: upstream.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	vc := clock.NewVirtualClock(epoch)
	mon := monitor.New(monitor.Config{API: api, Clock: vc, CleanupRefreshDelay: 2 * time.Second})
	defer mon.Close()
	if err := mon.Refresh(context.Background(), monitor.TriggerInitial); err != nil {
		t.Fatal(err)
	}
	srv := New(Options{Monitor: mon, Clock: vc})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, body := post(t, ts.URL+"/api/cleanup")
	if resp.StatusCode != http.StatusOK || body["success"] != false {
		t.Fatalf("cleanup = %d %v", resp.StatusCode, body)
	}
	if body["message"] != "cleanup locked by another job" {
		t.Errorf("message = %v, want the backend's refusal", body["message"])
	}
	if got := mon.Snapshot().Cleanup; got == nil || got.CurrentCacheSize != 95 {
		t.Errorf("cached status changed after refusal: %+v", got)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)

	_, body := get(t, f.ts.URL+"/health")
	if !strings.Contains(body, `"upstream":"online"`) || !strings.Contains(body, `"events":4`) {
		t.Errorf("health = %s", body)
	}

	_, body = get(t, f.ts.URL+"/metrics")
	for _, want := range []string{"servereye_events 4", `servereye_http_requests_total{code="2xx",route="health"} 1`} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestServer_WebSocketFilter(t *testing.T) {
	f := newFixture(t, nil)

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	read := func() viewMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		var msg viewMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		return msg
	}

	first := read()
	if first.Type != msgTypeView || first.Shown != 4 {
		t.Fatalf("initial view = %+v", first)
	}

	if err := conn.WriteJSON(map[string]string{"type": "filter", "event": "all", "player": "bob"}); err != nil {
		t.Fatal(err)
	}
	filtered := read()
	if filtered.Shown != 1 || filtered.Stats.Total != 4 || !strings.Contains(filtered.HTML, "Bob") {
		t.Errorf("filtered view = shown %d, total %d", filtered.Shown, filtered.Stats.Total)
	}

	if f.srv.Hub().ClientCount() != 1 {
		t.Errorf("ClientCount() = %d", f.srv.Hub().ClientCount())
	}

	// A new snapshot is pushed with the client's filter applied.
	if err := f.mon.Refresh(context.Background(), monitor.TriggerManual); err != nil {
		t.Fatal(err)
	}
	if pushed := read(); pushed.Shown != 1 {
		t.Errorf("pushed view shown = %d, want 1", pushed.Shown)
	}
}
