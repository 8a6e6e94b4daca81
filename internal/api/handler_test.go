package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rickgao/mediaroute/internal/router"
)

type fakeSender struct {
	mu    sync.Mutex
	calls []string
	data  []byte
}

func (f *fakeSender) record(s string) {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
}

func (f *fakeSender) SendText(routeID, text string) { f.record("text:" + routeID + ":" + text) }
func (f *fakeSender) SendBinary(routeID string, data []byte) {
	f.mu.Lock()
	f.data = data
	f.mu.Unlock()
	f.record("binary:" + routeID)
}
func (f *fakeSender) Listen(routeID string)         { f.record("listen:" + routeID) }
func (f *fakeSender) StopListening(routeID string)  { f.record("stop:" + routeID) }
func (f *fakeSender) OnRouteRemoved(routeID string) { f.record("removed:" + routeID) }
func (f *fakeSender) Stats() router.Stats           { return router.Stats{Routes: 3, QueuedMessages: 7} }

type fakeKeepAlive struct{ active bool }

func (f fakeKeepAlive) Active() bool { return f.active }
func (f fakeKeepAlive) Holders() []string {
	if f.active {
		return []string{router.PersistKey}
	}
	return nil
}

func TestHandler_Routes(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		wantStatus  int
		wantCall    string
	}{
		{name: "send text", method: "POST", path: "/v1/routes/r1/messages", contentType: "text/plain", body: "hi", wantStatus: 202, wantCall: "text:r1:hi"},
		{name: "send text no content type", method: "POST", path: "/v1/routes/r1/messages", body: "hi", wantStatus: 202, wantCall: "text:r1:hi"},
		{name: "send binary", method: "POST", path: "/v1/routes/r2/messages", contentType: "application/octet-stream", body: "\x00\x01", wantStatus: 202, wantCall: "binary:r2"},
		{name: "send invalid utf8", method: "POST", path: "/v1/routes/r1/messages", contentType: "text/plain", body: "\xff\xfe", wantStatus: 400},
		{name: "listen", method: "PUT", path: "/v1/routes/r1/listen", wantStatus: 204, wantCall: "listen:r1"},
		{name: "stop listening", method: "DELETE", path: "/v1/routes/r1/listen", wantStatus: 204, wantCall: "stop:r1"},
		{name: "remove route", method: "DELETE", path: "/v1/routes/r1", wantStatus: 204, wantCall: "removed:r1"},
		{name: "wrong method", method: "GET", path: "/v1/routes/r1/listen", wantStatus: 405},
		{name: "unknown path", method: "GET", path: "/v2/nothing", wantStatus: 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSender{}
			h := NewHandler(s, fakeKeepAlive{}, HandlerConfig{}, nil)

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCall == "" {
				if len(s.calls) != 0 {
					t.Errorf("calls = %v, want none", s.calls)
				}
				return
			}
			if len(s.calls) != 1 || s.calls[0] != tt.wantCall {
				t.Errorf("calls = %v, want [%s]", s.calls, tt.wantCall)
			}
		})
	}
}

func TestHandler_BinaryBody(t *testing.T) {
	s := &fakeSender{}
	h := NewHandler(s, nil, HandlerConfig{}, nil)

	req := httptest.NewRequest("POST", "/v1/routes/r1/messages", strings.NewReader("\x00\x01\x02"))
	req.Header.Set("Content-Type", "application/octet-stream; charset=binary")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if string(s.data) != "\x00\x01\x02" {
		t.Errorf("data = %v, want [0 1 2]", s.data)
	}

	var resp SendResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Kind != "binary" || resp.Bytes != 3 {
		t.Errorf("response = %+v, want binary/3", resp)
	}
}

func TestHandler_BodyTooLarge(t *testing.T) {
	s := &fakeSender{}
	h := NewHandler(s, nil, HandlerConfig{MaxBodyBytes: 4}, nil)

	req := httptest.NewRequest("POST", "/v1/routes/r1/messages", strings.NewReader("12345"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if len(s.calls) != 0 {
		t.Errorf("calls = %v, want none", s.calls)
	}
}

func TestHandler_Token(t *testing.T) {
	s := &fakeSender{}
	h := NewHandler(s, nil, HandlerConfig{Token: "secret"}, nil)

	tests := []struct {
		name   string
		auth   string
		path   string
		status int
	}{
		{name: "missing", auth: "", path: "/v1/stats", status: 401},
		{name: "wrong", auth: "Bearer nope", path: "/v1/stats", status: 401},
		{name: "valid", auth: "Bearer secret", path: "/v1/stats", status: 200},
		{name: "health is open", auth: "", path: "/health", status: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestHandler_StatsAndHealth(t *testing.T) {
	up := true
	h := NewHandler(&fakeSender{}, fakeKeepAlive{active: true}, HandlerConfig{
		InstanceID: "provider-1",
		Version:    "v1.2.3",
		LinkUp:     func() bool { return up },
	}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/stats", nil))
	var stats router.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.Routes != 3 || stats.QueuedMessages != 7 {
		t.Errorf("stats = %+v, want routes 3, queued 7", stats)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if health.Status != "ok" || health.Instance != "provider-1" || health.Version != "v1.2.3" {
		t.Errorf("health = %+v", health)
	}
	if !health.KeepAlive || len(health.Holders) != 1 {
		t.Errorf("keep-alive = %v holders %v, want true [%s]", health.KeepAlive, health.Holders, router.PersistKey)
	}
	if health.LinkConnected == nil || !*health.LinkConnected {
		t.Errorf("link_connected = %v, want true", health.LinkConnected)
	}
}
