package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/skypro1111/udp-intercom/internal/config"
	"github.com/skypro1111/udp-intercom/internal/intercom"
	"github.com/skypro1111/udp-intercom/internal/metrics"
	"github.com/skypro1111/udp-intercom/internal/session"
)

type fakeStatus struct {
	status intercom.Status
}

func (f *fakeStatus) Status() intercom.Status {
	return f.status
}

type fixture struct {
	server     *HTTPServer
	metrics    *metrics.Metrics
	microphone *session.Switch
	speaker    *session.Switch
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	cfg := config.Default()

	mic := session.NewSwitch("microphone", true)
	spk := session.NewSwitch("speaker", false)

	status := &fakeStatus{status: intercom.Status{
		Started:    true,
		ComPort:    8000,
		Locked:     true,
		Partner:    "10.0.0.7",
		Microphone: true,
	}}

	return &fixture{
		server:     NewHTTPServer(cfg.HTTP, logger, cfg, status, []*session.Switch{mic, spk}, m, reg),
		metrics:    m,
		microphone: mic,
		speaker:    spk,
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %v", body["status"])
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var st intercom.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if !st.Locked || st.Partner != "10.0.0.7" || st.ComPort != 8000 {
		t.Errorf("Expected locked to 10.0.0.7 on 8000, got %+v", st)
	}
}

func TestConfig(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode config: %v", err)
	}
	if body["link"]["com_port"] != float64(8000) {
		t.Errorf("Expected com_port 8000, got %v", body["link"]["com_port"])
	}
	if body["suppression"]["threshold"] != float64(12000) {
		t.Errorf("Expected threshold 12000, got %v", body["suppression"]["threshold"])
	}
}

func TestSwitches(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		expected int
	}{
		{"get known", http.MethodGet, "/switches/microphone", "", http.StatusOK},
		{"get unknown", http.MethodGet, "/switches/volume", "", http.StatusNotFound},
		{"missing name", http.MethodGet, "/switches/", "", http.StatusBadRequest},
		{"bad body", http.MethodPut, "/switches/speaker", `{"on":true}`, http.StatusBadRequest},
		{"not json", http.MethodPut, "/switches/speaker", `yes`, http.StatusBadRequest},
		{"bad method", http.MethodPost, "/switches/speaker", `{"state":true}`, http.StatusMethodNotAllowed},
		{"list", http.MethodGet, "/switches", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(tt.method, tt.path, tt.body)
			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestPutSwitch(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/switches/speaker", `{"state":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !f.speaker.State() {
		t.Error("Expected speaker switch to be on")
	}

	var got switchState
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode switch: %v", err)
	}
	if got.Name != "speaker" || !got.State {
		t.Errorf("Expected speaker=true, got %+v", got)
	}

	f.do(http.MethodPut, "/switches/microphone", `{"state":false}`)
	if f.microphone.State() {
		t.Error("Expected microphone switch to be off")
	}
}

func TestRootAndNotFound(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(http.MethodGet, "/", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for /, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for /nope, got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/health", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for POST /health, got %d", rec.Code)
	}
}

func TestRequestMetrics(t *testing.T) {
	f := newFixture(t)

	f.do(http.MethodGet, "/status", "")
	f.do(http.MethodGet, "/switches/volume", "")

	if got := testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("GET", "/status", "200")); got != 1 {
		t.Errorf("Expected 1 status request, got %v", got)
	}
	if got := testutil.ToFloat64(f.metrics.HTTPErrors.WithLabelValues("GET", "/switches/{name}", "client_error")); got != 1 {
		t.Errorf("Expected 1 client error, got %v", got)
	}

	rec := f.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "intercom_http_requests_total") {
		t.Error("Expected HTTP request counter in /metrics output")
	}
}
