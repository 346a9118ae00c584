package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/udp-intercom/internal/config"
	"github.com/skypro1111/udp-intercom/internal/intercom"
	"github.com/skypro1111/udp-intercom/internal/metrics"
	"github.com/skypro1111/udp-intercom/internal/session"
)

const (
	serviceName    = "udp-intercom"
	serviceVersion = "1.0.0"
)

// StatusProvider reports the intercom status
type StatusProvider interface {
	Status() intercom.Status
}

// HTTPServer provides HTTP API endpoints for monitoring and switch control
type HTTPServer struct {
	server   *http.Server
	logger   *slog.Logger
	config   *config.Config
	status   StatusProvider
	switches map[string]*session.Switch
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server. Switches are addressed by
// their names under /switches/.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, appConfig *config.Config,
	status StatusProvider, switches []*session.Switch, m *metrics.Metrics, gatherer prometheus.Gatherer) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		status:    status,
		switches:  make(map[string]*session.Switch, len(switches)),
		metrics:   m,
		gatherer:  gatherer,
		startTime: time.Now(),
	}
	for _, sw := range switches {
		h.switches[sw.Name()] = sw
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Handler returns the route multiplexer
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/status", h.withMetrics("/status", h.handleStatus))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/switches", h.withMetrics("/switches", h.handleSwitches))
	mux.HandleFunc("/switches/", h.withMetrics("/switches/{name}", h.handleSwitch))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("Failed to encode response", slog.String("error", err.Error()))
	}
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := h.status.Status()

	streams := "waiting"
	if st.Started {
		streams = "running"
	}

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]any{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"components": map[string]any{
			"streams": map[string]any{
				"status":   streams,
				"transmit": st.Sender != nil,
				"receive":  st.Receiver != nil,
			},
			"link": map[string]any{
				"locked":  st.Locked,
				"partner": st.Partner,
			},
		},
	}

	h.writeJSON(w, http.StatusOK, health)
}

// handleStatus implements the /status endpoint
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, h.status.Status())
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := map[string]any{
		"link": map[string]any{
			"com_port":        h.config.Link.ComPort,
			"bind_address":    h.config.Link.BindAddress,
			"frame_bytes":     h.config.Link.FrameBytes,
			"peer_timeout":    h.config.Link.PeerTimeout,
			"receive_timeout": h.config.Link.ReceiveTimeout,
		},
		"audio": map[string]any{
			"backend":          h.config.Audio.Backend,
			"sample_rate":      h.config.Audio.SampleRate,
			"channels":         h.config.Audio.Channels,
			"bit_depth":        h.config.Audio.BitDepth,
			"capture_timeout":  h.config.Audio.CaptureTimeout,
			"playback_timeout": h.config.Audio.PlaybackTimeout,
		},
		"suppression": map[string]any{
			"threshold":    h.config.Suppression.Threshold,
			"quiet_time":   h.config.Suppression.QuietTime,
			"frame_period": h.config.Suppression.FramePeriod,
		},
		"tone": map[string]any{
			"frequency":        h.config.Tone.Frequency,
			"volume":           h.config.Tone.Volume,
			"beep_duration":    h.config.Tone.BeepDuration,
			"silence_duration": h.config.Tone.SilenceDuration,
		},
		"logging": map[string]any{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	h.writeJSON(w, http.StatusOK, cfg)
}

type switchState struct {
	Name  string `json:"name,omitempty"`
	State bool   `json:"state"`
}

// handleSwitches implements the /switches endpoint
func (h *HTTPServer) handleSwitches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names := make([]string, 0, len(h.switches))
	for name := range h.switches {
		names = append(names, name)
	}
	sort.Strings(names)

	states := make([]switchState, 0, len(names))
	for _, name := range names {
		states = append(states, switchState{Name: name, State: h.switches[name].State()})
	}

	h.writeJSON(w, http.StatusOK, states)
}

// handleSwitch implements the /switches/{name} endpoint
func (h *HTTPServer) handleSwitch(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/switches/")
	if name == "" {
		http.Error(w, "Switch name required", http.StatusBadRequest)
		return
	}

	sw, exists := h.switches[name]
	if !exists {
		http.Error(w, "Switch not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, http.StatusOK, switchState{Name: name, State: sw.State()})

	case http.MethodPut:
		var body struct {
			State *bool `json:"state"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.State == nil {
			http.Error(w, `Body must be {"state": true|false}`, http.StatusBadRequest)
			return
		}

		sw.PublishState(*body.State)
		h.logger.Info("Switch set over HTTP",
			slog.String("switch", name),
			slog.Bool("state", *body.State),
		)
		h.writeJSON(w, http.StatusOK, switchState{Name: name, State: sw.State()})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]any{
		"service": "UDP Intercom",
		"version": serviceVersion,
		"endpoints": map[string]any{
			"GET /":                "API documentation",
			"GET /health":          "Service health check",
			"GET /status":          "Link, suppression and tone status",
			"GET /config":          "Get service configuration",
			"GET /switches":        "List feature switches",
			"GET /switches/{name}": "Get a feature switch",
			"PUT /switches/{name}": `Set a feature switch with {"state": bool}`,
			"GET /metrics":         "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	h.writeJSON(w, http.StatusOK, apiDoc)
}
