package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/skypro1111/udp-intercom/internal/config"
	"github.com/skypro1111/udp-intercom/internal/device"
	"github.com/skypro1111/udp-intercom/internal/intercom"
	"github.com/skypro1111/udp-intercom/internal/metrics"
	"github.com/skypro1111/udp-intercom/internal/protocol"
	"github.com/skypro1111/udp-intercom/internal/server"
	"github.com/skypro1111/udp-intercom/internal/session"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "udp-intercom"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.Int("com_port", cfg.Link.ComPort),
		slog.String("bind_address", cfg.Link.BindAddress),
		slog.Int("frame_bytes", cfg.Link.FrameBytes),
		slog.Duration("peer_timeout", cfg.Link.GetPeerTimeoutDuration()),
		slog.String("audio_backend", cfg.Audio.Backend),
		slog.Int("suppression_threshold", cfg.Suppression.Threshold),
		slog.Duration("suppression_quiet_time", cfg.Suppression.GetQuietTimeDuration()),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(registry)
	logger.Info("Prometheus metrics initialized")

	// Feature switches and the partner display
	microphone := session.NewSwitch("microphone", cfg.Switches.Microphone)
	speaker := session.NewSwitch("speaker", cfg.Switches.Speaker)
	alert := session.NewSwitch("alert", cfg.Switches.Alert)
	partner := session.NewTextSensor("partner")

	component, err := intercom.New(cfg, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create intercom", slog.String("error", err.Error()))
		os.Exit(1)
	}
	component.SetComPort(uint16(cfg.Link.ComPort))
	component.SetMicrophoneSwitch(microphone)
	component.SetSpeakerSwitch(speaker)
	component.SetAlertSwitch(alert)
	component.SetPartnerSensor(partner)

	// Open the audio device; nothing can run without it
	dev, err := device.Open(device.Config{
		Backend:      cfg.Audio.Backend,
		SampleRate:   cfg.Audio.SampleRate,
		FrameSamples: cfg.Link.FrameBytes / protocol.BytesPerSample,
		InputDevice:  cfg.Audio.InputDevice,
		OutputDevice: cfg.Audio.OutputDevice,
	}, logger)
	if err != nil {
		logger.Error("Failed to open audio device", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := component.Setup(dev); err != nil {
		logger.Error("Failed to set up intercom", slog.String("error", err.Error()))
		dev.Close()
		os.Exit(1)
	}

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, component,
			[]*session.Switch{microphone, speaker, alert}, appMetrics, registry)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Drive the component until shutdown
	runDone := make(chan error, 1)
	go func() {
		runDone <- component.Run(ctx, cfg.Loop.GetTickIntervalDuration())
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("udp_address", fmt.Sprintf("%s:%d", cfg.Link.BindAddress, cfg.Link.ComPort)),
	)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-runDone:
		logger.Error("Intercom stopped unexpectedly", slog.Any("error", err))
		runDone <- err
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop the streams and the tone, then release sockets
	cancel()
	if err := <-runDone; err != nil {
		logger.Error("Error stopping intercom", slog.String("error", err.Error()))
	}

	if err := dev.Close(); err != nil {
		logger.Error("Error closing audio device", slog.String("error", err.Error()))
	}

	st := component.Status()
	attrs := []any{slog.Bool("locked", st.Locked), slog.Uint64("suppression_mutes", st.Suppression.Mutes)}
	if st.Sender != nil {
		attrs = append(attrs, slog.Uint64("frames_sent", st.Sender.FramesSent))
	}
	if st.Receiver != nil {
		attrs = append(attrs, slog.Uint64("frames_received", st.Receiver.FramesReceived))
	}
	logger.Info("Final link statistics", attrs...)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
