package intercom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skypro1111/udp-intercom/internal/audio"
	"github.com/skypro1111/udp-intercom/internal/config"
	"github.com/skypro1111/udp-intercom/internal/device"
	"github.com/skypro1111/udp-intercom/internal/link"
	"github.com/skypro1111/udp-intercom/internal/metrics"
	"github.com/skypro1111/udp-intercom/internal/protocol"
	"github.com/skypro1111/udp-intercom/internal/session"
	"github.com/skypro1111/udp-intercom/internal/suppress"
	"github.com/skypro1111/udp-intercom/internal/tone"
	"github.com/skypro1111/udp-intercom/internal/transport"
)

var (
	// ErrNoDevice is returned by Setup when no audio device is given
	ErrNoDevice = errors.New("intercom: no audio device")
	// ErrAlreadySetup is returned by a second Setup call
	ErrAlreadySetup = errors.New("intercom: already set up")
)

// Component is the intercom as seen by its host: switches and the partner
// display are bound through setters, the audio device is attached once with
// Setup, and Tick is called periodically to bring the link up.
type Component struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	state      *session.State
	suppressor *suppress.Controller

	mu           sync.Mutex
	comPort      uint16
	alert        session.BooleanSource
	networkReady func() bool
	dev          device.Device
	tone         *tone.Generator
	rxRecorder   *audio.Recorder
	txRecorder   *audio.Recorder
	sender       *transport.Sender
	receiver     *transport.Receiver
	started      bool
	group        errgroup.Group
}

// New creates a component from configuration. m may be nil.
func New(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*Component, error) {
	suppressor, err := suppress.NewController(
		cfg.Suppression.Threshold,
		cfg.Suppression.GetQuietTimeDuration(),
		cfg.Suppression.GetFramePeriodDuration(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create suppression controller: %w", err)
	}

	return &Component{
		cfg:          cfg,
		logger:       logger,
		metrics:      m,
		state:        session.NewState(),
		suppressor:   suppressor,
		comPort:      uint16(cfg.Link.ComPort),
		networkReady: InterfaceReady,
	}, nil
}

// SetComPort sets the UDP port used for both sending and receiving. It takes
// effect when the streams start.
func (c *Component) SetComPort(port uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.comPort = port
}

// ComPort returns the configured UDP port
func (c *Component) ComPort() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.comPort
}

// SetMicrophoneSwitch binds the switch that allows local capture
func (c *Component) SetMicrophoneSwitch(src session.BooleanSource) {
	c.state.BindMicrophone(src)
}

// SetSpeakerSwitch binds the switch that allows playback of remote audio
func (c *Component) SetSpeakerSwitch(src session.BooleanSource) {
	c.state.BindSpeaker(src)
}

// SetAlertSwitch binds the switch that plays the alert tone. If src also
// accepts state it is switched off when the tone stops.
func (c *Component) SetAlertSwitch(src session.BooleanSource) {
	c.state.BindAlert(src)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.alert = src
	if c.tone != nil {
		c.tone.Bind(src)
	}
}

// SetPartnerSensor binds the display that shows the locked partner address
func (c *Component) SetPartnerSensor(sink session.TextSink) {
	c.state.BindDisplay(sink)
}

// SetNetworkReady replaces the network readiness probe
func (c *Component) SetNetworkReady(ready func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.networkReady = ready
}

// State returns the shared session state
func (c *Component) State() *session.State {
	return c.state
}

// Setup attaches the audio device. It must be called once, before the first
// Tick can start the streams.
func (c *Component) Setup(dev device.Device) error {
	if dev == nil {
		return ErrNoDevice
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev != nil {
		return ErrAlreadySetup
	}

	gen, err := tone.NewGenerator(tone.Config{
		Frequency:    c.cfg.Tone.Frequency,
		Volume:       c.cfg.Tone.Volume,
		SampleRate:   c.cfg.Audio.SampleRate,
		FrameSamples: c.cfg.Link.FrameBytes / protocol.BytesPerSample,
		Beep:         c.cfg.Tone.GetBeepDuration(),
		Silence:      c.cfg.Tone.GetSilenceDuration(),
	}, dev, c.logger)
	if err != nil {
		return fmt.Errorf("failed to create tone generator: %w", err)
	}
	gen.SetMetrics(c.metrics)
	if c.alert != nil {
		gen.Bind(c.alert)
	}

	c.dev = dev
	c.tone = gen
	c.rxRecorder = c.openRecorder(c.cfg.Recording.RXPath)
	c.txRecorder = c.openRecorder(c.cfg.Recording.TXPath)

	c.logger.Info("Intercom set up", slog.Int("com_port", int(c.comPort)))
	return nil
}

// openRecorder returns nil when path is empty or the file cannot be created
func (c *Component) openRecorder(path string) *audio.Recorder {
	if path == "" {
		return nil
	}

	rec, err := audio.NewRecorder(path, c.cfg.Audio.SampleRate, c.logger)
	if err != nil {
		c.logger.Error("Recording disabled", slog.String("error", err.Error()))
		return nil
	}
	return rec
}

// Tick starts the streams once the device is set up and the network is
// ready, then starts the alert tone if its switch is on.
func (c *Component) Tick(ctx context.Context) {
	c.mu.Lock()
	if !c.started && c.dev != nil && c.networkReady() {
		c.startStreams(ctx)
	}
	gen := c.tone
	c.mu.Unlock()

	if gen != nil && c.state.AlertEnabled() {
		gen.Start(ctx)
	}
}

// startStreams opens both sockets and runs each stream whose socket opened.
// Called with c.mu held.
func (c *Component) startStreams(ctx context.Context) {
	port := c.comPort

	sender, err := transport.NewSender(c.logger)
	if err != nil {
		c.logger.Error("Transmit stream disabled", slog.String("error", err.Error()))
	} else {
		c.sender = sender
		tx := link.NewTransmitStream(link.TransmitConfig{
			Port:           port,
			FrameBytes:     c.cfg.Link.FrameBytes,
			CaptureTimeout: c.cfg.Audio.GetCaptureTimeoutDuration(),
			Yield:          c.cfg.Loop.GetYieldDuration(),
			IdleSleep:      c.cfg.Loop.GetIdleSleepDuration(),
		}, c.state, c.dev, sender, c.logger)
		tx.SetMetrics(c.metrics)
		tx.SetRecorder(c.txRecorder)
		c.group.Go(func() error { return tx.Run(ctx) })
	}

	receiver, err := transport.NewReceiver(c.cfg.Link.BindAddress, port, c.logger)
	if err != nil {
		c.logger.Error("Receive stream disabled", slog.String("error", err.Error()))
	} else {
		c.receiver = receiver
		rx := link.NewReceiveStream(link.ReceiveConfig{
			BufferBytes:     protocol.MaxDatagram,
			ReceiveTimeout:  c.cfg.Link.GetReceiveTimeoutDuration(),
			PlaybackTimeout: c.cfg.Audio.GetPlaybackTimeoutDuration(),
			PeerTimeout:     c.cfg.Link.GetPeerTimeoutDuration(),
			Yield:           c.cfg.Loop.GetYieldDuration(),
			IdleSleep:       c.cfg.Loop.GetIdleSleepDuration(),
		}, c.state, c.suppressor, c.dev, receiver, c.logger)
		rx.SetMetrics(c.metrics)
		rx.SetRecorder(c.rxRecorder)
		c.group.Go(func() error { return rx.Run(ctx) })
	}

	c.started = true
	c.logger.Info("Intercom streams started",
		slog.Int("com_port", int(port)),
		slog.Bool("transmit", c.sender != nil),
		slog.Bool("receive", c.receiver != nil),
	)
}

// Started reports whether the streams have been started
func (c *Component) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Run calls Tick every interval until ctx is cancelled, then waits for the
// streams and the tone to stop and releases sockets and recorders.
func (c *Component) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return c.shutdown()
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

func (c *Component) shutdown() error {
	err := c.group.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tone != nil {
		c.tone.Wait()
	}

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	if c.sender != nil {
		if err := c.sender.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.receiver != nil {
		if err := c.receiver.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, rec := range []*audio.Recorder{c.rxRecorder, c.txRecorder} {
		if err := rec.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	c.logger.Info("Intercom stopped")
	return errors.Join(errs...)
}

// Status is a point-in-time view of the intercom for monitoring
type Status struct {
	Started           bool                          `json:"started"`
	ComPort           uint16                        `json:"com_port"`
	Locked            bool                          `json:"locked"`
	Partner           string                        `json:"partner,omitempty"`
	LockID            string                        `json:"lock_id,omitempty"`
	LockedAt          *time.Time                    `json:"locked_at,omitempty"`
	LastPacket        *time.Time                    `json:"last_packet,omitempty"`
	Microphone        bool                          `json:"microphone"`
	Speaker           bool                          `json:"speaker"`
	Alert             bool                          `json:"alert"`
	CaptureEnabled    bool                          `json:"capture_enabled"`
	CaptureSuppressed bool                          `json:"capture_suppressed"`
	Suppression       suppress.Snapshot             `json:"suppression"`
	ToneRunning       bool                          `json:"tone_running"`
	Sender            *transport.SenderStatistics   `json:"sender,omitempty"`
	Receiver          *transport.ReceiverStatistics `json:"receiver,omitempty"`
}

// Status returns the current status
func (c *Component) Status() Status {
	st := Status{
		Microphone:        c.state.MicrophoneEnabled(),
		Speaker:           c.state.PlaybackEnabled(),
		Alert:             c.state.AlertEnabled(),
		CaptureEnabled:    c.state.CaptureEnabled(),
		CaptureSuppressed: c.state.CaptureSuppressed(),
		Suppression:       c.suppressor.Snapshot(),
	}

	if peer, ok := c.state.Peer(); ok {
		st.Locked = true
		st.Partner = peer.Addr.String()
		st.LockID = peer.ID.String()
		lockedAt := peer.LockedAt
		st.LockedAt = &lockedAt
	}
	if last := c.state.LastPacket(); !last.IsZero() {
		st.LastPacket = &last
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st.Started = c.started
	st.ComPort = c.comPort
	st.ToneRunning = c.tone != nil && c.tone.Running()
	if c.sender != nil {
		stats := c.sender.Statistics()
		st.Sender = &stats
	}
	if c.receiver != nil {
		stats := c.receiver.Statistics()
		st.Receiver = &stats
	}
	return st
}

// Partner returns the locked partner, if any
func (c *Component) Partner() (netip.Addr, bool) {
	return c.state.Partner()
}

// LocalAddr returns the address the receive socket is bound to
func (c *Component) LocalAddr() (netip.AddrPort, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.receiver == nil {
		return netip.AddrPort{}, false
	}
	return c.receiver.LocalAddr(), true
}
