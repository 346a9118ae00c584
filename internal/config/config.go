package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete intercom configuration
type Config struct {
	Link        LinkConfig        `yaml:"link"`
	Audio       AudioConfig       `yaml:"audio"`
	Suppression SuppressionConfig `yaml:"suppression"`
	Tone        ToneConfig        `yaml:"tone"`
	Loop        LoopConfig        `yaml:"loop"`
	Switches    SwitchesConfig    `yaml:"switches"`
	HTTP        HTTPConfig        `yaml:"http"`
	Recording   RecordingConfig   `yaml:"recording"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LinkConfig contains UDP link configuration
type LinkConfig struct {
	ComPort        int    `yaml:"com_port"`
	BindAddress    string `yaml:"bind_address"`
	FrameBytes     int    `yaml:"frame_bytes"`
	PeerTimeout    int    `yaml:"peer_timeout"`    // milliseconds
	ReceiveTimeout int    `yaml:"receive_timeout"` // milliseconds
}

// AudioConfig contains audio device parameters
type AudioConfig struct {
	Backend         string `yaml:"backend"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	BitDepth        int    `yaml:"bit_depth"`
	CaptureTimeout  int    `yaml:"capture_timeout"`  // milliseconds
	PlaybackTimeout int    `yaml:"playback_timeout"` // milliseconds
	InputDevice     string `yaml:"input_device"`
	OutputDevice    string `yaml:"output_device"`
}

// SuppressionConfig contains echo suppression parameters
type SuppressionConfig struct {
	Threshold   int `yaml:"threshold"`
	QuietTime   int `yaml:"quiet_time"`   // milliseconds
	FramePeriod int `yaml:"frame_period"` // milliseconds
}

// ToneConfig contains alert tone parameters
type ToneConfig struct {
	Frequency       int     `yaml:"frequency"`
	Volume          float64 `yaml:"volume"`
	BeepDuration    int     `yaml:"beep_duration"`    // milliseconds
	SilenceDuration int     `yaml:"silence_duration"` // milliseconds
}

// LoopConfig contains polling cadence of the host driver and streams
type LoopConfig struct {
	TickInterval int `yaml:"tick_interval"` // milliseconds
	Yield        int `yaml:"yield"`         // milliseconds
	IdleSleep    int `yaml:"idle_sleep"`    // milliseconds
}

// SwitchesConfig contains initial states of the feature switches
type SwitchesConfig struct {
	Microphone bool `yaml:"microphone"`
	Speaker    bool `yaml:"speaker"`
	Alert      bool `yaml:"alert"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// RecordingConfig contains optional WAV diagnostics outputs
type RecordingConfig struct {
	RXPath string `yaml:"rx_path"`
	TXPath string `yaml:"tx_path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used for any field missing from the file
func Default() *Config {
	return &Config{
		Link: LinkConfig{
			ComPort:        8000,
			BindAddress:    "0.0.0.0",
			FrameBytes:     1024,
			PeerTimeout:    5000,
			ReceiveTimeout: 10,
		},
		Audio: AudioConfig{
			Backend:         "portaudio",
			SampleRate:      16000,
			Channels:        1,
			BitDepth:        16,
			CaptureTimeout:  10,
			PlaybackTimeout: 10,
		},
		Suppression: SuppressionConfig{
			Threshold:   12000,
			QuietTime:   250,
			FramePeriod: 10,
		},
		Tone: ToneConfig{
			Frequency:       440,
			Volume:          0.05,
			BeepDuration:    50,
			SilenceDuration: 50,
		},
		Loop: LoopConfig{
			TickInterval: 10,
			Yield:        10,
			IdleSleep:    100,
		},
		Switches: SwitchesConfig{
			Microphone: true,
			Speaker:    true,
		},
		HTTP: HTTPConfig{
			Port:    8080,
			Address: "0.0.0.0",
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Link.Validate(); err != nil {
		return fmt.Errorf("link config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Suppression.Validate(); err != nil {
		return fmt.Errorf("suppression config: %w", err)
	}

	if err := c.Tone.Validate(); err != nil {
		return fmt.Errorf("tone config: %w", err)
	}

	if err := c.Loop.Validate(); err != nil {
		return fmt.Errorf("loop config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates link configuration
func (l *LinkConfig) Validate() error {
	if l.ComPort < 1 || l.ComPort > 65535 {
		return fmt.Errorf("com_port must be between 1 and 65535, got %d", l.ComPort)
	}

	if l.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if l.FrameBytes < 2 || l.FrameBytes > 65507 || l.FrameBytes%2 != 0 {
		return fmt.Errorf("frame_bytes must be an even number between 2 and 65507, got %d", l.FrameBytes)
	}

	if l.PeerTimeout < 1 {
		return fmt.Errorf("peer_timeout must be at least 1 millisecond, got %d", l.PeerTimeout)
	}

	if l.ReceiveTimeout < 1 {
		return fmt.Errorf("receive_timeout must be at least 1 millisecond, got %d", l.ReceiveTimeout)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	validBackends := map[string]bool{"portaudio": true, "null": true}
	if !validBackends[a.Backend] {
		return fmt.Errorf("backend must be 'portaudio' or 'null', got '%s'", a.Backend)
	}

	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz for the intercom link, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono) for the intercom link, got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16 for the intercom link, got %d", a.BitDepth)
	}

	if a.CaptureTimeout < 1 {
		return fmt.Errorf("capture_timeout must be at least 1 millisecond, got %d", a.CaptureTimeout)
	}

	if a.PlaybackTimeout < 1 {
		return fmt.Errorf("playback_timeout must be at least 1 millisecond, got %d", a.PlaybackTimeout)
	}

	return nil
}

// Validate validates suppression configuration
func (s *SuppressionConfig) Validate() error {
	if s.Threshold < 2 || s.Threshold > 32768 {
		return fmt.Errorf("threshold must be between 2 and 32768, got %d", s.Threshold)
	}

	if s.QuietTime < 0 {
		return fmt.Errorf("quiet_time cannot be negative, got %d", s.QuietTime)
	}

	if s.FramePeriod < 1 {
		return fmt.Errorf("frame_period must be at least 1 millisecond, got %d", s.FramePeriod)
	}

	return nil
}

// Validate validates tone configuration
func (t *ToneConfig) Validate() error {
	if t.Frequency < 1 || t.Frequency > 8000 {
		return fmt.Errorf("frequency must be between 1 and 8000 Hz, got %d", t.Frequency)
	}

	if t.Volume < 0 || t.Volume > 1 {
		return fmt.Errorf("volume must be between 0 and 1, got %f", t.Volume)
	}

	if t.BeepDuration < 1 {
		return fmt.Errorf("beep_duration must be at least 1 millisecond, got %d", t.BeepDuration)
	}

	if t.SilenceDuration < 0 {
		return fmt.Errorf("silence_duration cannot be negative, got %d", t.SilenceDuration)
	}

	return nil
}

// Validate validates loop cadence configuration
func (l *LoopConfig) Validate() error {
	if l.TickInterval < 1 {
		return fmt.Errorf("tick_interval must be at least 1 millisecond, got %d", l.TickInterval)
	}

	if l.Yield < 0 {
		return fmt.Errorf("yield cannot be negative, got %d", l.Yield)
	}

	if l.IdleSleep < 1 {
		return fmt.Errorf("idle_sleep must be at least 1 millisecond, got %d", l.IdleSleep)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// GetPeerTimeoutDuration returns the peer liveness timeout as a time.Duration
func (l *LinkConfig) GetPeerTimeoutDuration() time.Duration {
	return millis(l.PeerTimeout)
}

// GetReceiveTimeoutDuration returns the bounded receive wait as a time.Duration
func (l *LinkConfig) GetReceiveTimeoutDuration() time.Duration {
	return millis(l.ReceiveTimeout)
}

// GetCaptureTimeoutDuration returns the capture timeout as a time.Duration
func (a *AudioConfig) GetCaptureTimeoutDuration() time.Duration {
	return millis(a.CaptureTimeout)
}

// GetPlaybackTimeoutDuration returns the playback timeout as a time.Duration
func (a *AudioConfig) GetPlaybackTimeoutDuration() time.Duration {
	return millis(a.PlaybackTimeout)
}

// GetQuietTimeDuration returns the quiet settle period as a time.Duration
func (s *SuppressionConfig) GetQuietTimeDuration() time.Duration {
	return millis(s.QuietTime)
}

// GetFramePeriodDuration returns the nominal frame period as a time.Duration
func (s *SuppressionConfig) GetFramePeriodDuration() time.Duration {
	return millis(s.FramePeriod)
}

// GetBeepDuration returns the beep length as a time.Duration
func (t *ToneConfig) GetBeepDuration() time.Duration {
	return millis(t.BeepDuration)
}

// GetSilenceDuration returns the gap between beeps as a time.Duration
func (t *ToneConfig) GetSilenceDuration() time.Duration {
	return millis(t.SilenceDuration)
}

// GetTickIntervalDuration returns the host tick interval as a time.Duration
func (l *LoopConfig) GetTickIntervalDuration() time.Duration {
	return millis(l.TickInterval)
}

// GetYieldDuration returns the per-iteration yield as a time.Duration
func (l *LoopConfig) GetYieldDuration() time.Duration {
	return millis(l.Yield)
}

// GetIdleSleepDuration returns the idle sleep as a time.Duration
func (l *LoopConfig) GetIdleSleepDuration() time.Duration {
	return millis(l.IdleSleep)
}
