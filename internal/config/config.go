// SPDX-License-Identifier: MIT

// Package config loads the YAML configuration, applies ENV_* overrides and
// validates the result.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"nowplaying/internal/log"
	"nowplaying/internal/spectrum"
	"nowplaying/pkg/bitint"
)

// Boundaries and defaults.
const (
	DefaultDeviceID        = -1 // system default input
	DefaultSampleRate      = 48000
	DefaultFramesPerBuffer = 512
	DefaultChannels        = 2
	DefaultFFTSize         = 2048
	DefaultBars            = 32
	DefaultDebounce        = 75 * time.Millisecond
	DefaultConnectRetry    = 250 * time.Millisecond
	DefaultVisibility      = 5 * time.Second

	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192
	MinFFTSize      = 64
	MaxFFTSize      = 32768
	MinBars         = 1
	MaxBars         = 512
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the application configuration, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Force debug logging.
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error.
	Audio     AudioConfig     `yaml:"audio"`
	Spectrum  SpectrumConfig  `yaml:"spectrum"`
	Session   SessionConfig   `yaml:"session"`
	Transport TransportConfig `yaml:"transport"`
	Recording RecordingConfig `yaml:"recording"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	UI        UIConfig        `yaml:"ui"`
}

// AudioConfig selects and opens the loopback capture stream.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index, -1 for default.
	SampleRate      float64 `yaml:"sample_rate"`       // Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per capture callback.
	LowLatency      bool    `yaml:"low_latency"`
	InputChannels   int     `yaml:"input_channels"`
	Stereo          bool    `yaml:"stereo"` // Analyze left and right separately.
}

// SpectrumConfig shapes the bar output.
type SpectrumConfig struct {
	FFTSize int     `yaml:"fft_size"` // Power of two.
	Bars    int     `yaml:"bars"`
	MinHz   float64 `yaml:"min_hz"` // 0 selects 20 Hz.
	MaxHz   float64 `yaml:"max_hz"` // 0 selects min(18 kHz, Nyquist).
	Window  string  `yaml:"window"`
}

// SessionConfig controls the media session watcher.
type SessionConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Debounce     time.Duration `yaml:"debounce"`
	ConnectRetry time.Duration `yaml:"connect_retry"`
	Player       string        `yaml:"player"` // Preferred MPRIS player name, empty for any.
}

// TransportConfig holds the network fan-out settings.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddr    string        `yaml:"websocket_addr"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// RecordingConfig enables the WAV capture tap.
type RecordingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	OutputDir   string `yaml:"output_dir"`
	BitDepth    int    `yaml:"bit_depth"`            // 16, 24 or 32.
	MaxDuration int    `yaml:"max_duration_seconds"` // 0 for unlimited.
}

// MetricsConfig enables the OpenTelemetry meter provider and /metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// UIConfig controls the terminal panel.
type UIConfig struct {
	Enabled           bool          `yaml:"enabled"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"` // Blank the panel after this long without changes; 0 never.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultChannels,
		},
		Spectrum: SpectrumConfig{
			FFTSize: DefaultFFTSize,
			Bars:    DefaultBars,
			Window:  "hann",
		},
		Session: SessionConfig{
			Enabled:      true,
			Debounce:     DefaultDebounce,
			ConnectRetry: DefaultConnectRetry,
		},
		Transport: TransportConfig{
			WebSocketAddr:    "127.0.0.1:8765",
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  33 * time.Millisecond, // ~30Hz
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
			BitDepth:  16,
		},
		UI: UIConfig{
			Enabled:           true,
			VisibilityTimeout: DefaultVisibility,
		},
	}
}

// LoadConfig loads configuration from the YAML file at path. An empty path
// tries "config.yaml" in the working directory and falls back to the
// built-in defaults when it is absent. ENV_* overrides are applied after the
// file, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}

	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: audio.sample_rate %.0f outside %d..%d", ErrInvalid, a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer < 1 || a.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("%w: audio.frames_per_buffer %d outside 1..%d", ErrInvalid, a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.InputChannels < 1 {
		return fmt.Errorf("%w: audio.input_channels %d", ErrInvalid, a.InputChannels)
	}
	if a.InputDevice < DefaultDeviceID {
		return fmt.Errorf("%w: audio.input_device %d", ErrInvalid, a.InputDevice)
	}

	s := c.Spectrum
	if !bitint.IsPowerOfTwo(s.FFTSize) || s.FFTSize < MinFFTSize || s.FFTSize > MaxFFTSize {
		return fmt.Errorf("%w: spectrum.fft_size %d must be a power of two in %d..%d", ErrInvalid, s.FFTSize, MinFFTSize, MaxFFTSize)
	}
	if s.Bars < MinBars || s.Bars > MaxBars {
		return fmt.Errorf("%w: spectrum.bars %d outside %d..%d", ErrInvalid, s.Bars, MinBars, MaxBars)
	}
	if s.MinHz < 0 || s.MaxHz < 0 || (s.MaxHz != 0 && s.MaxHz <= s.MinHz) {
		return fmt.Errorf("%w: spectrum frequency range %.1f..%.1f", ErrInvalid, s.MinHz, s.MaxHz)
	}
	if _, err := spectrum.ParseWindowFunc(s.Window); err != nil {
		return fmt.Errorf("%w: spectrum.window: %v", ErrInvalid, err)
	}

	if c.Session.Enabled {
		if c.Session.Debounce <= 0 {
			return fmt.Errorf("%w: session.debounce must be positive", ErrInvalid)
		}
		if c.Session.ConnectRetry <= 0 {
			return fmt.Errorf("%w: session.connect_retry must be positive", ErrInvalid)
		}
	}

	t := c.Transport
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			return fmt.Errorf("%w: transport.udp_target_address %q: %v", ErrInvalid, t.UDPTargetAddress, err)
		}
		if t.UDPSendInterval <= 0 {
			return fmt.Errorf("%w: transport.udp_send_interval must be positive", ErrInvalid)
		}
	}
	if t.WebSocketEnabled {
		if _, _, err := net.SplitHostPort(t.WebSocketAddr); err != nil {
			return fmt.Errorf("%w: transport.websocket_addr %q: %v", ErrInvalid, t.WebSocketAddr, err)
		}
	}

	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return fmt.Errorf("%w: recording.bit_depth %d", ErrInvalid, c.Recording.BitDepth)
		}
		if c.Recording.OutputDir == "" {
			return fmt.Errorf("%w: recording.output_dir is empty", ErrInvalid)
		}
	}

	if c.UI.VisibilityTimeout < 0 {
		return fmt.Errorf("%w: ui.visibility_timeout is negative", ErrInvalid)
	}
	return nil
}

// Level returns the effective log level; Debug forces LevelDebug.
func (c *Config) Level() log.LogLevel {
	if c.Debug {
		return log.LevelDebug
	}
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}

// SpectrumConfig converts the spectrum and audio sections into an
// aggregator configuration.
func (c *Config) SpectrumConfig() spectrum.Config {
	w, _ := spectrum.ParseWindowFunc(c.Spectrum.Window)
	return spectrum.Config{
		FFTSize:    c.Spectrum.FFTSize,
		Bars:       c.Spectrum.Bars,
		SampleRate: int(c.Audio.SampleRate),
		MinHz:      c.Spectrum.MinHz,
		MaxHz:      c.Spectrum.MaxHz,
		Window:     w,
	}
}

func (c *Config) applyEnvOverrides() {
	// ENV_{...}
	// General overrides.

	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
			log.Debugf("configuration: overriding debug from env: %v", b)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		log.Debugf("configuration: overriding log_level from env: %s", val)
	}

	// ENV_SPECTRUM_{...}

	// ENV_SPECTRUM_FFT_SIZE
	if val, ok := os.LookupEnv("ENV_SPECTRUM_FFT_SIZE"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Spectrum.FFTSize = n
			log.Debugf("configuration: overriding spectrum.fft_size from env: %d", n)
		}
	}
	// ENV_SPECTRUM_BARS
	if val, ok := os.LookupEnv("ENV_SPECTRUM_BARS"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Spectrum.Bars = n
			log.Debugf("configuration: overriding spectrum.bars from env: %d", n)
		}
	}

	// ENV_UDP_{...}
	// Transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = b
			log.Debugf("configuration: overriding transport.udp_enabled from env: %v", b)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		log.Debugf("configuration: overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = d
			log.Debugf("configuration: overriding transport.udp_send_interval from env: %s", d)
		}
	}
	// ENV_WS_ADDR
	if val, ok := os.LookupEnv("ENV_WS_ADDR"); ok {
		c.Transport.WebSocketAddr = val
		c.Transport.WebSocketEnabled = val != ""
		log.Debugf("configuration: overriding transport.websocket_addr from env: %s", val)
	}
}
