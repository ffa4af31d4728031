// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Core configuration constants that define the boundaries and defaults for
// the renderer and its collaborators.
const (
	DefaultLogLevel        = "info"
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultChannels        = 2
	DefaultGateThreshold   = 0.001 // ~0.1% of full scale

	DefaultWidth       = 960
	DefaultHeight      = 540
	DefaultRefreshRate = 60

	DefaultMinDecibels = -90.0
	DefaultMaxDecibels = -10.0
	DefaultWindow      = "Blackman"

	DefaultWSAddress       = ":8080"
	DefaultJPEGQuality     = 80
	DefaultUDPTarget       = "127.0.0.1:9090"
	DefaultUDPSendInterval = 33 * time.Millisecond // ~30Hz

	MinDeviceID    = -1 // -1 represents system default device
	MinSampleRate  = 8000
	MaxSampleRate  = 192000
	MaxBufferSize  = 8192
	MaxRefreshRate = 240
)

// Config represents the application configuration, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`             // Enable debug logging.
	LogLevel  string          `yaml:"log_level"`         // "debug", "info", "warn", "error".
	LogFile   string          `yaml:"log_file"`          // Log destination while the terminal panel is active.
	Command   string          `yaml:"command,omitempty"` // One-off command instead of running ("list", "version").
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Controls  ControlsConfig  `yaml:"controls"`
	Tempo     TempoConfig     `yaml:"tempo"`
	Render    RenderConfig    `yaml:"render"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
	UI        UIConfig        `yaml:"ui"`
}

// AudioConfig selects and configures the audio source.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Capture sample rate in Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per PortAudio callback.
	LowLatency      bool    `yaml:"low_latency"`       // Request the device's low latency setting.
	InputChannels   int     `yaml:"input_channels"`    // 1 for mono, 2 for stereo.
	File            string  `yaml:"file"`              // WAV file to play instead of capturing.
	Loop            bool    `yaml:"loop"`              // Restart the file when it ends.
	GateEnabled     bool    `yaml:"gate_enabled"`      // Feed silence while the input is below the gate.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Gate threshold as a fraction of full scale.
}

// AnalysisConfig configures the spectral frame source.
type AnalysisConfig struct {
	MinDecibels float64 `yaml:"min_decibels"` // Maps to byte 0.
	MaxDecibels float64 `yaml:"max_decibels"` // Maps to byte 255.
	Window      string  `yaml:"window"`       // FFT window function name.
}

// ControlsConfig holds the initial control values. Values are clamped when
// loaded into the control store, never rejected.
type ControlsConfig struct {
	SegmentCount       int     `yaml:"segments"`
	RotationSpeed      float64 `yaml:"rotation_speed"`
	HueCenter          float64 `yaml:"hue_center"`
	Distortion         float64 `yaml:"distortion"`
	ColorWarp          float64 `yaml:"color_warp"`
	TrailAmount        float64 `yaml:"trail"`
	ResolutionExponent int     `yaml:"resolution_exponent"`
	Smoothing          float64 `yaml:"smoothing"`
	EnergyBoost        float64 `yaml:"energy_boost"`
	AutoSpin           bool    `yaml:"auto_spin"`
}

// TempoConfig configures the tap tempo estimator.
type TempoConfig struct {
	ResetAfter time.Duration `yaml:"reset_after"` // Clear tap history after this gap (0 keeps every tap).
}

// RenderConfig sizes the render surface and its refresh cadence.
type RenderConfig struct {
	Width           int  `yaml:"width"`
	Height          int  `yaml:"height"`
	RefreshRate     int  `yaml:"refresh_rate"`      // Display refresh in Hz.
	PauseWhenHidden bool `yaml:"pause_when_hidden"` // Skip frames while no viewer is connected.
}

// RecordingConfig holds settings related to input recording.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	File      string `yaml:"file"` // Explicit output file, generated when empty.
	BitDepth  int    `yaml:"bit_depth"`
}

// TransportConfig holds settings related to publishing frames and bands.
type TransportConfig struct {
	WSEnabled        bool          `yaml:"ws_enabled"`
	WSAddress        string        `yaml:"ws_address"`
	JPEGQuality      int           `yaml:"jpeg_quality"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// UIConfig configures the terminal panel.
type UIConfig struct {
	TUI        bool `yaml:"tui"`
	PickDevice bool `yaml:"pick_device"`
}

// Default returns the built-in configuration. Control defaults match the
// look the renderer was tuned for.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		LogFile:  "kaleido.log",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultChannels,
			GateEnabled:     true,
			GateThreshold:   DefaultGateThreshold,
		},
		Analysis: AnalysisConfig{
			MinDecibels: DefaultMinDecibels,
			MaxDecibels: DefaultMaxDecibels,
			Window:      DefaultWindow,
		},
		Controls: ControlsConfig{
			SegmentCount:       12,
			RotationSpeed:      0.32,
			HueCenter:          210,
			Distortion:         0.55,
			ColorWarp:          0.72,
			TrailAmount:        0.15,
			ResolutionExponent: 11,
			Smoothing:          0.78,
			EnergyBoost:        1.4,
			AutoSpin:           true,
		},
		Render: RenderConfig{
			Width:           DefaultWidth,
			Height:          DefaultHeight,
			RefreshRate:     DefaultRefreshRate,
			PauseWhenHidden: true,
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
			BitDepth:  32,
		},
		Transport: TransportConfig{
			WSEnabled:        true,
			WSAddress:        DefaultWSAddress,
			JPEGQuality:      DefaultJPEGQuality,
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}

// configCandidates are searched, in order, when no path is given.
var configCandidates = []string{"kaleido.yaml", "config.yaml"}

// LoadConfig loads configuration from the YAML file at path. If path is
// empty the default locations are searched and, when nothing is found, the
// built-in defaults are used. Environment overrides are applied last, then
// the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range configCandidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
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
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the collaborators cannot run with. Control values
// are not validated here; the control store clamps them.
func (c *Config) Validate() error {
	var errs []error

	if c.Audio.InputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.input_device must be >= %d, got %d", MinDeviceID, c.Audio.InputDevice))
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be within [%d, %d], got %.0f", MinSampleRate, MaxSampleRate, c.Audio.SampleRate))
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferSize {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer must be within (0, %d], got %d", MaxBufferSize, c.Audio.FramesPerBuffer))
	}
	if c.Audio.InputChannels < 1 || c.Audio.InputChannels > 2 {
		errs = append(errs, fmt.Errorf("audio.input_channels must be 1 or 2, got %d", c.Audio.InputChannels))
	}
	if c.Analysis.MinDecibels >= c.Analysis.MaxDecibels {
		errs = append(errs, fmt.Errorf("analysis.min_decibels (%.1f) must be below analysis.max_decibels (%.1f)", c.Analysis.MinDecibels, c.Analysis.MaxDecibels))
	}
	if c.Render.Width < 0 || c.Render.Height < 0 {
		errs = append(errs, fmt.Errorf("render size must not be negative, got %dx%d", c.Render.Width, c.Render.Height))
	}
	if c.Render.RefreshRate <= 0 || c.Render.RefreshRate > MaxRefreshRate {
		errs = append(errs, fmt.Errorf("render.refresh_rate must be within (0, %d], got %d", MaxRefreshRate, c.Render.RefreshRate))
	}
	if c.Transport.WSEnabled && c.Transport.WSAddress == "" {
		errs = append(errs, errors.New("transport.ws_address must be set when the websocket transport is enabled"))
	}
	if c.Transport.JPEGQuality < 1 || c.Transport.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("transport.jpeg_quality must be within [1, 100], got %d", c.Transport.JPEGQuality))
	}
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			errs = append(errs, errors.New("transport.udp_target_address must be set when UDP is enabled"))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	if c.Recording.Enabled && c.Audio.File != "" {
		errs = append(errs, errors.New("recording is only available when capturing from an input device"))
	}
	if c.Tempo.ResetAfter < 0 {
		errs = append(errs, fmt.Errorf("tempo.reset_after must not be negative, got %s", c.Tempo.ResetAfter))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies ENV_* variables on top of the loaded values.
// Malformed values are ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok && val != "" {
		c.LogLevel = val
	}
	// ENV_AUDIO_FILE
	if val, ok := os.LookupEnv("ENV_AUDIO_FILE"); ok {
		c.Audio.File = val
	}

	// ENV_WS_{...}

	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WSEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WSAddress = val
	}

	// ENV_UDP_{...}

	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
		}
	}
}
