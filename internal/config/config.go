package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all client configuration. Every field can be overridden
// from the environment.
type Config struct {
	// SignalURL is the websocket endpoint of the signaling server.
	SignalURL string `env:"MEET_SIGNAL_URL"`
	// RoomID identifies the meeting room to join.
	RoomID string `env:"MEET_ROOM_ID"`
	// DisplayName is shown to other participants.
	DisplayName string `env:"MEET_DISPLAY_NAME"`

	// RequestTimeout bounds every signaling round-trip; a hung remote
	// response rejects the pending operation instead of hanging it.
	RequestTimeout time.Duration `env:"MEET_REQUEST_TIMEOUT"`
	// DialTimeout caps signaling dial retries.
	DialTimeout time.Duration `env:"MEET_DIAL_TIMEOUT"`

	Capture CaptureConfig
}

// CaptureConfig carries the local device constraints.
type CaptureConfig struct {
	VideoWidth     int     `env:"MEET_VIDEO_WIDTH"`
	VideoHeight    int     `env:"MEET_VIDEO_HEIGHT"`
	VideoFrameRate float32 `env:"MEET_VIDEO_FRAMERATE"`

	AudioSampleRate int  `env:"MEET_AUDIO_SAMPLE_RATE"`
	AudioChannels   int  `env:"MEET_AUDIO_CHANNELS"`
	AudioDTX        bool `env:"MEET_AUDIO_DTX"`
}

// NewDefaultConfig returns a Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		SignalURL:      "ws://localhost:7000/ws",
		RequestTimeout: 10 * time.Second,
		DialTimeout:    30 * time.Second,
		Capture: CaptureConfig{
			VideoWidth:      1280,
			VideoHeight:     720,
			VideoFrameRate:  30,
			AudioSampleRate: 48000,
			AudioChannels:   1,
			AudioDTX:        true,
		},
	}
}

// Load returns the defaults overridden by the environment.
func Load() (*Config, error) {
	cfg := NewDefaultConfig()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}

type validator struct{ errors []string }

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

// Validate checks the configuration before any connection is attempted.
func (c *Config) Validate() error {
	v := &validator{}

	u, err := url.Parse(c.SignalURL)
	switch {
	case c.SignalURL == "":
		v.addError("signal URL is required")
	case err != nil:
		v.addError("signal URL %q is not a valid URL: %v", c.SignalURL, err)
	case u.Scheme != "ws" && u.Scheme != "wss":
		v.addError("signal URL scheme must be ws or wss, got %q", u.Scheme)
	}

	if c.RequestTimeout < 0 {
		v.addError("request timeout must not be negative")
	}
	if c.DialTimeout <= 0 {
		v.addError("dial timeout must be positive")
	}

	if c.Capture.VideoWidth <= 0 || c.Capture.VideoHeight <= 0 {
		v.addError("video dimensions must be positive, got %dx%d",
			c.Capture.VideoWidth, c.Capture.VideoHeight)
	}
	if c.Capture.VideoFrameRate <= 0 {
		v.addError("video frame rate must be positive")
	}
	if c.Capture.AudioSampleRate <= 0 {
		v.addError("audio sample rate must be positive")
	}
	if c.Capture.AudioChannels != 1 && c.Capture.AudioChannels != 2 {
		v.addError("audio channels must be 1 or 2, got %d", c.Capture.AudioChannels)
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(v.errors, "\n"))
	}
	return nil
}
