// Package capture owns local device acquisition. The producer manager is
// the only caller; nothing else starts or stops device tracks.
package capture

import (
	"fmt"
	"time"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/prop"
	"go.uber.org/zap"

	_ "github.com/pion/mediadevices/pkg/driver/camera"     // registers the camera adapter
	_ "github.com/pion/mediadevices/pkg/driver/microphone" // registers the microphone adapter

	"github.com/voxmeet/sfuclient/internal/config"
	"github.com/voxmeet/sfuclient/internal/media"
)

// Track adapts a mediadevices track to the media engine's track contract.
type Track struct {
	kind  media.Kind
	inner mediadevices.Track
}

func (t *Track) ID() string       { return t.inner.ID() }
func (t *Track) Kind() media.Kind { return t.kind }
func (t *Track) Close() error     { return t.inner.Close() }

// Media exposes the underlying mediadevices track for the pion engine.
func (t *Track) Media() mediadevices.Track { return t.inner }

// DeviceSource acquires microphone and camera tracks with the configured
// constraints.
type DeviceSource struct {
	cfg      config.CaptureConfig
	selector *mediadevices.CodecSelector
	log      *zap.Logger
}

func NewDeviceSource(cfg config.CaptureConfig, logger *zap.Logger) (*DeviceSource, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("capture: create VP8 params: %w", err)
	}
	vpxParams.BitRate = 1_000_000
	vpxParams.KeyFrameInterval = 30

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("capture: create Opus params: %w", err)
	}
	opusParams.BitRate = 32_000
	opusParams.Latency = opus.Latency20ms

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	return &DeviceSource{
		cfg:      cfg,
		selector: selector,
		log:      logger.Named("capture"),
	}, nil
}

// Selector exposes the codec selector so the media engine registers the
// same encoders it captures with.
func (s *DeviceSource) Selector() *mediadevices.CodecSelector { return s.selector }

// Microphone acquires one audio track.
func (s *DeviceSource) Microphone() (media.Track, error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {
			c.SampleRate = prop.Int(s.cfg.AudioSampleRate)
			c.ChannelCount = prop.Int(s.cfg.AudioChannels)
			c.Latency = prop.Duration(20 * time.Millisecond)
		},
		Codec: s.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("capture: get microphone: %w", err)
	}

	tracks := stream.GetAudioTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("capture: no audio track available")
	}
	s.log.Info("microphone track acquired", zap.String("track_id", tracks[0].ID()))
	return &Track{kind: media.KindAudio, inner: tracks[0]}, nil
}

// Camera acquires one video track.
func (s *DeviceSource) Camera() (media.Track, error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.Width = prop.Int(s.cfg.VideoWidth)
			c.Height = prop.Int(s.cfg.VideoHeight)
			c.FrameRate = prop.Float(s.cfg.VideoFrameRate)
		},
		Codec: s.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("capture: get camera: %w", err)
	}

	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("capture: no video track available")
	}
	s.log.Info("camera track acquired", zap.String("track_id", tracks[0].ID()))
	return &Track{kind: media.KindVideo, inner: tracks[0]}, nil
}
