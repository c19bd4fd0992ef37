// Package pionmedia backs the media engine interfaces with pion
// PeerConnections: one per transport, DTLS parameters negotiated through
// the session's signaling hooks.
package pionmedia

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/voxmeet/sfuclient/internal/media"
)

// Local codec support; the router's capability set is intersected against
// these mime types during Load.
var supportedMimeTypes = map[string]bool{
	strings.ToLower(webrtc.MimeTypeOpus): true,
	strings.ToLower(webrtc.MimeTypeVP8):  true,
}

// Device negotiates capabilities once per session and manufactures the
// send and recv transports.
type Device struct {
	api *webrtc.API
	log *zap.Logger

	mu     sync.Mutex
	loaded bool
	caps   media.RTPCapabilities
}

// NewDevice builds the device around a media engine registered with the
// same codec selector the capture layer encodes with.
func NewDevice(selector *mediadevices.CodecSelector, logger *zap.Logger) (*Device, error) {
	engine := &webrtc.MediaEngine{}
	if err := engine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("pionmedia: register default codecs: %w", err)
	}
	if selector != nil {
		selector.Populate(engine)
	}

	return &Device{
		api: webrtc.NewAPI(webrtc.WithMediaEngine(engine)),
		log: logger.Named("media"),
	}, nil
}

// Load intersects the router's capabilities with the local codec set.
// Must complete before any transport exists.
func (d *Device) Load(routerCaps media.RTPCapabilities) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return media.ErrAlreadyLoaded
	}

	var caps media.RTPCapabilities
	for _, codec := range routerCaps.Codecs {
		if supportedMimeTypes[strings.ToLower(codec.MimeType)] {
			caps.Codecs = append(caps.Codecs, codec)
		}
	}
	caps.HeaderExtensions = routerCaps.HeaderExtensions

	if len(caps.Codecs) == 0 {
		return fmt.Errorf("pionmedia: no common codec with router")
	}

	d.caps = caps
	d.loaded = true
	d.log.Info("device capabilities loaded", zap.Int("codecs", len(caps.Codecs)))
	return nil
}

func (d *Device) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

func (d *Device) RTPCapabilities() media.RTPCapabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps
}

func (d *Device) CreateSendTransport(opts media.TransportOptions, hooks media.TransportHooks) (media.SendTransport, error) {
	t, err := d.newTransport(opts, media.DirectionSend, hooks)
	if err != nil {
		return nil, err
	}
	return &sendTransport{transport: t}, nil
}

func (d *Device) CreateRecvTransport(opts media.TransportOptions, hooks media.TransportHooks) (media.RecvTransport, error) {
	t, err := d.newTransport(opts, media.DirectionRecv, hooks)
	if err != nil {
		return nil, err
	}
	rt := &recvTransport{
		transport: t,
		pending:   make(map[webrtc.RTPCodecType][]*consumer),
	}
	t.pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		rt.handleTrack(remote)
	})
	return rt, nil
}

// newTransport builds the per-transport PeerConnection with a fresh DTLS
// certificate whose fingerprints feed the connect round-trip.
func (d *Device) newTransport(opts media.TransportOptions, dir media.Direction, hooks media.TransportHooks) (*transport, error) {
	d.mu.Lock()
	loaded := d.loaded
	d.mu.Unlock()
	if !loaded {
		return nil, media.ErrNotLoaded
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("pionmedia: generate certificate key: %w", err)
	}
	cert, err := webrtc.GenerateCertificate(key)
	if err != nil {
		return nil, fmt.Errorf("pionmedia: generate certificate: %w", err)
	}

	pc, err := d.api.NewPeerConnection(webrtc.Configuration{
		Certificates: []webrtc.Certificate{*cert},
	})
	if err != nil {
		return nil, fmt.Errorf("pionmedia: create peer connection: %w", err)
	}

	fingerprints, err := cert.GetFingerprints()
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("pionmedia: read certificate fingerprints: %w", err)
	}

	log := d.log.With(zap.String("transport_id", opts.ID), zap.String("direction", string(dir)))
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		log.Debug("ICE connection state changed", zap.String("state", state.String()))
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug("connection state changed", zap.String("state", state.String()))
	})

	return &transport{
		id:           opts.ID,
		dir:          dir,
		opts:         opts,
		pc:           pc,
		hooks:        hooks,
		fingerprints: fingerprints,
		log:          log,
	}, nil
}

func codecTypeOf(kind media.Kind) webrtc.RTPCodecType {
	if kind == media.KindVideo {
		return webrtc.RTPCodecTypeVideo
	}
	return webrtc.RTPCodecTypeAudio
}
