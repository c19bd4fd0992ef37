// Package session orchestrates one participant's media membership in one
// room: capability negotiation, the send/recv transports, local producers
// and remote consumers, with idempotent start and teardown.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/voxmeet/sfuclient/internal/media"
	"github.com/voxmeet/sfuclient/internal/render"
	"github.com/voxmeet/sfuclient/internal/signal"
)

// Capture acquires local device tracks. The session's producer manager is
// its only caller; device tracks are owned here and nowhere else.
type Capture interface {
	Microphone() (media.Track, error)
	Camera() (media.Track, error)
}

// Session owns every media resource of one room membership. All slots are
// reached through the session's own methods; there is no external
// mutation path. A second Start while started is a no-op, and Cleanup is
// safe to call at any time, any number of times.
type Session struct {
	log     *zap.Logger
	ch      signal.Channel
	device  media.Device
	capture Capture
	bridge  *render.Registry

	mu            sync.Mutex
	roomID        string
	displayName   string
	opusDTX       bool
	started       bool
	videoEnabling bool
	cancel        context.CancelFunc
	ctx           context.Context

	send media.SendTransport
	recv media.RecvTransport

	audioProducer media.Producer
	videoProducer media.Producer
	micTrack      media.Track
	camTrack      media.Track

	consumers map[string]media.Consumer // keyed by remote producer id
	owners    map[string]string         // remote producer id -> participant session id

	onLocalVideo func(media.Track)
}

// New wires a session from its collaborators. Nothing connects until
// Start.
func New(ch signal.Channel, device media.Device, capture Capture, bridge *render.Registry, logger *zap.Logger) *Session {
	return &Session{
		log:       logger.Named("session"),
		ch:        ch,
		device:    device,
		capture:   capture,
		bridge:    bridge,
		opusDTX:   true,
		consumers: make(map[string]media.Consumer),
		owners:    make(map[string]string),
	}
}

// OnLocalVideo registers the local-preview callback, invoked with the
// camera track when video is enabled and with nil when it is disabled.
func (s *Session) OnLocalVideo(cb func(media.Track)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLocalVideo = cb
}

// SetDisplayName sets the name announced to other participants when
// joining. Takes effect on the next Start.
func (s *Session) SetDisplayName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayName = name
}

// SetOpusDTX controls whether audio producers are announced with
// discontinuous transmission. On by default.
func (s *Session) SetOpusDTX(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opusDTX = enabled
}

// Started reports whether the session is live.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Start joins roomID: it negotiates capabilities, opens the send
// transport, publishes the microphone, opens the recv transport, consumes
// every already-present remote producer and subscribes to later ones.
// Calling Start while already started is a no-op. A fatal failure rolls
// everything back via Cleanup and is returned to the caller.
func (s *Session) Start(ctx context.Context, roomID string) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		s.log.Debug("start ignored, session already started")
		return nil
	}
	s.started = true
	s.roomID = roomID
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	if err := s.start(ctx, roomID); err != nil {
		s.Cleanup()
		return err
	}
	s.log.Info("session started", zap.String("room_id", roomID))
	return nil
}

func (s *Session) start(ctx context.Context, roomID string) error {
	// Capability negotiation must complete before any transport exists.
	var capsResp signal.GetRTPCapabilitiesResponse
	err := s.ch.Request(ctx, signal.MethodGetRTPCapabilities,
		signal.GetRTPCapabilitiesRequest{RoomID: roomID}, &capsResp)
	if err != nil {
		return classify(ErrNegotiation, "fetch router capabilities", err)
	}
	// The device loads once per process; a session restarted after Cleanup
	// reuses the capabilities negotiated the first time around.
	if !s.device.Loaded() {
		if err := s.device.Load(capsResp.RTPCapabilities); err != nil {
			return classify(ErrNegotiation, "load device capabilities", err)
		}
	}

	s.mu.Lock()
	displayName := s.displayName
	s.mu.Unlock()

	var joinResp signal.JoinRoomResponse
	err = s.ch.Request(ctx, signal.MethodJoinRoom, signal.JoinRoomRequest{
		RoomID:          roomID,
		DisplayName:     displayName,
		RTPCapabilities: s.device.RTPCapabilities(),
	}, &joinResp)
	if err != nil {
		return classify(ErrNegotiation, "join room", err)
	}

	if err := s.openSendTransport(ctx); err != nil {
		return classify(ErrNegotiation, "open send transport", err)
	}

	// A failed microphone degrades to a silent participant; the session
	// itself continues.
	if err := s.publishAudio(ctx); err != nil {
		s.log.Warn("continuing without audio", zap.Error(err))
	}

	if err := s.openRecvTransport(ctx); err != nil {
		return classify(ErrNegotiation, "open recv transport", err)
	}

	// Existing producers fan out concurrently; each failure is contained
	// to its own producer id.
	for _, producerID := range joinResp.ExistingProducers {
		go s.consumeProducer(s.ctx, producerID)
	}

	s.ch.On(signal.MethodNewProducer, func(params json.RawMessage) {
		var n signal.NewProducerNotification
		if err := json.Unmarshal(params, &n); err != nil {
			s.log.Warn("malformed new-producer notification", zap.Error(err))
			return
		}
		s.consumeProducer(s.ctx, n.ProducerID)
	})

	s.ch.On(signal.MethodParticipantLeft, func(params json.RawMessage) {
		var n signal.ParticipantLeftNotification
		if err := json.Unmarshal(params, &n); err != nil {
			s.log.Warn("malformed participant-left notification", zap.Error(err))
			return
		}
		s.closeParticipant(n.SessionID)
	})

	return nil
}

// Cleanup releases every resource the session may hold. Each step is
// independently guarded so a partially initialized session tears down as
// safely as a fully started one. Never panics, never returns an error.
func (s *Session) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info("cleaning up session")

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	if s.micTrack != nil {
		if err := s.micTrack.Close(); err != nil {
			s.log.Warn("closing microphone track", zap.Error(err))
		}
		s.micTrack = nil
	}
	if s.camTrack != nil {
		if err := s.camTrack.Close(); err != nil {
			s.log.Warn("closing camera track", zap.Error(err))
		}
		s.camTrack = nil
	}

	if s.audioProducer != nil {
		if err := s.audioProducer.Close(); err != nil {
			s.log.Warn("closing audio producer", zap.Error(err))
		}
		s.audioProducer = nil
	}
	if s.videoProducer != nil {
		if err := s.videoProducer.Close(); err != nil {
			s.log.Warn("closing video producer", zap.Error(err))
		}
		s.videoProducer = nil
	}

	for id, consumer := range s.consumers {
		if err := consumer.Close(); err != nil {
			s.log.Warn("closing consumer", zap.String("producer_id", id), zap.Error(err))
		}
		delete(s.consumers, id)
		delete(s.owners, id)
	}

	if s.send != nil {
		if err := s.send.Close(); err != nil {
			s.log.Warn("closing send transport", zap.Error(err))
		}
		s.send = nil
	}
	if s.recv != nil {
		if err := s.recv.Close(); err != nil {
			s.log.Warn("closing recv transport", zap.Error(err))
		}
		s.recv = nil
	}

	if s.bridge != nil {
		s.bridge.Clear()
	}

	if s.ch != nil {
		s.ch.Off(signal.MethodNewProducer)
		s.ch.Off(signal.MethodParticipantLeft)
	}

	s.started = false
}
