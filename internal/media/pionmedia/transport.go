package pionmedia

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/voxmeet/sfuclient/internal/media"
)

// transport is the shared half of the send and recv transports: one
// PeerConnection, one certificate, one connect negotiation. The connect
// round-trip runs at most once; its outcome is cached, so a rejected
// handshake permanently fails the transport.
type transport struct {
	id           string
	dir          media.Direction
	opts         media.TransportOptions
	pc           *webrtc.PeerConnection
	hooks        media.TransportHooks
	fingerprints []webrtc.DTLSFingerprint
	log          *zap.Logger

	connectMu  sync.Mutex
	attempted  bool
	connectErr error

	closeMu sync.Mutex
	closed  bool
}

func (t *transport) ID() string { return t.id }

// ensureConnected runs the connect negotiation exactly once, holding the
// lock for its duration so no produce or consume proceeds on an
// unconnected transport and no two negotiations interleave.
func (t *transport) ensureConnected(ctx context.Context) error {
	t.connectMu.Lock()
	defer t.connectMu.Unlock()

	if t.attempted {
		return t.connectErr
	}
	t.attempted = true

	if t.hooks.OnConnect == nil {
		return nil
	}

	dtls := media.DTLSParameters{Role: "client"}
	for _, fp := range t.fingerprints {
		dtls.Fingerprints = append(dtls.Fingerprints, media.DTLSFingerprint{
			Algorithm: fp.Algorithm,
			Value:     fp.Value,
		})
	}

	t.connectErr = t.hooks.OnConnect(ctx, dtls)
	if t.connectErr != nil {
		t.log.Warn("transport connect rejected", zap.Error(t.connectErr))
	} else {
		t.log.Info("transport connected")
	}
	return t.connectErr
}

func (t *transport) isClosed() bool {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	return t.closed
}

func (t *transport) Close() error {
	t.closeMu.Lock()
	if t.closed {
		t.closeMu.Unlock()
		return nil
	}
	t.closed = true
	t.closeMu.Unlock()
	return t.pc.Close()
}

// sendTransport publishes local tracks.
type sendTransport struct {
	*transport

	// produceMu serializes produce calls so each announced producer maps
	// to exactly one transceiver and negotiation rounds never interleave.
	produceMu sync.Mutex
	version   uint64
}

// negotiate runs one offer/answer round. The local side offers; the
// server side is synthesized from the transport connection parameters.
// Caller holds produceMu.
func (t *sendTransport) negotiate() error {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("pionmedia: create offer: %w", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("pionmedia: set local offer: %w", err)
	}
	parsed, err := offer.Unmarshal()
	if err != nil {
		return fmt.Errorf("pionmedia: parse local offer: %w", err)
	}

	t.version++
	answer, err := remoteAnswer(parsed, t.opts, t.version)
	if err != nil {
		return err
	}
	return t.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	})
}

func (t *sendTransport) Produce(ctx context.Context, track media.Track) (media.Producer, error) {
	if t.isClosed() {
		return nil, media.ErrTransportClosed
	}
	if err := t.ensureConnected(ctx); err != nil {
		return nil, err
	}

	local, err := localTrack(track)
	if err != nil {
		return nil, err
	}

	t.produceMu.Lock()
	defer t.produceMu.Unlock()

	transceiver, err := t.pc.AddTransceiverFromTrack(local, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	})
	if err != nil {
		return nil, fmt.Errorf("pionmedia: add track: %w", err)
	}
	sender := transceiver.Sender()

	if err := t.negotiate(); err != nil {
		if serr := sender.Stop(); serr != nil {
			t.log.Warn("stopping sender after failed negotiation", zap.Error(serr))
		}
		return nil, err
	}

	// Payload types and ssrcs are assigned during negotiation; read the
	// parameters only afterwards.
	params := rtpParameters(sender.GetParameters())

	if t.hooks.OnProduce == nil {
		return nil, fmt.Errorf("pionmedia: send transport has no produce hook")
	}
	id, err := t.hooks.OnProduce(ctx, track.Kind(), params)
	if err != nil {
		if serr := sender.Stop(); serr != nil {
			t.log.Warn("stopping sender after failed produce", zap.Error(serr))
		}
		return nil, err
	}

	t.log.Info("producer announced", zap.String("producer_id", id), zap.String("kind", string(track.Kind())))
	return &producer{
		id:     id,
		kind:   track.Kind(),
		sender: sender,
		track:  local,
		log:    t.log.With(zap.String("producer_id", id)),
	}, nil
}

// localTrack unwraps a capture track into the pion track the
// PeerConnection publishes.
func localTrack(track media.Track) (webrtc.TrackLocal, error) {
	type mediaProvider interface {
		Media() mediadevices.Track
	}
	if p, ok := track.(mediaProvider); ok {
		return p.Media(), nil
	}
	if local, ok := track.(webrtc.TrackLocal); ok {
		return local, nil
	}
	return nil, fmt.Errorf("pionmedia: track %s is not publishable", track.ID())
}

// producer wraps one RTPSender. Pausing swaps the track out of the sender
// without touching the capture device; closing stops the sender only,
// track ownership stays with the session.
type producer struct {
	id     string
	kind   media.Kind
	sender *webrtc.RTPSender
	track  webrtc.TrackLocal
	log    *zap.Logger

	mu     sync.Mutex
	paused bool
	closed bool
}

func (p *producer) ID() string       { return p.id }
func (p *producer) Kind() media.Kind { return p.kind }

func (p *producer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused || p.closed {
		return
	}
	if err := p.sender.ReplaceTrack(nil); err != nil {
		p.log.Warn("pausing producer", zap.Error(err))
		return
	}
	p.paused = true
}

func (p *producer) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused || p.closed {
		return
	}
	if err := p.sender.ReplaceTrack(p.track); err != nil {
		p.log.Warn("resuming producer", zap.Error(err))
		return
	}
	p.paused = false
}

func (p *producer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.sender.Stop()
}

// recvTransport subscribes to remote tracks. Each consume renegotiates
// the transport against a synthesized server offer covering every
// consumer so far; consumers queue per kind until OnTrack pairs them up.
type recvTransport struct {
	*transport

	// consumeMu serializes consume calls so negotiation rounds never
	// interleave.
	consumeMu sync.Mutex
	sections  []media.ConsumerOptions
	version   uint64

	pendingMu sync.Mutex
	pending   map[webrtc.RTPCodecType][]*consumer
}

// negotiate applies the server's side of the exchange and answers it.
// Caller holds consumeMu.
func (t *recvTransport) negotiate() error {
	t.version++
	offer, err := remoteOffer(t.opts, t.sections, t.version)
	if err != nil {
		return err
	}
	if err := t.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer,
	}); err != nil {
		return fmt.Errorf("pionmedia: set remote offer: %w", err)
	}
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("pionmedia: create answer: %w", err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("pionmedia: set local answer: %w", err)
	}
	return nil
}

func (t *recvTransport) Consume(ctx context.Context, opts media.ConsumerOptions) (media.Consumer, error) {
	if t.isClosed() {
		return nil, media.ErrTransportClosed
	}
	if err := t.ensureConnected(ctx); err != nil {
		return nil, err
	}

	c := &consumer{
		id:         opts.ID,
		producerID: opts.ProducerID,
		kind:       opts.Kind,
		stream:     media.NewStream(opts.ID, opts.Kind),
		log:        t.log.With(zap.String("consumer_id", opts.ID)),
	}
	codecType := codecTypeOf(opts.Kind)

	t.consumeMu.Lock()
	defer t.consumeMu.Unlock()

	t.pendingMu.Lock()
	t.pending[codecType] = append(t.pending[codecType], c)
	t.pendingMu.Unlock()
	t.sections = append(t.sections, opts)

	if err := t.negotiate(); err != nil {
		t.sections = t.sections[:len(t.sections)-1]
		t.dropPending(codecType, c)
		c.stream.Close()
		return nil, err
	}

	t.log.Info("consumer created",
		zap.String("consumer_id", opts.ID),
		zap.String("producer_id", opts.ProducerID),
		zap.String("kind", string(opts.Kind)))
	return c, nil
}

func (t *recvTransport) dropPending(codecType webrtc.RTPCodecType, c *consumer) {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	queue := t.pending[codecType]
	for i, queued := range queue {
		if queued == c {
			t.pending[codecType] = append(queue[:i], queue[i+1:]...)
			return
		}
	}
}

// handleTrack pairs an arriving remote track with the oldest waiting
// consumer of its kind and starts the packet pump.
func (t *recvTransport) handleTrack(remote *webrtc.TrackRemote) {
	t.pendingMu.Lock()
	queue := t.pending[remote.Kind()]
	var c *consumer
	if len(queue) > 0 {
		c = queue[0]
		t.pending[remote.Kind()] = queue[1:]
	}
	t.pendingMu.Unlock()

	if c == nil {
		t.log.Warn("remote track with no waiting consumer",
			zap.String("kind", remote.Kind().String()))
		return
	}
	go c.pump(remote)
}

func (t *recvTransport) Close() error {
	t.pendingMu.Lock()
	for kind, queue := range t.pending {
		for _, c := range queue {
			c.stream.Close()
		}
		delete(t.pending, kind)
	}
	t.pendingMu.Unlock()
	return t.transport.Close()
}

// consumer carries one remote track into a renderable stream.
type consumer struct {
	id         string
	producerID string
	kind       media.Kind
	stream     *media.Stream
	log        *zap.Logger
}

func (c *consumer) ID() string            { return c.id }
func (c *consumer) ProducerID() string    { return c.producerID }
func (c *consumer) Kind() media.Kind      { return c.kind }
func (c *consumer) Stream() *media.Stream { return c.stream }

func (c *consumer) Close() error {
	c.stream.Close()
	return nil
}

// pump copies RTP packets from the remote track into the stream until
// either side ends.
func (c *consumer) pump(remote *webrtc.TrackRemote) {
	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			c.stream.Close()
			return
		}
		if err := c.stream.WriteRTP(pkt); err != nil {
			return
		}
	}
}
