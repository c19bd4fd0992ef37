package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/voxmeet/sfuclient/internal/media"
	"github.com/voxmeet/sfuclient/internal/signal"
)

// fakeChannel scripts signaling responses per method and records every
// request and notification for side-effect assertions.
type fakeChannel struct {
	mu        sync.Mutex
	requests  []string
	notifies  []string
	handlers  map[string]signal.Handler
	connected bool

	routerCaps        media.RTPCapabilities
	existingProducers []string
	consumeResponses  map[string]signal.ConsumeResponse
	consumeErrors     map[string]error
	requestErrors     map[string]error
	connectError      string

	produceSeq      int
	joinRequests    []signal.JoinRoomRequest
	produceRequests []signal.ProduceRequest
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		handlers:  make(map[string]signal.Handler),
		connected: true,
		routerCaps: media.RTPCapabilities{
			Codecs: []media.RTPCodecCapability{
				{Kind: media.KindAudio, MimeType: "audio/opus", ClockRate: 48000, Channels: 2},
				{Kind: media.KindVideo, MimeType: "video/VP8", ClockRate: 90000},
			},
		},
		consumeResponses: make(map[string]signal.ConsumeResponse),
		consumeErrors:    make(map[string]error),
		requestErrors:    make(map[string]error),
	}
}

func (c *fakeChannel) Request(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	c.requests = append(c.requests, method)
	reqErr := c.requestErrors[method]
	c.mu.Unlock()
	if reqErr != nil {
		return reqErr
	}

	switch method {
	case signal.MethodGetRTPCapabilities:
		*result.(*signal.GetRTPCapabilitiesResponse) = signal.GetRTPCapabilitiesResponse{
			RTPCapabilities: c.routerCaps,
		}
	case signal.MethodJoinRoom:
		c.mu.Lock()
		c.joinRequests = append(c.joinRequests, params.(signal.JoinRoomRequest))
		c.mu.Unlock()
		*result.(*signal.JoinRoomResponse) = signal.JoinRoomResponse{
			ExistingProducers: c.existingProducers,
		}
	case signal.MethodCreateTransport:
		req := params.(signal.CreateTransportRequest)
		*result.(*signal.CreateTransportResponse) = signal.CreateTransportResponse{
			Params: media.TransportOptions{ID: "transport-" + string(req.Direction)},
		}
	case signal.MethodConnectTransport:
		*result.(*signal.ConnectTransportResponse) = signal.ConnectTransportResponse{
			Error: c.connectError,
		}
	case signal.MethodProduce:
		c.mu.Lock()
		c.produceSeq++
		c.produceRequests = append(c.produceRequests, params.(signal.ProduceRequest))
		id := fmt.Sprintf("producer-%d", c.produceSeq)
		c.mu.Unlock()
		*result.(*signal.ProduceResponse) = signal.ProduceResponse{ID: id}
	case signal.MethodConsume:
		req := params.(signal.ConsumeRequest)
		c.mu.Lock()
		err := c.consumeErrors[req.ProducerID]
		resp, ok := c.consumeResponses[req.ProducerID]
		c.mu.Unlock()
		if err != nil {
			return err
		}
		if !ok {
			resp = signal.ConsumeResponse{Error: "producer not found"}
		}
		*result.(*signal.ConsumeResponse) = resp
	}
	return nil
}

func (c *fakeChannel) Notify(method string, params any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifies = append(c.notifies, method)
	return nil
}

func (c *fakeChannel) On(method string, h signal.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[method] = h
}

func (c *fakeChannel) Off(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, method)
}

func (c *fakeChannel) Connected() bool { return c.connected }
func (c *fakeChannel) Close() error    { return nil }

// emit simulates a server-pushed notification, synchronously.
func (c *fakeChannel) emit(method, rawParams string) {
	c.mu.Lock()
	h := c.handlers[method]
	c.mu.Unlock()
	if h != nil {
		h(json.RawMessage(rawParams))
	}
}

func (c *fakeChannel) requestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *fakeChannel) handlerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

func (c *fakeChannel) producedRequests() []signal.ProduceRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]signal.ProduceRequest(nil), c.produceRequests...)
}

// fakeTrack stands in for a capture device track.
type fakeTrack struct {
	id   string
	kind media.Kind

	mu      sync.Mutex
	stopped bool
}

func (t *fakeTrack) ID() string       { return t.id }
func (t *fakeTrack) Kind() media.Kind { return t.kind }

func (t *fakeTrack) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	return nil
}

func (t *fakeTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fakeCapture hands out fresh tracks and remembers them so tests can
// assert device release.
type fakeCapture struct {
	mu     sync.Mutex
	seq    int
	tracks []*fakeTrack

	micErr error
	camErr error

	camCalls int
	camGate  chan struct{} // when set, Camera blocks until the gate closes
}

func (f *fakeCapture) newTrack(kind media.Kind) *fakeTrack {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTrack{id: fmt.Sprintf("track-%d", f.seq), kind: kind}
	f.tracks = append(f.tracks, t)
	return t
}

func (f *fakeCapture) Microphone() (media.Track, error) {
	if f.micErr != nil {
		return nil, f.micErr
	}
	return f.newTrack(media.KindAudio), nil
}

func (f *fakeCapture) Camera() (media.Track, error) {
	f.mu.Lock()
	f.camCalls++
	gate := f.camGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.camErr != nil {
		return nil, f.camErr
	}
	return f.newTrack(media.KindVideo), nil
}

func (f *fakeCapture) cameraCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.camCalls
}

func (f *fakeCapture) activeTracks() []*fakeTrack {
	f.mu.Lock()
	defer f.mu.Unlock()
	var active []*fakeTrack
	for _, t := range f.tracks {
		if !t.Stopped() {
			active = append(active, t)
		}
	}
	return active
}

// fakeDevice mimics the engine contract: connect fires once per
// transport before the first produce or consume resolves.
type fakeDevice struct {
	mu     sync.Mutex
	loaded bool
	caps   media.RTPCapabilities

	loadErr error

	send *fakeSendTransport
	recv *fakeRecvTransport
}

func (d *fakeDevice) Load(routerCaps media.RTPCapabilities) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loadErr != nil {
		return d.loadErr
	}
	if d.loaded {
		return media.ErrAlreadyLoaded
	}
	d.loaded = true
	d.caps = routerCaps
	return nil
}

func (d *fakeDevice) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

func (d *fakeDevice) RTPCapabilities() media.RTPCapabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps
}

func (d *fakeDevice) CreateSendTransport(opts media.TransportOptions, hooks media.TransportHooks) (media.SendTransport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.send = &fakeSendTransport{id: opts.ID, hooks: hooks}
	return d.send, nil
}

func (d *fakeDevice) CreateRecvTransport(opts media.TransportOptions, hooks media.TransportHooks) (media.RecvTransport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recv = &fakeRecvTransport{id: opts.ID, hooks: hooks}
	return d.recv, nil
}

type fakeSendTransport struct {
	id    string
	hooks media.TransportHooks

	mu        sync.Mutex
	connected bool
	produced  []*fakeProducer
	closed    bool

	produceErr error
}

func (t *fakeSendTransport) ID() string { return t.id }

func (t *fakeSendTransport) Produce(ctx context.Context, track media.Track) (media.Producer, error) {
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()

	if !connected && t.hooks.OnConnect != nil {
		if err := t.hooks.OnConnect(ctx, media.DTLSParameters{}); err != nil {
			return nil, err
		}
		t.mu.Lock()
		t.connected = true
		t.mu.Unlock()
	}

	if t.produceErr != nil {
		return nil, t.produceErr
	}

	id, err := t.hooks.OnProduce(ctx, track.Kind(), media.RTPParameters{})
	if err != nil {
		return nil, err
	}

	p := &fakeProducer{id: id, kind: track.Kind()}
	t.mu.Lock()
	t.produced = append(t.produced, p)
	t.mu.Unlock()
	return p, nil
}

func (t *fakeSendTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

type fakeRecvTransport struct {
	id    string
	hooks media.TransportHooks

	mu        sync.Mutex
	connected bool
	consumers []*fakeConsumer
	closed    bool
}

func (t *fakeRecvTransport) ID() string { return t.id }

func (t *fakeRecvTransport) Consume(ctx context.Context, opts media.ConsumerOptions) (media.Consumer, error) {
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()

	if !connected && t.hooks.OnConnect != nil {
		if err := t.hooks.OnConnect(ctx, media.DTLSParameters{}); err != nil {
			return nil, err
		}
		t.mu.Lock()
		t.connected = true
		t.mu.Unlock()
	}

	c := &fakeConsumer{
		id:         opts.ID,
		producerID: opts.ProducerID,
		kind:       opts.Kind,
		stream:     media.NewStream(opts.ID, opts.Kind),
	}
	t.mu.Lock()
	t.consumers = append(t.consumers, c)
	t.mu.Unlock()
	return c, nil
}

func (t *fakeRecvTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

type fakeProducer struct {
	id   string
	kind media.Kind

	mu     sync.Mutex
	paused bool
	closed bool

	closeErr error
}

func (p *fakeProducer) ID() string       { return p.id }
func (p *fakeProducer) Kind() media.Kind { return p.kind }

func (p *fakeProducer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
}

func (p *fakeProducer) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
}

func (p *fakeProducer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *fakeProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.closeErr
}

func (p *fakeProducer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeConsumer struct {
	id         string
	producerID string
	kind       media.Kind
	stream     *media.Stream
}

func (c *fakeConsumer) ID() string            { return c.id }
func (c *fakeConsumer) ProducerID() string    { return c.producerID }
func (c *fakeConsumer) Kind() media.Kind      { return c.kind }
func (c *fakeConsumer) Stream() *media.Stream { return c.stream }

func (c *fakeConsumer) Close() error {
	c.stream.Close()
	return nil
}
