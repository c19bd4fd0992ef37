package media

import (
	"errors"
	"io"
	"sync"

	"github.com/pion/rtp"
)

// ErrStreamClosed is returned when writing to a closed stream.
var ErrStreamClosed = errors.New("media: stream closed")

// streamBuffer caps how many packets a slow reader may fall behind before
// older packets are dropped.
const streamBuffer = 256

// Stream is a renderable wrapper around one track's RTP packet flow. The
// producing side (a transport's packet pump) writes packets in; a render
// surface or audio output reads them out. A stream outlives neither its
// consumer nor a session teardown.
type Stream struct {
	id   string
	kind Kind

	mu      sync.Mutex
	packets chan *rtp.Packet
	closed  bool
}

func NewStream(id string, kind Kind) *Stream {
	return &Stream{
		id:      id,
		kind:    kind,
		packets: make(chan *rtp.Packet, streamBuffer),
	}
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Kind() Kind { return s.kind }

// WriteRTP feeds one packet to the stream. When the buffer is full the
// oldest packet is discarded so the writer never blocks on a stalled
// reader.
func (s *Stream) WriteRTP(p *rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	for {
		select {
		case s.packets <- p:
			return nil
		default:
			select {
			case <-s.packets:
			default:
			}
		}
	}
}

// ReadRTP blocks until a packet is available or the stream is closed, in
// which case it returns io.EOF.
func (s *Stream) ReadRTP() (*rtp.Packet, error) {
	p, ok := <-s.packets
	if !ok {
		return nil, io.EOF
	}
	return p, nil
}

// Close ends the stream; pending readers drain buffered packets and then
// see io.EOF. Closing twice is a no-op.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.packets)
}

func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
