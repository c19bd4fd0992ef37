// Package render decouples consumer creation from rendering: a stream may
// become ready before its surface mounts or after, and both orders must
// end with the surface showing the stream.
package render

import (
	"sync"

	"go.uber.org/zap"

	"github.com/voxmeet/sfuclient/internal/media"
)

// Surface is the UI collaborator displaying one participant's video.
type Surface interface {
	Attach(stream *media.Stream) error
	Detach()
}

// AudioOutput plays one remote audio stream. Outputs are created on
// demand and stopped in bulk at teardown.
type AudioOutput interface {
	Play(stream *media.Stream) error
	Stop()
}

// Registry maps a participant's session id to its render surface. It is
// mutated from two independent sources, surface mount/unmount and
// stream-ready notifications, so all access is serialized by a mutex.
type Registry struct {
	mu        sync.Mutex
	surfaces  map[string]Surface
	pending   map[string]*media.Stream
	outputs   []AudioOutput
	newOutput func() AudioOutput
	log       *zap.Logger
}

// NewRegistry builds a registry; newOutput manufactures audio outputs for
// remote audio streams and may be nil when playback is not wanted.
func NewRegistry(newOutput func() AudioOutput, logger *zap.Logger) *Registry {
	if newOutput == nil {
		newOutput = func() AudioOutput { return &discardOutput{} }
	}
	return &Registry{
		surfaces:  make(map[string]Surface),
		pending:   make(map[string]*media.Stream),
		newOutput: newOutput,
		log:       logger.Named("render"),
	}
}

// RegisterVideo records the surface for sessionID. If a stream arrived
// first, it is attached immediately. Re-registering replaces the surface.
func (r *Registry) RegisterVideo(sessionID string, s Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.surfaces[sessionID] = s
	if stream, ok := r.pending[sessionID]; ok {
		delete(r.pending, sessionID)
		r.attach(sessionID, s, stream)
	}
}

// UnregisterVideo detaches and forgets the surface for sessionID.
// Unknown ids are a no-op.
func (r *Registry) UnregisterVideo(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.surfaces[sessionID]; ok {
		s.Detach()
		delete(r.surfaces, sessionID)
	}
}

// GetVideo returns the surface for sessionID, or nil when none is
// registered.
func (r *Registry) GetVideo(sessionID string) Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surfaces[sessionID]
}

// StreamReady delivers a remote video stream for sessionID. If the
// surface is already mounted the stream attaches now; otherwise it is
// held until RegisterVideo.
func (r *Registry) StreamReady(sessionID string, stream *media.Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.surfaces[sessionID]; ok {
		r.attach(sessionID, s, stream)
		return
	}
	r.pending[sessionID] = stream
}

// ForgetStream drops a pending stream that will never attach, typically
// because its participant left before the surface mounted.
func (r *Registry) ForgetStream(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, sessionID)
}

// PlayAudio starts playback of a remote audio stream on a fresh output.
func (r *Registry) PlayAudio(stream *media.Stream) {
	r.mu.Lock()
	out := r.newOutput()
	r.outputs = append(r.outputs, out)
	r.mu.Unlock()

	if err := out.Play(stream); err != nil {
		r.log.Warn("audio playback failed", zap.String("stream_id", stream.ID()), zap.Error(err))
	}
}

// Clear detaches every surface, stops every audio output and drops all
// pending streams. Safe to call repeatedly.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.surfaces {
		s.Detach()
		delete(r.surfaces, id)
	}
	for id := range r.pending {
		delete(r.pending, id)
	}
	for _, out := range r.outputs {
		out.Stop()
	}
	r.outputs = nil
}

func (r *Registry) attach(sessionID string, s Surface, stream *media.Stream) {
	if err := s.Attach(stream); err != nil {
		r.log.Warn("surface attach failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// discardOutput is the always-playing sink used when no real audio
// device is wired: it drains the stream so producers never stall.
type discardOutput struct {
	stream *media.Stream
}

func (d *discardOutput) Play(stream *media.Stream) error {
	d.stream = stream
	go func() {
		for {
			if _, err := stream.ReadRTP(); err != nil {
				return
			}
		}
	}()
	return nil
}

func (d *discardOutput) Stop() {
	if d.stream != nil {
		d.stream.Close()
	}
}
