package session

import (
	"context"

	"go.uber.org/zap"
)

// publishAudio acquires the microphone and publishes it on the send
// transport. Invoked automatically during Start.
func (s *Session) publishAudio(ctx context.Context) error {
	track, err := s.capture.Microphone()
	if err != nil {
		return classify(ErrDeviceAcquisition, "acquire microphone", err)
	}

	s.mu.Lock()
	send := s.send
	s.mu.Unlock()
	if send == nil {
		if cerr := track.Close(); cerr != nil {
			s.log.Warn("closing microphone track", zap.Error(cerr))
		}
		return classify(ErrProduce, "publish audio", errNoSendTransport)
	}

	producer, err := send.Produce(ctx, track)
	if err != nil {
		if cerr := track.Close(); cerr != nil {
			s.log.Warn("closing microphone track after failed produce", zap.Error(cerr))
		}
		return classify(ErrProduce, "publish audio", err)
	}

	s.mu.Lock()
	s.micTrack = track
	s.audioProducer = producer
	s.mu.Unlock()

	s.log.Info("audio producer created", zap.String("producer_id", producer.ID()))
	return nil
}

// EnableVideo acquires the camera and publishes it. A no-op when a video
// producer already exists or the session is not started.
func (s *Session) EnableVideo(ctx context.Context) error {
	s.mu.Lock()
	send := s.send
	if send == nil || s.videoProducer != nil || s.videoEnabling {
		s.mu.Unlock()
		return nil
	}
	// Hold an in-progress claim across the camera acquisition so two
	// interleaved calls cannot both pass the producer check.
	s.videoEnabling = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.videoEnabling = false
		s.mu.Unlock()
	}()

	track, err := s.capture.Camera()
	if err != nil {
		return classify(ErrDeviceAcquisition, "acquire camera", err)
	}

	producer, err := send.Produce(ctx, track)
	if err != nil {
		if cerr := track.Close(); cerr != nil {
			s.log.Warn("closing camera track after failed produce", zap.Error(cerr))
		}
		return classify(ErrProduce, "publish video", err)
	}

	s.mu.Lock()
	s.camTrack = track
	s.videoProducer = producer
	cb := s.onLocalVideo
	s.mu.Unlock()

	// Local preview goes straight to the rendering layer, no SFU round
	// trip involved.
	if cb != nil {
		cb(track)
	}

	s.log.Info("video producer created", zap.String("producer_id", producer.ID()))
	return nil
}

// DisableVideo stops the camera track and closes the video producer. The
// device is released unconditionally: a failing producer close never
// leaves the camera lit. Calling it without an active producer is a
// no-op.
func (s *Session) DisableVideo() {
	s.mu.Lock()
	track := s.camTrack
	producer := s.videoProducer
	s.camTrack = nil
	s.videoProducer = nil
	cb := s.onLocalVideo
	s.mu.Unlock()

	if track == nil && producer == nil {
		return
	}

	if track != nil {
		if err := track.Close(); err != nil {
			s.log.Warn("closing camera track", zap.Error(err))
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			s.log.Warn("closing video producer", zap.Error(err))
		}
	}

	if cb != nil {
		cb(nil)
	}
	s.log.Info("video disabled")
}

// ToggleVideo flips video on or off based on the current producer state.
func (s *Session) ToggleVideo(ctx context.Context) error {
	if s.VideoEnabled() {
		s.DisableVideo()
		return nil
	}
	return s.EnableVideo(ctx)
}

// VideoEnabled reports whether a video producer currently exists.
func (s *Session) VideoEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoProducer != nil
}

// MuteAudio pauses the audio producer. The producer, and with it the
// microphone track, stays alive; muting an already-muted or absent
// producer is a no-op.
func (s *Session) MuteAudio() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audioProducer != nil && !s.audioProducer.Paused() {
		s.audioProducer.Pause()
		s.log.Info("audio muted")
	}
}

// UnmuteAudio resumes a paused audio producer.
func (s *Session) UnmuteAudio() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audioProducer != nil && s.audioProducer.Paused() {
		s.audioProducer.Resume()
		s.log.Info("audio unmuted")
	}
}

// AudioMuted reports the pause state; with no producer the participant is
// effectively muted.
func (s *Session) AudioMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audioProducer == nil {
		return true
	}
	return s.audioProducer.Paused()
}

// ToggleAudio derives its direction from the current state rather than
// tracking its own, so it can never drift.
func (s *Session) ToggleAudio() {
	if s.AudioMuted() {
		s.UnmuteAudio()
		return
	}
	s.MuteAudio()
}
