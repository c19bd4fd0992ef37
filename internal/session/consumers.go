package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/voxmeet/sfuclient/internal/media"
	"github.com/voxmeet/sfuclient/internal/signal"
)

// consumeProducer walks one remote producer through announced →
// consuming → playing. Every failure is contained here: a missed remote
// track degrades to that participant appearing silent or blank, never to
// a session fault. Cleanup is the only caller that closes the resulting
// consumer, apart from the participant-left path.
func (s *Session) consumeProducer(ctx context.Context, producerID string) {
	log := s.log.With(zap.String("producer_id", producerID))

	s.mu.Lock()
	if !s.started || s.recv == nil {
		s.mu.Unlock()
		return
	}
	if _, exists := s.consumers[producerID]; exists {
		s.mu.Unlock()
		return
	}
	recv := s.recv
	roomID := s.roomID
	s.mu.Unlock()

	var resp signal.ConsumeResponse
	err := s.ch.Request(ctx, signal.MethodConsume, signal.ConsumeRequest{
		RoomID:          roomID,
		ProducerID:      producerID,
		RTPCapabilities: s.device.RTPCapabilities(),
	}, &resp)
	if err != nil {
		log.Warn("consume request failed, skipping remote track", zap.Error(err))
		return
	}
	if resp.Error != "" || resp.ID == "" {
		log.Warn("consume rejected, skipping remote track", zap.String("error", resp.Error))
		return
	}

	consumer, err := recv.Consume(ctx, media.ConsumerOptions{
		ID:            resp.ID,
		ProducerID:    resp.ProducerID,
		Kind:          resp.Kind,
		RTPParameters: resp.RTPParameters,
	})
	if err != nil {
		log.Warn("consumer creation failed, skipping remote track", zap.Error(err))
		return
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		consumer.Close()
		return
	}
	s.consumers[producerID] = consumer
	s.owners[producerID] = resp.SessionID
	s.mu.Unlock()

	// Audio self-attaches to an always-playing output; video defers DOM
	// attachment to the render bridge, which resolves mount order.
	switch consumer.Kind() {
	case media.KindAudio:
		s.bridge.PlayAudio(consumer.Stream())
	case media.KindVideo:
		s.bridge.StreamReady(resp.SessionID, consumer.Stream())
	}

	// Consumers start paused server-side; resume only once the local side
	// is wired up to render.
	err = s.ch.Notify(signal.MethodResumeConsumer, signal.ResumeConsumerRequest{
		RoomID:     roomID,
		ConsumerID: consumer.ID(),
	})
	if err != nil {
		log.Warn("resume-consumer failed", zap.Error(err))
	}

	log.Info("consumer playing",
		zap.String("consumer_id", consumer.ID()),
		zap.String("kind", string(consumer.Kind())),
		zap.String("owner_session_id", resp.SessionID))
}

// closeParticipant tears down every consumer owned by the departed
// participant so remote departures do not leak consumers until full
// session teardown.
func (s *Session) closeParticipant(sessionID string) {
	s.mu.Lock()
	var closing []media.Consumer
	for producerID, owner := range s.owners {
		if owner != sessionID {
			continue
		}
		if consumer, ok := s.consumers[producerID]; ok {
			closing = append(closing, consumer)
			delete(s.consumers, producerID)
		}
		delete(s.owners, producerID)
	}
	s.mu.Unlock()

	for _, consumer := range closing {
		if err := consumer.Close(); err != nil {
			s.log.Warn("closing consumer for departed participant",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	s.bridge.ForgetStream(sessionID)
	if len(closing) > 0 {
		s.log.Info("closed consumers for departed participant",
			zap.String("session_id", sessionID), zap.Int("count", len(closing)))
	}
}

// ConsumerCount reports the number of live consumers.
func (s *Session) ConsumerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.consumers)
}
