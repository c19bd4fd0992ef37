package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voxmeet/sfuclient/internal/media"
	"github.com/voxmeet/sfuclient/internal/signal"
)

// openSendTransport requests send-transport parameters, builds the local
// transport and bridges its connect and produce events to the signaling
// channel. The engine guarantees connect completes before the first
// produce resolves.
func (s *Session) openSendTransport(ctx context.Context) error {
	var resp signal.CreateTransportResponse
	err := s.ch.Request(ctx, signal.MethodCreateTransport, signal.CreateTransportRequest{
		RoomID:    s.roomID,
		Direction: media.DirectionSend,
	}, &resp)
	if err != nil {
		return fmt.Errorf("create send transport: %w", err)
	}

	transport, err := s.device.CreateSendTransport(resp.Params, media.TransportHooks{
		OnConnect: s.connectHook(resp.Params.ID),
		OnProduce: s.produceHook(resp.Params.ID),
	})
	if err != nil {
		return fmt.Errorf("build send transport: %w", err)
	}

	s.mu.Lock()
	s.send = transport
	s.mu.Unlock()
	s.log.Info("send transport ready", zap.String("transport_id", transport.ID()))
	return nil
}

// openRecvTransport is the inbound counterpart; recv transports produce
// nothing, so only the connect event is bridged.
func (s *Session) openRecvTransport(ctx context.Context) error {
	var resp signal.CreateTransportResponse
	err := s.ch.Request(ctx, signal.MethodCreateTransport, signal.CreateTransportRequest{
		RoomID:    s.roomID,
		Direction: media.DirectionRecv,
	}, &resp)
	if err != nil {
		return fmt.Errorf("create recv transport: %w", err)
	}

	transport, err := s.device.CreateRecvTransport(resp.Params, media.TransportHooks{
		OnConnect: s.connectHook(resp.Params.ID),
	})
	if err != nil {
		return fmt.Errorf("build recv transport: %w", err)
	}

	s.mu.Lock()
	s.recv = transport
	s.mu.Unlock()
	s.log.Info("recv transport ready", zap.String("transport_id", transport.ID()))
	return nil
}

// connectHook performs the DTLS round-trip: local parameters go out, and
// the transport is not usable until the remote acknowledges.
func (s *Session) connectHook(transportID string) func(context.Context, media.DTLSParameters) error {
	return func(ctx context.Context, dtls media.DTLSParameters) error {
		var resp signal.ConnectTransportResponse
		err := s.ch.Request(ctx, signal.MethodConnectTransport, signal.ConnectTransportRequest{
			RoomID:         s.roomID,
			TransportID:    transportID,
			DTLSParameters: dtls,
		}, &resp)
		if err != nil {
			return classify(ErrConnect, "connect transport", err)
		}
		if resp.Error != "" {
			return classify(ErrConnect, "connect transport", fmt.Errorf("%s", resp.Error))
		}
		return nil
	}
}

// produceHook announces a new local producer and returns the id the
// remote side assigned to it.
func (s *Session) produceHook(transportID string) func(context.Context, media.Kind, media.RTPParameters) (string, error) {
	return func(ctx context.Context, kind media.Kind, params media.RTPParameters) (string, error) {
		var codecOpts *signal.ProducerCodecOptions
		if kind == media.KindAudio {
			s.mu.Lock()
			codecOpts = &signal.ProducerCodecOptions{OpusDTX: s.opusDTX}
			s.mu.Unlock()
		}

		var resp signal.ProduceResponse
		err := s.ch.Request(ctx, signal.MethodProduce, signal.ProduceRequest{
			RoomID:        s.roomID,
			TransportID:   transportID,
			Kind:          kind,
			RTPParameters: params,
			CodecOptions:  codecOpts,
		}, &resp)
		if err != nil {
			return "", classify(ErrProduce, "announce producer", err)
		}
		if resp.Error != "" {
			return "", classify(ErrProduce, "announce producer", fmt.Errorf("%s", resp.Error))
		}
		return resp.ID, nil
	}
}
