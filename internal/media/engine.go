package media

import (
	"context"
	"errors"
)

var (
	// ErrNotLoaded is returned when a transport is requested before the
	// device has negotiated capabilities with the router.
	ErrNotLoaded = errors.New("media: device capabilities not loaded")

	// ErrAlreadyLoaded is returned on a second Load of the same device.
	ErrAlreadyLoaded = errors.New("media: device already loaded")

	// ErrTransportClosed is returned by operations on a closed transport.
	ErrTransportClosed = errors.New("media: transport closed")
)

// Track is a locally owned media track, typically backed by a capture
// device. Closing a track releases the underlying device.
type Track interface {
	ID() string
	Kind() Kind
	Close() error
}

// TransportHooks bridge a transport's lifecycle events to the signaling
// channel. OnConnect fires exactly once per transport, before the first
// produce or consume call on that transport resolves; its error rejects
// the transport. OnProduce fires per local producer and must return the
// server-assigned producer id.
type TransportHooks struct {
	OnConnect func(ctx context.Context, dtls DTLSParameters) error
	OnProduce func(ctx context.Context, kind Kind, params RTPParameters) (string, error)
}

// Device negotiates codec capabilities and manufactures transports.
type Device interface {
	// Load intersects the router's capabilities with the local codec set.
	// It must be called exactly once, before any transport is created.
	Load(routerCaps RTPCapabilities) error
	Loaded() bool
	// RTPCapabilities returns the negotiated local capability set.
	RTPCapabilities() RTPCapabilities

	CreateSendTransport(opts TransportOptions, hooks TransportHooks) (SendTransport, error)
	CreateRecvTransport(opts TransportOptions, hooks TransportHooks) (RecvTransport, error)
}

// SendTransport publishes local tracks.
type SendTransport interface {
	ID() string
	// Produce publishes track on this transport. The call does not resolve
	// until the transport is connected and the remote side has acknowledged
	// the producer with an id.
	Produce(ctx context.Context, track Track) (Producer, error)
	Close() error
}

// RecvTransport subscribes to remote tracks.
type RecvTransport interface {
	ID() string
	// Consume instantiates a consumer from server-assigned parameters.
	Consume(ctx context.Context, opts ConsumerOptions) (Consumer, error)
	Close() error
}

// Producer is a locally published track. Pause and Resume flip the paused
// state without touching the underlying device track; Close releases the
// producer but not the track (the track's owner stops it separately).
type Producer interface {
	ID() string
	Kind() Kind
	Pause()
	Resume()
	Paused() bool
	Close() error
}

// Consumer is a subscription to one remote producer's track.
type Consumer interface {
	ID() string
	ProducerID() string
	Kind() Kind
	// Stream returns the renderable stream carrying the remote track.
	Stream() *Stream
	Close() error
}
