package signal

import (
	"github.com/voxmeet/sfuclient/internal/media"
)

// Request/response methods. Every request suspends the caller until the
// server acknowledges; responses that can fail inline carry an Error field
// instead of a transport-level fault.
const (
	MethodGetRTPCapabilities = "get-rtp-capabilities"
	MethodJoinRoom           = "join-mediasoup-room"
	MethodCreateTransport    = "create-webrtc-transport"
	MethodConnectTransport   = "connect-transport"
	MethodProduce            = "produce"
	MethodConsume            = "consume"
	MethodResumeConsumer     = "resume-consumer"
)

// Server-pushed notifications.
const (
	MethodNewProducer     = "new-producer"
	MethodParticipantLeft = "participant-left"
)

// Host-control commands, fire-and-forget.
const (
	MethodToggleRemoteAudio       = "toggle-remote-audio"
	MethodToggleRemoteVideo       = "toggle-remote-video"
	MethodRemoveParticipant       = "remove-participant"
	MethodMuteAllParticipants     = "mute-all-participants"
	MethodUnmuteAllParticipants   = "unmute-all-participants"
	MethodDisableAllCameras       = "disable-all-cameras"
	MethodEnableAllCameras        = "enable-all-cameras"
	MethodDisableAllScreenSharing = "disable-all-screen-sharing"
	MethodEnableAllScreenSharing  = "enable-all-screen-sharing"
)

type GetRTPCapabilitiesRequest struct {
	RoomID string `json:"roomId"`
}

type GetRTPCapabilitiesResponse struct {
	RTPCapabilities media.RTPCapabilities `json:"rtpCapabilities"`
}

type JoinRoomRequest struct {
	RoomID          string                `json:"roomId"`
	DisplayName     string                `json:"displayName,omitempty"`
	RTPCapabilities media.RTPCapabilities `json:"rtpCapabilities"`
}

type JoinRoomResponse struct {
	ExistingProducers []string `json:"existingProducers"`
}

type CreateTransportRequest struct {
	RoomID    string          `json:"roomId"`
	Direction media.Direction `json:"direction"`
}

type CreateTransportResponse struct {
	Params media.TransportOptions `json:"params"`
}

type ConnectTransportRequest struct {
	RoomID         string               `json:"roomId"`
	TransportID    string               `json:"transportId"`
	DTLSParameters media.DTLSParameters `json:"dtlsParameters"`
}

type ConnectTransportResponse struct {
	Error string `json:"error,omitempty"`
}

type ProduceRequest struct {
	RoomID        string                `json:"roomId"`
	TransportID   string                `json:"transportId"`
	Kind          media.Kind            `json:"kind"`
	RTPParameters media.RTPParameters   `json:"rtpParameters"`
	CodecOptions  *ProducerCodecOptions `json:"codecOptions,omitempty"`
}

// ProducerCodecOptions tunes the server-side producer; only audio carries
// any today.
type ProducerCodecOptions struct {
	OpusDTX    bool `json:"opusDtx,omitempty"`
	OpusStereo bool `json:"opusStereo,omitempty"`
}

type ProduceResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

type ConsumeRequest struct {
	RoomID          string                `json:"roomId"`
	ProducerID      string                `json:"producerId"`
	RTPCapabilities media.RTPCapabilities `json:"rtpCapabilities"`
}

// ConsumeResponse carries the consumer parameters plus the session id of
// the participant owning the producer, which keys the render registry.
type ConsumeResponse struct {
	ID            string              `json:"id"`
	ProducerID    string              `json:"producerId"`
	SessionID     string              `json:"sessionId"`
	Kind          media.Kind          `json:"kind"`
	RTPParameters media.RTPParameters `json:"rtpParameters"`
	Error         string              `json:"error,omitempty"`
}

type ResumeConsumerRequest struct {
	RoomID     string `json:"roomId"`
	ConsumerID string `json:"consumerId"`
}

type NewProducerNotification struct {
	ProducerID string `json:"producerId"`
}

type ParticipantLeftNotification struct {
	SessionID string `json:"sessionId"`
}

// Host-control payloads. Authorization is the server's concern; the client
// only assembles well-formed commands.

type ToggleRemoteAudioCommand struct {
	RoomID       string `json:"roomId"`
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
	Force        string `json:"force"` // "mute" or "unmute"
}

type ToggleRemoteVideoCommand struct {
	RoomID       string `json:"roomId"`
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
	Force        string `json:"force"` // "pause" or "unpause"
}

type RemoveParticipantCommand struct {
	RoomID       string `json:"roomId"`
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
}

// RoomCommand is the shared payload of the all-participant commands.
type RoomCommand struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}
