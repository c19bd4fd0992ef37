package media

// Wire-level parameter types exchanged with the SFU over the signaling
// channel. Field names mirror the server's JSON so payloads round-trip
// without translation layers.

// Kind identifies a media track type.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Direction identifies which way a transport carries media.
type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

// RTPCapabilities describes the codecs and header extensions one side of
// the negotiation supports. The router's capabilities constrain what the
// local device may offer.
type RTPCapabilities struct {
	Codecs           []RTPCodecCapability `json:"codecs,omitempty"`
	HeaderExtensions []RTPHeaderExtension `json:"headerExtensions,omitempty"`
}

type RTPCodecCapability struct {
	Kind                 Kind           `json:"kind"`
	MimeType             string         `json:"mimeType"`
	PreferredPayloadType uint8          `json:"preferredPayloadType,omitempty"`
	ClockRate            uint32         `json:"clockRate"`
	Channels             uint16         `json:"channels,omitempty"`
	Parameters           map[string]any `json:"parameters,omitempty"`
	RTCPFeedback         []RTCPFeedback `json:"rtcpFeedback,omitempty"`
}

type RTPHeaderExtension struct {
	Kind             Kind   `json:"kind"`
	URI              string `json:"uri"`
	PreferredID      int    `json:"preferredId"`
	PreferredEncrypt bool   `json:"preferredEncrypt,omitempty"`
	Direction        string `json:"direction,omitempty"`
}

type RTCPFeedback struct {
	Type      string `json:"type"`
	Parameter string `json:"parameter,omitempty"`
}

// RTPParameters describes one produced or consumed stream.
type RTPParameters struct {
	MID              string                  `json:"mid,omitempty"`
	Codecs           []RTPCodecParameters    `json:"codecs"`
	HeaderExtensions []RTPHeaderExtensionParameters `json:"headerExtensions,omitempty"`
	Encodings        []RTPEncodingParameters `json:"encodings,omitempty"`
	RTCP             *RTCPParameters         `json:"rtcp,omitempty"`
}

type RTPCodecParameters struct {
	MimeType     string         `json:"mimeType"`
	PayloadType  uint8          `json:"payloadType"`
	ClockRate    uint32         `json:"clockRate"`
	Channels     uint16         `json:"channels,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	RTCPFeedback []RTCPFeedback `json:"rtcpFeedback,omitempty"`
}

type RTPHeaderExtensionParameters struct {
	URI     string `json:"uri"`
	ID      int    `json:"id"`
	Encrypt bool   `json:"encrypt,omitempty"`
}

type RTPEncodingParameters struct {
	SSRC        uint32 `json:"ssrc,omitempty"`
	RID         string `json:"rid,omitempty"`
	MaxBitrate  uint32 `json:"maxBitrate,omitempty"`
	DTX         bool   `json:"dtx,omitempty"`
	ScalabilityMode string `json:"scalabilityMode,omitempty"`
}

type RTCPParameters struct {
	CNAME       string `json:"cname,omitempty"`
	ReducedSize bool   `json:"reducedSize,omitempty"`
}

// ICEParameters and ICECandidate come back from create-webrtc-transport.
type ICEParameters struct {
	UsernameFragment string `json:"usernameFragment"`
	Password         string `json:"password"`
	ICELite          bool   `json:"iceLite,omitempty"`
}

type ICECandidate struct {
	Foundation string `json:"foundation"`
	Priority   uint32 `json:"priority"`
	IP         string `json:"ip"`
	Protocol   string `json:"protocol"`
	Port       uint16 `json:"port"`
	Type       string `json:"type"`
	TCPType    string `json:"tcpType,omitempty"`
}

// DTLSParameters carry the fingerprints exchanged during connect-transport.
type DTLSParameters struct {
	Role         string            `json:"role,omitempty"`
	Fingerprints []DTLSFingerprint `json:"fingerprints"`
}

type DTLSFingerprint struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

// TransportOptions is the parameter bundle the server returns for a newly
// created transport; the local side builds its half of the pipe from it.
type TransportOptions struct {
	ID             string         `json:"id"`
	ICEParameters  ICEParameters  `json:"iceParameters"`
	ICECandidates  []ICECandidate `json:"iceCandidates"`
	DTLSParameters DTLSParameters `json:"dtlsParameters"`
}

// ConsumerOptions carries the server-assigned parameters needed to
// instantiate a consumer on the recv transport.
type ConsumerOptions struct {
	ID            string        `json:"id"`
	ProducerID    string        `json:"producerId"`
	Kind          Kind          `json:"kind"`
	RTPParameters RTPParameters `json:"rtpParameters"`
}
