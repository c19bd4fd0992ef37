package pionmedia

import (
	"github.com/pion/webrtc/v4"

	"github.com/voxmeet/sfuclient/internal/media"
)

// rtpParameters converts a sender's negotiated parameters to the wire
// shape the produce round-trip carries.
func rtpParameters(p webrtc.RTPSendParameters) media.RTPParameters {
	var out media.RTPParameters

	for _, codec := range p.Codecs {
		c := media.RTPCodecParameters{
			MimeType:    codec.MimeType,
			PayloadType: uint8(codec.PayloadType),
			ClockRate:   codec.ClockRate,
			Channels:    codec.Channels,
		}
		if codec.SDPFmtpLine != "" {
			c.Parameters = map[string]any{"sdpFmtpLine": codec.SDPFmtpLine}
		}
		for _, fb := range codec.RTCPFeedback {
			c.RTCPFeedback = append(c.RTCPFeedback, media.RTCPFeedback{
				Type:      fb.Type,
				Parameter: fb.Parameter,
			})
		}
		out.Codecs = append(out.Codecs, c)
	}

	for _, ext := range p.HeaderExtensions {
		out.HeaderExtensions = append(out.HeaderExtensions, media.RTPHeaderExtensionParameters{
			URI: ext.URI,
			ID:  ext.ID,
		})
	}

	for _, enc := range p.Encodings {
		out.Encodings = append(out.Encodings, media.RTPEncodingParameters{
			SSRC: uint32(enc.SSRC),
			RID:  enc.RID,
		})
	}

	return out
}
