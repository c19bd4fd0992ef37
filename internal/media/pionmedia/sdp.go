package pionmedia

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pion/sdp/v3"

	"github.com/voxmeet/sfuclient/internal/media"
)

// The server never exchanges SDP; it hands out ICE credentials,
// candidates and DTLS fingerprints as plain parameters. The builders
// below synthesize the remote session description from those parameters
// so the PeerConnection negotiates against a real endpoint.

func newSessionDescription(version uint64) *sdp.SessionDescription {
	return &sdp.SessionDescription{
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      10000,
			SessionVersion: version,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "0.0.0.0",
		},
		SessionName:      "-",
		TimeDescriptions: []sdp.TimeDescription{{}},
	}
}

func finishSession(desc *sdp.SessionDescription, opts media.TransportOptions, mids []string) {
	if opts.ICEParameters.ICELite {
		desc.Attributes = append(desc.Attributes, sdp.NewPropertyAttribute("ice-lite"))
	}
	desc.Attributes = append(desc.Attributes,
		sdp.NewAttribute("group", "BUNDLE "+strings.Join(mids, " ")),
		sdp.NewAttribute("msid-semantic", " WMS *"),
	)
}

// transportAttributes renders the per-section ICE and DTLS lines shared
// by every synthesized description.
func transportAttributes(opts media.TransportOptions, setup string) []sdp.Attribute {
	attrs := []sdp.Attribute{
		sdp.NewAttribute("ice-ufrag", opts.ICEParameters.UsernameFragment),
		sdp.NewAttribute("ice-pwd", opts.ICEParameters.Password),
		sdp.NewAttribute("setup", setup),
		sdp.NewPropertyAttribute("rtcp-mux"),
		sdp.NewPropertyAttribute("rtcp-rsize"),
	}
	for _, fp := range opts.DTLSParameters.Fingerprints {
		attrs = append(attrs, sdp.NewAttribute("fingerprint", fp.Algorithm+" "+fp.Value))
	}
	for _, c := range opts.ICECandidates {
		attrs = append(attrs, sdp.NewAttribute("candidate", candidateLine(c)))
	}
	return append(attrs, sdp.NewPropertyAttribute("end-of-candidates"))
}

func candidateLine(c media.ICECandidate) string {
	line := fmt.Sprintf("%s 1 %s %d %s %d typ %s",
		c.Foundation, c.Protocol, c.Priority, c.IP, c.Port, c.Type)
	if c.TCPType != "" {
		line += " tcptype " + c.TCPType
	}
	return line
}

func mediaPort(opts media.TransportOptions) int {
	if len(opts.ICECandidates) > 0 {
		return int(opts.ICECandidates[0].Port)
	}
	return 9
}

func connectionOf(opts media.TransportOptions) *sdp.ConnectionInformation {
	addr := "127.0.0.1"
	if len(opts.ICECandidates) > 0 {
		addr = opts.ICECandidates[0].IP
	}
	return &sdp.ConnectionInformation{
		NetworkType: "IN",
		AddressType: "IP4",
		Address:     &sdp.Address{Address: addr},
	}
}

// remoteAnswer mirrors every locally offered section back as the server
// side of a send-transport negotiation: same mids, formats and codec
// attributes, with the server's connection parameters. The server is the
// DTLS server, so the answer declares setup:passive.
func remoteAnswer(local *sdp.SessionDescription, opts media.TransportOptions, version uint64) (string, error) {
	desc := newSessionDescription(version)

	var mids []string
	for _, offered := range local.MediaDescriptions {
		mid, ok := offered.Attribute("mid")
		if !ok {
			return "", fmt.Errorf("pionmedia: offered %s section has no mid", offered.MediaName.Media)
		}
		mids = append(mids, mid)

		section := &sdp.MediaDescription{
			MediaName: sdp.MediaName{
				Media:   offered.MediaName.Media,
				Port:    sdp.RangedPort{Value: mediaPort(opts)},
				Protos:  offered.MediaName.Protos,
				Formats: offered.MediaName.Formats,
			},
			ConnectionInformation: connectionOf(opts),
		}
		section.Attributes = append(section.Attributes,
			sdp.NewAttribute("mid", mid),
			sdp.NewPropertyAttribute("recvonly"),
		)
		section.Attributes = append(section.Attributes, transportAttributes(opts, "passive")...)
		for _, attr := range offered.Attributes {
			switch attr.Key {
			case "rtpmap", "fmtp", "rtcp-fb", "extmap":
				section.Attributes = append(section.Attributes, attr)
			}
		}
		desc.MediaDescriptions = append(desc.MediaDescriptions, section)
	}

	finishSession(desc, opts, mids)
	raw, err := desc.Marshal()
	if err != nil {
		return "", fmt.Errorf("pionmedia: marshal remote answer: %w", err)
	}
	return string(raw), nil
}

// remoteOffer renders the server's offer for the recv transport: one
// sendonly section per consumer, described by the server-assigned RTP
// parameters.
func remoteOffer(opts media.TransportOptions, sections []media.ConsumerOptions, version uint64) (string, error) {
	desc := newSessionDescription(version)

	var mids []string
	for i, c := range sections {
		mid := c.RTPParameters.MID
		if mid == "" {
			mid = fmt.Sprintf("%d", i)
		}
		mids = append(mids, mid)

		var formats []string
		for _, codec := range c.RTPParameters.Codecs {
			formats = append(formats, fmt.Sprintf("%d", codec.PayloadType))
		}

		section := &sdp.MediaDescription{
			MediaName: sdp.MediaName{
				Media:   string(c.Kind),
				Port:    sdp.RangedPort{Value: mediaPort(opts)},
				Protos:  []string{"UDP", "TLS", "RTP", "SAVPF"},
				Formats: formats,
			},
			ConnectionInformation: connectionOf(opts),
		}
		section.Attributes = append(section.Attributes,
			sdp.NewAttribute("mid", mid),
			sdp.NewPropertyAttribute("sendonly"),
		)
		section.Attributes = append(section.Attributes, transportAttributes(opts, "actpass")...)

		for _, codec := range c.RTPParameters.Codecs {
			section.Attributes = append(section.Attributes,
				sdp.NewAttribute("rtpmap", rtpmapLine(codec)))
			if params := fmtpParams(codec); params != "" {
				section.Attributes = append(section.Attributes,
					sdp.NewAttribute("fmtp", fmt.Sprintf("%d %s", codec.PayloadType, params)))
			}
			for _, fb := range codec.RTCPFeedback {
				value := fmt.Sprintf("%d %s", codec.PayloadType, fb.Type)
				if fb.Parameter != "" {
					value += " " + fb.Parameter
				}
				section.Attributes = append(section.Attributes, sdp.NewAttribute("rtcp-fb", value))
			}
		}
		for _, ext := range c.RTPParameters.HeaderExtensions {
			section.Attributes = append(section.Attributes,
				sdp.NewAttribute("extmap", fmt.Sprintf("%d %s", ext.ID, ext.URI)))
		}

		cname := "-"
		if c.RTPParameters.RTCP != nil && c.RTPParameters.RTCP.CNAME != "" {
			cname = c.RTPParameters.RTCP.CNAME
		}
		for _, enc := range c.RTPParameters.Encodings {
			if enc.SSRC != 0 {
				section.Attributes = append(section.Attributes,
					sdp.NewAttribute("ssrc", fmt.Sprintf("%d cname:%s", enc.SSRC, cname)))
			}
		}

		desc.MediaDescriptions = append(desc.MediaDescriptions, section)
	}

	finishSession(desc, opts, mids)
	raw, err := desc.Marshal()
	if err != nil {
		return "", fmt.Errorf("pionmedia: marshal remote offer: %w", err)
	}
	return string(raw), nil
}

func rtpmapLine(codec media.RTPCodecParameters) string {
	name := codec.MimeType
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	line := fmt.Sprintf("%d %s/%d", codec.PayloadType, name, codec.ClockRate)
	if codec.Channels > 1 {
		line += fmt.Sprintf("/%d", codec.Channels)
	}
	return line
}

func fmtpParams(codec media.RTPCodecParameters) string {
	if raw, ok := codec.Parameters["sdpFmtpLine"].(string); ok {
		return raw
	}
	var kv []string
	for k, v := range codec.Parameters {
		kv = append(kv, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(kv)
	return strings.Join(kv, ";")
}
