package pionmedia

import (
	"strings"
	"testing"

	"github.com/pion/sdp/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxmeet/sfuclient/internal/media"
)

func serverTransportOptions() media.TransportOptions {
	return media.TransportOptions{
		ID: "t1",
		ICEParameters: media.ICEParameters{
			UsernameFragment: "frag",
			Password:         "secret",
			ICELite:          true,
		},
		ICECandidates: []media.ICECandidate{
			{Foundation: "udpcandidate", Priority: 1015, IP: "203.0.113.5", Protocol: "udp", Port: 40123, Type: "host"},
		},
		DTLSParameters: media.DTLSParameters{
			Role: "auto",
			Fingerprints: []media.DTLSFingerprint{
				{Algorithm: "sha-256", Value: "AA:BB:CC"},
			},
		},
	}
}

func parseSDP(t *testing.T, raw string) *sdp.SessionDescription {
	t.Helper()
	var parsed sdp.SessionDescription
	require.NoError(t, parsed.Unmarshal([]byte(raw)))
	return &parsed
}

func attrOf(t *testing.T, md *sdp.MediaDescription, key string) string {
	t.Helper()
	value, ok := md.Attribute(key)
	require.True(t, ok, "missing %s attribute", key)
	return value
}

func TestRemoteOfferCarriesServerParameters(t *testing.T) {
	opts := serverTransportOptions()
	sections := []media.ConsumerOptions{{
		ID:         "c1",
		ProducerID: "p1",
		Kind:       media.KindAudio,
		RTPParameters: media.RTPParameters{
			MID: "0",
			Codecs: []media.RTPCodecParameters{{
				MimeType:    "audio/opus",
				PayloadType: 100,
				ClockRate:   48000,
				Channels:    2,
			}},
			Encodings: []media.RTPEncodingParameters{{SSRC: 444222}},
			RTCP:      &media.RTCPParameters{CNAME: "remote-cname"},
		},
	}}

	raw, err := remoteOffer(opts, sections, 1)
	require.NoError(t, err)
	parsed := parseSDP(t, raw)

	group, ok := parsed.Attribute("group")
	require.True(t, ok)
	assert.Equal(t, "BUNDLE 0", group)
	_, lite := parsed.Attribute("ice-lite")
	assert.True(t, lite, "lite router must be announced")

	require.Len(t, parsed.MediaDescriptions, 1)
	section := parsed.MediaDescriptions[0]
	assert.Equal(t, "audio", section.MediaName.Media)
	assert.Equal(t, []string{"100"}, section.MediaName.Formats)
	assert.Equal(t, 40123, section.MediaName.Port.Value)

	assert.Equal(t, "frag", attrOf(t, section, "ice-ufrag"))
	assert.Equal(t, "secret", attrOf(t, section, "ice-pwd"))
	assert.Equal(t, "sha-256 AA:BB:CC", attrOf(t, section, "fingerprint"))
	assert.Equal(t, "actpass", attrOf(t, section, "setup"))
	assert.Contains(t, attrOf(t, section, "candidate"), "203.0.113.5 40123 typ host")
	assert.Equal(t, "100 opus/48000/2", attrOf(t, section, "rtpmap"))
	assert.Equal(t, "444222 cname:remote-cname", attrOf(t, section, "ssrc"))

	_, sendonly := section.Attribute("sendonly")
	assert.True(t, sendonly, "server sends, client receives")
}

func TestRemoteOfferGrowsWithConsumers(t *testing.T) {
	opts := serverTransportOptions()
	audio := media.ConsumerOptions{
		ID: "c1", Kind: media.KindAudio,
		RTPParameters: media.RTPParameters{
			MID:    "0",
			Codecs: []media.RTPCodecParameters{{MimeType: "audio/opus", PayloadType: 100, ClockRate: 48000, Channels: 2}},
		},
	}
	video := media.ConsumerOptions{
		ID: "c2", Kind: media.KindVideo,
		RTPParameters: media.RTPParameters{
			MID:    "1",
			Codecs: []media.RTPCodecParameters{{MimeType: "video/VP8", PayloadType: 101, ClockRate: 90000}},
		},
	}

	raw, err := remoteOffer(opts, []media.ConsumerOptions{audio, video}, 2)
	require.NoError(t, err)
	parsed := parseSDP(t, raw)

	group, _ := parsed.Attribute("group")
	assert.Equal(t, "BUNDLE 0 1", group)
	require.Len(t, parsed.MediaDescriptions, 2)
	assert.Equal(t, "video", parsed.MediaDescriptions[1].MediaName.Media)
	assert.Equal(t, "101 VP8/90000", attrOf(t, parsed.MediaDescriptions[1], "rtpmap"))
}

func TestRemoteAnswerMirrorsOffer(t *testing.T) {
	localOffer := strings.ReplaceAll(`v=0
o=- 123 1 IN IP4 0.0.0.0
s=-
t=0 0
a=group:BUNDLE 0 1
m=audio 9 UDP/TLS/RTP/SAVPF 111
c=IN IP4 0.0.0.0
a=mid:0
a=sendonly
a=rtpmap:111 opus/48000/2
m=video 9 UDP/TLS/RTP/SAVPF 96
c=IN IP4 0.0.0.0
a=mid:1
a=sendonly
a=rtpmap:96 VP8/90000
a=rtcp-fb:96 nack pli
`, "\n", "\r\n")

	var offer sdp.SessionDescription
	require.NoError(t, offer.Unmarshal([]byte(localOffer)))

	opts := serverTransportOptions()
	raw, err := remoteAnswer(&offer, opts, 1)
	require.NoError(t, err)
	parsed := parseSDP(t, raw)

	require.Len(t, parsed.MediaDescriptions, 2)
	group, _ := parsed.Attribute("group")
	assert.Equal(t, "BUNDLE 0 1", group)

	for i, section := range parsed.MediaDescriptions {
		assert.Equal(t, offer.MediaDescriptions[i].MediaName.Media, section.MediaName.Media)
		assert.Equal(t, offer.MediaDescriptions[i].MediaName.Formats, section.MediaName.Formats)
		assert.Equal(t, "frag", attrOf(t, section, "ice-ufrag"))
		assert.Equal(t, "secret", attrOf(t, section, "ice-pwd"))
		assert.Equal(t, "passive", attrOf(t, section, "setup"), "client stays the DTLS client")
		_, recvonly := section.Attribute("recvonly")
		assert.True(t, recvonly, "answer direction mirrors a sendonly offer")
	}

	assert.Equal(t, "0", attrOf(t, parsed.MediaDescriptions[0], "mid"))
	assert.Equal(t, "111 opus/48000/2", attrOf(t, parsed.MediaDescriptions[0], "rtpmap"))
	assert.Equal(t, "96 nack pli", attrOf(t, parsed.MediaDescriptions[1], "rtcp-fb"))
}

func TestRemoteAnswerRejectsSectionWithoutMid(t *testing.T) {
	localOffer := strings.ReplaceAll(`v=0
o=- 123 1 IN IP4 0.0.0.0
s=-
t=0 0
m=audio 9 UDP/TLS/RTP/SAVPF 111
c=IN IP4 0.0.0.0
a=sendonly
`, "\n", "\r\n")

	var offer sdp.SessionDescription
	require.NoError(t, offer.Unmarshal([]byte(localOffer)))

	_, err := remoteAnswer(&offer, serverTransportOptions(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no mid")
}
