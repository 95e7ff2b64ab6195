package sdpshape

import (
	"errors"
	"strings"
	"testing"
)

func sdpLines(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

var sessionHeader = []string{
	"v=0",
	"o=- 4611731400430051336 2 IN IP4 127.0.0.1",
	"s=-",
	"t=0 0",
	"a=group:BUNDLE 0 1",
}

func browserOffer() string {
	lines := append([]string{}, sessionHeader...)
	lines = append(lines,
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"c=IN IP4 0.0.0.0",
		"a=mid:0",
		"a=extmap:3 urn:ietf:params:rtp-hdrext:sdes:mid",
		"a=sendrecv",
		"a=rtcp-mux",
		"a=rtpmap:111 opus/48000/2",
		"a=fmtp:111 minptime=10;useinbandfec=1",
		"m=video 9 UDP/TLS/RTP/SAVPF 96 97 98 99",
		"c=IN IP4 0.0.0.0",
		"a=mid:1",
		"a=sendrecv",
		"a=rtcp-mux",
		"a=rtpmap:96 VP8/90000",
		"a=rtcp-fb:96 nack",
		"a=rtcp-fb:96 ccm fir",
		"a=rtpmap:97 rtx/90000",
		"a=fmtp:97 apt=96",
		"a=rtpmap:98 VP9/90000",
		"a=rtcp-fb:98 ccm fir",
		"a=rtcp-fb:98 nack",
		"a=fmtp:98 profile-id=0",
		"a=rtpmap:99 rtx/90000",
		"a=fmtp:99 apt=98",
	)
	return sdpLines(lines...)
}

func TestShapeStripsBlockedCodec(t *testing.T) {
	got, err := Shape(browserOffer())
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if strings.Contains(got, "VP9") {
		t.Errorf("Shape() kept VP9:\n%s", got)
	}
	for _, gone := range []string{"a=rtcp-fb:98", "a=fmtp:98", "a=rtpmap:99", "a=fmtp:99"} {
		if strings.Contains(got, gone) {
			t.Errorf("Shape() kept %q", gone)
		}
	}
	if !strings.Contains(got, "m=video 9 UDP/TLS/RTP/SAVPF 96 97\r\n") {
		t.Errorf("Shape() video m-line not reduced:\n%s", got)
	}
	for _, kept := range []string{"a=rtpmap:96 VP8/90000", "a=rtcp-fb:96 ccm fir", "a=fmtp:97 apt=96"} {
		if !strings.Contains(got, kept) {
			t.Errorf("Shape() dropped %q", kept)
		}
	}
}

func TestShapeInsertsAudioLevelOnFreeID(t *testing.T) {
	got, err := Shape(browserOffer())
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if n := strings.Count(got, AudioLevelURI); n != 1 {
		t.Fatalf("audio level extension count = %d, want 1", n)
	}
	if !strings.Contains(got, "a=extmap:1 "+AudioLevelURI) {
		t.Errorf("Shape() should use the first free id:\n%s", got)
	}
}

func TestShapeKeepsSingleExistingExtension(t *testing.T) {
	lines := append([]string{}, sessionHeader[:4]...)
	lines = append(lines,
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"c=IN IP4 0.0.0.0",
		"a=extmap:1 "+AudioLevelURI,
		"a=rtpmap:111 opus/48000/2",
	)
	in := sdpLines(lines...)
	got, err := Shape(in)
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if got != in {
		t.Errorf("Shape() changed conforming input:\n got %q\nwant %q", got, in)
	}
}

func TestShapeRemovesDuplicateExtension(t *testing.T) {
	lines := append([]string{}, sessionHeader[:4]...)
	lines = append(lines,
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"c=IN IP4 0.0.0.0",
		"a=extmap:1 "+AudioLevelURI,
		"a=extmap:5 "+AudioLevelURI,
		"a=rtpmap:111 opus/48000/2",
	)
	got, err := Shape(sdpLines(lines...))
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if n := strings.Count(got, AudioLevelURI); n != 1 {
		t.Errorf("audio level extension count = %d, want 1", n)
	}
	if !strings.Contains(got, "a=extmap:1 "+AudioLevelURI) {
		t.Errorf("Shape() should keep the first occurrence:\n%s", got)
	}
}

func TestShapeEveryAudioSection(t *testing.T) {
	lines := append([]string{}, sessionHeader[:4]...)
	for _, mid := range []string{"0", "1"} {
		lines = append(lines,
			"m=audio 9 UDP/TLS/RTP/SAVPF 111",
			"c=IN IP4 0.0.0.0",
			"a=mid:"+mid,
			"a=rtpmap:111 opus/48000/2",
		)
	}
	got, err := Shape(sdpLines(lines...))
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if n := strings.Count(got, AudioLevelURI); n != 2 {
		t.Errorf("audio level extension count = %d, want 2", n)
	}
}

func TestShapeLeavesSoleCodecSection(t *testing.T) {
	lines := append([]string{}, sessionHeader[:4]...)
	lines = append(lines,
		"m=video 9 UDP/TLS/RTP/SAVPF 98",
		"c=IN IP4 0.0.0.0",
		"a=rtpmap:98 VP9/90000",
	)
	in := sdpLines(lines...)
	got, err := Shape(in)
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if got != in {
		t.Errorf("Shape() rewrote a section it cannot reduce:\n%s", got)
	}
}

func TestShapeIdempotent(t *testing.T) {
	inputs := map[string]string{
		"browser offer": browserOffer(),
		"audio only": sdpLines(append(append([]string{}, sessionHeader[:4]...),
			"m=audio 9 UDP/TLS/RTP/SAVPF 0",
			"c=IN IP4 0.0.0.0",
			"a=rtpmap:0 PCMU/8000",
		)...),
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			once, err := Shape(in)
			if err != nil {
				t.Fatalf("Shape() error = %v", err)
			}
			twice, err := Shape(once)
			if err != nil {
				t.Fatalf("Shape(Shape()) error = %v", err)
			}
			if once != twice {
				t.Errorf("Shape not idempotent:\n once %q\ntwice %q", once, twice)
			}
		})
	}
}

func TestShapeRejectsInvalid(t *testing.T) {
	if _, err := Shape("  "); !errors.Is(err, ErrEmptyDescription) {
		t.Errorf("Shape(blank) error = %v, want ErrEmptyDescription", err)
	}
	if got, err := Shape("this is not sdp"); err == nil || got != "this is not sdp" {
		t.Errorf("Shape(garbage) = %q, %v, want input back with an error", got, err)
	}
}
