// Package sdpshape rewrites session descriptions into the form every
// client in a call can negotiate: no VP9 advertisement and exactly one
// ssrc-audio-level extension per audio section.
package sdpshape

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// BlockedVideoCodec is stripped from every video section.
const BlockedVideoCodec = "VP9"

// AudioLevelURI must be present once in every audio section.
const AudioLevelURI = sdp.AudioLevelURI

var ErrEmptyDescription = errors.New("empty session description")

// Shape returns raw unchanged when it already conforms, so applying it
// twice yields the same text. Input that does not parse is returned as is
// together with the error.
func Shape(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return raw, ErrEmptyDescription
	}
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return raw, fmt.Errorf("parse sdp: %w", err)
	}

	changed := false
	for _, md := range desc.MediaDescriptions {
		switch md.MediaName.Media {
		case "video":
			changed = stripCodec(md, BlockedVideoCodec) || changed
		case "audio":
			changed = ensureExtension(md, AudioLevelURI) || changed
		}
	}
	if !changed {
		return raw, nil
	}

	out, err := desc.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal sdp: %w", err)
	}
	return string(out), nil
}

// stripCodec drops the codec's payload types from the m-line together with
// their rtpmap, fmtp and rtcp-fb lines, and any rtx payload bound to them.
// A section advertising nothing else is left alone.
func stripCodec(md *sdp.MediaDescription, codec string) bool {
	blocked := map[string]bool{}
	for _, a := range md.Attributes {
		if a.Key != "rtpmap" {
			continue
		}
		pt, rest := splitPayload(a.Value)
		name, _, _ := strings.Cut(rest, "/")
		if strings.EqualFold(name, codec) {
			blocked[pt] = true
		}
	}
	if len(blocked) == 0 {
		return false
	}
	for _, a := range md.Attributes {
		if a.Key != "fmtp" {
			continue
		}
		pt, params := splitPayload(a.Value)
		if apt, ok := fmtpParam(params, "apt"); ok && blocked[apt] {
			blocked[pt] = true
		}
	}

	formats := make([]string, 0, len(md.MediaName.Formats))
	for _, f := range md.MediaName.Formats {
		if !blocked[f] {
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return false
	}
	md.MediaName.Formats = formats

	attrs := md.Attributes[:0]
	for _, a := range md.Attributes {
		switch a.Key {
		case "rtpmap", "fmtp", "rtcp-fb":
			if pt, _ := splitPayload(a.Value); blocked[pt] {
				continue
			}
		}
		attrs = append(attrs, a)
	}
	md.Attributes = attrs
	return true
}

// ensureExtension keeps the first extmap carrying uri, drops repeats and
// inserts one on a free id when none exists.
func ensureExtension(md *sdp.MediaDescription, uri string) bool {
	used := map[int]bool{}
	found := false
	changed := false
	lastExt := -1

	attrs := md.Attributes[:0]
	for _, a := range md.Attributes {
		if a.Key == "extmap" {
			id, extURI, ok := parseExtmap(a.Value)
			if ok && extURI == uri {
				if found {
					changed = true
					continue
				}
				found = true
			}
			if ok {
				used[id] = true
			}
			lastExt = len(attrs)
		}
		attrs = append(attrs, a)
	}
	md.Attributes = attrs
	if found {
		return changed
	}

	id := 1
	for used[id] {
		id++
	}
	ext := sdp.NewAttribute("extmap", strconv.Itoa(id)+" "+uri)

	pos := lastExt + 1
	md.Attributes = append(md.Attributes, sdp.Attribute{})
	copy(md.Attributes[pos+1:], md.Attributes[pos:])
	md.Attributes[pos] = ext
	return true
}

func splitPayload(v string) (pt, rest string) {
	pt, rest, _ = strings.Cut(strings.TrimSpace(v), " ")
	return pt, strings.TrimSpace(rest)
}

func fmtpParam(params, key string) (string, bool) {
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if ok && strings.EqualFold(k, key) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// parseExtmap reads "<id>[/<direction>] <uri> [attributes]".
func parseExtmap(v string) (int, string, bool) {
	fields := strings.Fields(v)
	if len(fields) < 2 {
		return 0, "", false
	}
	idStr, _, _ := strings.Cut(fields[0], "/")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, "", false
	}
	return id, fields[1], true
}
