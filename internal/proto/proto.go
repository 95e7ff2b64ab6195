// Package proto is the JSON framing shared by the call agent and the relay.
package proto

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/peercall/internal/domain"
	"github.com/pion/webrtc/v4"
)

type Event string

const (
	EventVideoOffer     Event = "video-offer"
	EventVideoAnswer    Event = "video-answer"
	EventICECandidate   Event = "ice-candidate"
	EventCallRejected   Event = "call-rejected"
	EventCallEnded      Event = "call-ended"
	EventCallBusy       Event = "call-busy"
	EventDeliveryFailed Event = "delivery-failed"
	EventPing           Event = "ping"
	EventPong           Event = "pong"
)

// Routed reports whether the relay forwards the event to the addressee.
func (e Event) Routed() bool {
	switch e {
	case EventVideoOffer, EventVideoAnswer, EventICECandidate,
		EventCallRejected, EventCallEnded, EventCallBusy:
		return true
	}
	return false
}

var ErrNoEvent = errors.New("frame without event")

type Payload struct {
	To          domain.UserID              `json:"to,omitempty"`
	From        domain.UserID              `json:"from,omitempty"`
	Offer       *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer      *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate   *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Reason      string                     `json:"reason,omitempty"`
	FailedEvent Event                      `json:"failed_event,omitempty"`
}

// Message is one named event with its payload, {"event": ..., "data": {...}} on the wire.
type Message struct {
	Event Event   `json:"event"`
	Data  Payload `json:"data"`
}

func Encode(m Message) ([]byte, error) {
	if m.Event == "" {
		return nil, ErrNoEvent
	}
	return json.Marshal(m)
}

func Decode(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}
	if m.Event == "" {
		return Message{}, ErrNoEvent
	}
	return m, nil
}
