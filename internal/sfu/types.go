// Package sfu is the session orchestration core: worker-pool load balancing,
// room lifecycle and participant/producer/consumer bookkeeping with
// cascading-close semantics.
package sfu

import (
	"errors"

	"github.com/pion/webrtc/v4"
)

var ErrNoWorkers = errors.New("no execution units available for workers")

type RoomID int

// TrackSource classifies a published track. It drives kind derivation,
// codec preference lookup and consume filtering.
type TrackSource string

const (
	SourceMicrophone       TrackSource = "microphone"
	SourceCamera           TrackSource = "camera"
	SourceScreenshareAudio TrackSource = "screenshare-audio"
	SourceScreenshareVideo TrackSource = "screenshare-video"
)

// Kind maps a source onto the engine media kind.
func (s TrackSource) Kind() webrtc.RTPCodecType {
	switch s {
	case SourceMicrophone, SourceScreenshareAudio:
		return webrtc.RTPCodecTypeAudio
	default:
		return webrtc.RTPCodecTypeVideo
	}
}

type TransportDirection string

const (
	DirectionSend TransportDirection = "send"
	DirectionRecv TransportDirection = "recv"
)

// ProducerAppData tags a producer at creation time.
type ProducerAppData struct {
	Source TrackSource `json:"source"`
}

// ConsumerAppData tags a consumer with the originating source and the id of
// the participant that published it.
type ConsumerAppData struct {
	Source        TrackSource `json:"source"`
	ParticipantID string      `json:"participantID"`
}

// ConnectTransportOptions carries DTLS parameters to one of a participant's
// transports.
type ConnectTransportOptions struct {
	Direction      TransportDirection    `json:"direction"`
	DTLSParameters webrtc.DTLSParameters `json:"dtlsParameters"`
}

// ConsumeOptions selects which of another participant's producers to consume.
// SourceFilter is a substring match against the producer source.
type ConsumeOptions struct {
	SourceFilter       string `json:"sourceFilter"`
	OtherParticipantID string `json:"otherParticipantID"`
}

// ProducerCloseResult reports one closed producer back to the signaling layer.
type ProducerCloseResult struct {
	ID     string      `json:"id"`
	Source TrackSource `json:"source"`
}
