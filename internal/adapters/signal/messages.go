package signal

import (
	"github.com/pion/webrtc/v4"

	"github.com/openmeet/sfu/internal/sfu"
)

// envelope is the minimal frame read first to pick a handler.
type envelope struct {
	Type string `json:"type"`
}

type joinMessage struct {
	Type    string         `json:"type"`
	RoomID  int            `json:"roomID"`
	AppData map[string]any `json:"appData,omitempty"`
}

type capabilitiesMessage struct {
	Type            string                 `json:"type"`
	RTPCapabilities webrtc.RTPCapabilities `json:"rtpCapabilities"`
}

type connectTransportMessage struct {
	Type           string                 `json:"type"`
	Direction      sfu.TransportDirection `json:"direction"`
	DTLSParameters webrtc.DTLSParameters  `json:"dtlsParameters"`
}

type produceMessage struct {
	Type           string               `json:"type"`
	RTPParameters  webrtc.RTPParameters `json:"rtpParameters"`
	Source         sfu.TrackSource      `json:"source"`
	CorrelationKey string               `json:"correlationKey"`
}

type consumeMessage struct {
	Type               string `json:"type"`
	SourceFilter       string `json:"sourceFilter"`
	OtherParticipantID string `json:"otherParticipantID"`
}

type resumeConsumerMessage struct {
	Type       string `json:"type"`
	ConsumerID string `json:"consumerID"`
}

type closeProducersMessage struct {
	Type        string   `json:"type"`
	ProducerIDs []string `json:"producerIDs"`
}

type joinedReply struct {
	Type            string                  `json:"type"`
	RTPCapabilities *webrtc.RTPCapabilities `json:"rtpCapabilities"`
	SendTransportID string                  `json:"sendTransportID"`
	RecvTransportID string                  `json:"recvTransportID"`
}

type producedReply struct {
	Type           string `json:"type"`
	ID             string `json:"id"`
	CorrelationKey string `json:"correlationKey"`
}

type consumerItem struct {
	ID            string               `json:"id"`
	ProducerID    string               `json:"producerID"`
	Kind          string               `json:"kind"`
	RTPParameters webrtc.RTPParameters `json:"rtpParameters"`
	Source        sfu.TrackSource      `json:"source"`
	ParticipantID string               `json:"participantID"`
}

type consumedReply struct {
	Type      string         `json:"type"`
	Consumers []consumerItem `json:"consumers"`
}

// producersClosedBroadcast tells the rest of the room which producers went
// away so clients can drop their local consumers.
type producersClosedBroadcast struct {
	Type          string                    `json:"type"`
	ParticipantID string                    `json:"participantID"`
	Producers     []sfu.ProducerCloseResult `json:"producers"`
}

type errorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
