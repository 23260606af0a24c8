package signal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/openmeet/sfu/internal/engine"
	"github.com/openmeet/sfu/internal/engine/pionmedia"
	"github.com/openmeet/sfu/internal/sfu"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	pool := sfu.NewWorkerPool(pionmedia.New(), engine.WorkerSettings{}, engine.RouterOptions{})
	require.NoError(t, pool.Initialize(context.Background(), 1))
	t.Cleanup(pool.Close)
	return NewController(sfu.New(pool, sfu.Options{}))
}

// newTestConn builds a connection without a websocket; the handlers only
// touch the send channel.
func newTestConn(participantID string) *Conn {
	return &Conn{send: make(chan []byte, 32), participantID: participantID}
}

func frame(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func recvFrame(t *testing.T, c *Conn, v any) {
	t.Helper()
	select {
	case data := <-c.send:
		require.NoError(t, json.Unmarshal(data, v))
	case <-time.After(time.Second):
		t.Fatal("no frame received")
	}
}

func requireNoFrame(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected frame: %s", data)
	default:
	}
}

func join(t *testing.T, ctl *Controller, c *Conn, roomID int) joinedReply {
	t.Helper()
	ctx := context.Background()
	ctl.handleFrame(ctx, c, frame(t, joinMessage{Type: "join", RoomID: roomID}))
	var joined joinedReply
	recvFrame(t, c, &joined)
	require.Equal(t, "joined", joined.Type)
	require.NotNil(t, joined.RTPCapabilities)
	ctl.handleFrame(ctx, c, frame(t, capabilitiesMessage{
		Type:            "capabilities",
		RTPCapabilities: *joined.RTPCapabilities,
	}))
	return joined
}

func TestJoinReply(t *testing.T) {
	ctl := newTestController(t)
	alice := newTestConn("alice")

	joined := join(t, ctl, alice, 1)
	require.NotEmpty(t, joined.SendTransportID)
	require.NotEmpty(t, joined.RecvTransportID)
	require.NotEqual(t, joined.SendTransportID, joined.RecvTransportID)
	require.NotNil(t, ctl.SFU.GetParticipant("alice", 1))
}

func TestProduceConsumeRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctl := newTestController(t)
	alice := newTestConn("alice")
	bob := newTestConn("bob")
	join(t, ctl, alice, 1)
	join(t, ctl, bob, 1)

	ctl.handleFrame(ctx, alice, frame(t, produceMessage{
		Type: "produce",
		RTPParameters: webrtc.RTPParameters{Codecs: []webrtc.RTPCodecParameters{{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			PayloadType:        111,
		}}},
		Source:         sfu.SourceMicrophone,
		CorrelationKey: "key-1",
	}))
	var produced producedReply
	recvFrame(t, alice, &produced)
	require.Equal(t, "produced", produced.Type)
	require.Equal(t, "key-1", produced.CorrelationKey)
	require.NotEmpty(t, produced.ID)

	ctl.handleFrame(ctx, bob, frame(t, consumeMessage{Type: "consume", OtherParticipantID: "alice"}))
	var consumed consumedReply
	recvFrame(t, bob, &consumed)
	require.Equal(t, "consumed", consumed.Type)
	require.Len(t, consumed.Consumers, 1)
	require.Equal(t, produced.ID, consumed.Consumers[0].ProducerID)
	require.Equal(t, sfu.SourceMicrophone, consumed.Consumers[0].Source)
	require.Equal(t, "alice", consumed.Consumers[0].ParticipantID)
}

func TestCloseProducersBroadcast(t *testing.T) {
	ctx := context.Background()
	ctl := newTestController(t)
	alice := newTestConn("alice")
	bob := newTestConn("bob")
	join(t, ctl, alice, 1)
	join(t, ctl, bob, 1)

	ctl.handleFrame(ctx, alice, frame(t, produceMessage{
		Type: "produce",
		RTPParameters: webrtc.RTPParameters{Codecs: []webrtc.RTPCodecParameters{{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		}}},
		Source:         sfu.SourceMicrophone,
		CorrelationKey: "key-1",
	}))
	var produced producedReply
	recvFrame(t, alice, &produced)

	ctl.handleFrame(ctx, alice, frame(t, closeProducersMessage{Type: "close-producers", ProducerIDs: []string{produced.ID}}))

	// The rest of the room hears about it; the originator does not.
	var broadcast producersClosedBroadcast
	recvFrame(t, bob, &broadcast)
	require.Equal(t, "producers-closed", broadcast.Type)
	require.Equal(t, "alice", broadcast.ParticipantID)
	require.Len(t, broadcast.Producers, 1)
	require.Equal(t, produced.ID, broadcast.Producers[0].ID)
	require.Equal(t, sfu.SourceMicrophone, broadcast.Producers[0].Source)
	requireNoFrame(t, alice)

	// Closing ids that are already gone broadcasts nothing.
	ctl.handleFrame(ctx, alice, frame(t, closeProducersMessage{Type: "close-producers", ProducerIDs: []string{produced.ID}}))
	requireNoFrame(t, bob)
}

func TestLeaveEvictsParticipant(t *testing.T) {
	ctx := context.Background()
	ctl := newTestController(t)
	alice := newTestConn("alice")
	bob := newTestConn("bob")
	join(t, ctl, alice, 1)
	join(t, ctl, bob, 1)

	ctl.handleFrame(ctx, alice, frame(t, envelope{Type: "leave"}))
	require.Nil(t, ctl.SFU.GetParticipant("alice", 1))

	// Alice is out of the broadcast set too.
	ctl.broadcastRoom(1, "bob", errorReply{Type: "error", Message: "x"})
	requireNoFrame(t, alice)
}

func TestMalformedAndUnknownFrames(t *testing.T) {
	ctx := context.Background()
	ctl := newTestController(t)
	alice := newTestConn("alice")

	ctl.handleFrame(ctx, alice, []byte("{not json"))
	requireNoFrame(t, alice)

	ctl.handleFrame(ctx, alice, frame(t, envelope{Type: "no-such-type"}))
	requireNoFrame(t, alice)

	// Room-scoped messages before join are dropped silently.
	ctl.handleFrame(ctx, alice, frame(t, consumeMessage{Type: "consume", OtherParticipantID: "bob"}))
	requireNoFrame(t, alice)

	join(t, ctl, alice, 1)
	ctl.handleFrame(ctx, alice, []byte(`{"type":"produce","rtpParameters":"bogus"}`))
	var reply errorReply
	recvFrame(t, alice, &reply)
	require.Equal(t, "error", reply.Type)
}
