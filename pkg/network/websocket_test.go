package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cbodonnell/arena/pkg/messages"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ChannelOptions, setup func(ch *Channel)) string {
	t.Helper()
	upgrader := NewUpgrader(opts)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ch, err := upgrader.Upgrade(w, r)
		if err != nil {
			return
		}
		setup(ch)
		ch.Serve(context.Background())
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocket_roundTrip(t *testing.T) {
	received := make(chan *messages.InputMessage, 1)
	url := newTestServer(t, ChannelOptions{}, func(ch *Channel) {
		ch.On(messages.KindInput, func(msg *Inbound) {
			received <- msg.Input
			ch.SendSnapshot(&messages.SnapshotMessage{
				AcknowledgedSequence: msg.Input.Sequence,
				Tick:                 1,
				Players:              []messages.PlayerState{{ID: 1, X: 10, Y: 20}},
			})
		})
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	input := &messages.InputMessage{Sequence: 9, Horizontal: messages.DirectionNegative}
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, messages.EncodeInput(input)))

	select {
	case got := <-received:
		assert.Equal(t, input, got)
	case <-time.After(2 * time.Second):
		t.Fatal("input not received")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, messageType)

	snapshot, err := messages.DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), snapshot.AcknowledgedSequence)
}

func TestWebSocket_policyViolation(t *testing.T) {
	url := newTestServer(t, ChannelOptions{MaxMessageSize: 16}, func(ch *Channel) {})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 64)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "%v", err)
}
