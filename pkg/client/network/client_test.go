package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cbodonnell/arena/pkg/messages"
	"github.com/cbodonnell/arena/pkg/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEchoServer(t *testing.T, tokens chan<- string) string {
	t.Helper()
	upgrader := network.NewUpgrader(network.ChannelOptions{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")
		ch, err := upgrader.Upgrade(w, r)
		if err != nil {
			return
		}
		ch.On(messages.KindInput, func(msg *network.Inbound) {
			ch.SendSnapshot(&messages.SnapshotMessage{
				AcknowledgedSequence: msg.Input.Sequence,
				Tick:                 7,
				Players:              []messages.PlayerState{{ID: 1, X: 1, Y: 2}},
			})
		})
		ch.On(messages.KindSyncTime, func(msg *network.Inbound) {
			payload, err := messages.DecodePayload[messages.SyncTimePayload](msg.Envelope)
			if err != nil {
				return
			}
			payload.ServerTime = time.Now().UnixMilli()
			ch.SendControl(messages.KindSyncTime, payload, messages.StatusOK)
		})
		ch.Serve(r.Context())
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClient(t *testing.T) {
	tokens := make(chan string, 1)
	endpoint := newEchoServer(t, tokens)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := Dial(ctx, endpoint, DialOptions{Token: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "secret", <-tokens)

	snapshots := make(chan *messages.SnapshotMessage, 1)
	client.Channel().On(messages.KindSnapshot, func(msg *network.Inbound) {
		snapshots <- msg.Snapshot
	})

	served := make(chan error, 1)
	go func() { served <- client.Serve(ctx, time.Hour) }()

	require.Eventually(t, func() bool {
		_, synced := client.Clock().ServerTime(time.Now())
		return synced
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return client.SendInput(&messages.InputMessage{Sequence: 4, Horizontal: messages.DirectionPositive}) == nil
	}, time.Second, 5*time.Millisecond)

	select {
	case snapshot := <-snapshots:
		assert.Equal(t, uint32(4), snapshot.AcknowledgedSequence)
		assert.Equal(t, uint32(7), snapshot.Tick)
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot not received")
	}

	client.Close()
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
	assert.Equal(t, network.StateDisposed, client.Channel().State())
}

func TestDial_unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Dial(ctx, "ws://127.0.0.1:1/rooms/x/connect", DialOptions{})
	assert.Error(t, err)
}
