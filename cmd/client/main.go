package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	clientnetwork "github.com/cbodonnell/arena/pkg/client/network"
	"github.com/cbodonnell/arena/pkg/client/prediction"
	"github.com/cbodonnell/arena/pkg/game"
	"github.com/cbodonnell/arena/pkg/game/constants"
	"github.com/cbodonnell/arena/pkg/log"
	"github.com/cbodonnell/arena/pkg/messages"
	"github.com/cbodonnell/arena/pkg/network"
	"github.com/cbodonnell/arena/pkg/physics"
	"github.com/cbodonnell/arena/pkg/queue"
	"github.com/cbodonnell/arena/pkg/version"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "arena server base url")
	roomID := flag.String("room", "", "room to join; a new room is created when empty")
	token := flag.String("token", "", "auth token; empty joins as a guest")
	start := flag.Bool("start", false, "start the match once joined, if host")
	duration := flag.Duration("duration", 30*time.Second, "how long to play")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}
	log.SetDefaultLogger(log.New(os.Stdout, parsedLogLevel))
	defer log.Sync()
	log.Info("Starting arena bot version %s", version.Get())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	if *roomID == "" {
		info, err := createRoom(ctx, *server, *token)
		if err != nil {
			panic(fmt.Sprintf("Failed to create room: %v", err))
		}
		log.Info("Created room %s", info.ID)
		*roomID = info.ID
	}

	endpoint, err := connectURL(*server, *roomID)
	if err != nil {
		panic(fmt.Sprintf("Invalid server url: %v", err))
	}
	client, err := clientnetwork.Dial(ctx, endpoint, clientnetwork.DialOptions{Token: *token})
	if err != nil {
		panic(fmt.Sprintf("Failed to connect: %v", err))
	}

	b := newBot(client, *start)
	go func() {
		if err := client.Serve(ctx, 0); err != nil {
			log.Error("Connection closed: %v", err)
		}
		cancel()
	}()

	b.run(ctx)
	client.Close()
	b.report()
}

func createRoom(ctx context.Context, server, token string) (*game.RoomInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(server, "/")+"/rooms", nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Message string        `json:"message"`
		Data    game.RoomInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Message)
	}
	return &body.Data, nil
}

func connectURL(server, roomID string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/rooms/" + url.PathEscape(roomID) + "/connect"
	return u.String(), nil
}

// bot plays a scripted pattern with client-side prediction. Network handlers
// only enqueue; all simulation happens on the run goroutine.
type bot struct {
	client  *clientnetwork.Client
	inbound *queue.InMemoryQueue[*network.Inbound]
	start   bool

	localID    uint8
	hostID     uint8
	phase      string
	world      physics.World
	stepper    *physics.Stepper
	reconciler *prediction.Reconciler
	remotes    *prediction.RemoteBuffer

	corrections int
	totalDrift  float64
	maxDrift    float64
}

var pattern = []struct {
	h, v messages.Direction
}{
	{messages.DirectionPositive, messages.DirectionNone},
	{messages.DirectionNone, messages.DirectionPositive},
	{messages.DirectionNegative, messages.DirectionNone},
	{messages.DirectionNone, messages.DirectionNegative},
	{messages.DirectionNone, messages.DirectionNone},
}

func newBot(client *clientnetwork.Client, start bool) *bot {
	b := &bot{
		client:  client,
		inbound: queue.NewInMemoryQueue[*network.Inbound](1024),
		start:   start,
	}
	enqueue := func(msg *network.Inbound) {
		if err := b.inbound.Enqueue(msg); err != nil {
			log.Warn("Dropping %s: %v", msg.Kind, err)
		}
	}
	for _, kind := range []messages.Kind{messages.KindSnapshot, messages.KindJoined, messages.KindPhase, messages.KindRoster, messages.KindVoice, messages.KindError} {
		client.Channel().On(kind, enqueue)
	}
	return b
}

func (b *bot) run(ctx context.Context) {
	ticker := time.NewTicker(constants.FixedTimestep)
	defer ticker.Stop()

	last := time.Now()
	step := 0
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, msg := range b.inbound.ReadAllMessages() {
				b.handle(msg)
			}
			if b.reconciler == nil {
				last = now
				continue
			}

			// change direction every second
			move := pattern[(step/constants.TickRate)%len(pattern)]
			// held keys are sent every tick; the server applies each input for one step
			if _, err := b.reconciler.EnqueueLocalInput(move.h, move.v); err != nil {
				log.Debug("Failed to send input: %v", err)
			}
			step++

			b.stepper.Step(b.world, now.Sub(last))
			last = now
		}
	}
}

func (b *bot) handle(msg *network.Inbound) {
	switch msg.Kind {
	case messages.KindSnapshot:
		b.handleSnapshot(msg)
	case messages.KindJoined:
		payload, err := messages.DecodePayload[messages.JoinedPayload](msg.Envelope)
		if err != nil {
			log.Warn("Invalid joined message: %v", err)
			return
		}
		b.join(payload)
	case messages.KindPhase:
		payload, err := messages.DecodePayload[messages.PhasePayload](msg.Envelope)
		if err != nil {
			log.Warn("Invalid phase message: %v", err)
			return
		}
		b.phase = payload.Phase
		log.Info("Room phase is %s (voting: %t)", payload.Phase, payload.Voting)
		if b.start && b.localID != 0 && b.localID == b.hostID && payload.Phase == game.PhaseLobby.String() {
			b.start = false
			if err := b.client.Channel().SendControl(messages.KindStartGame, nil, messages.StatusOK); err != nil {
				log.Warn("Failed to start game: %v", err)
			}
		}
	case messages.KindRoster:
		payload, err := messages.DecodePayload[messages.RosterPayload](msg.Envelope)
		if err != nil {
			log.Warn("Invalid roster message: %v", err)
			return
		}
		b.hostID = payload.HostID
		log.Info("Roster: %d players, host %d", len(payload.Players), payload.HostID)
	case messages.KindVoice:
		payload, err := messages.DecodePayload[messages.VoicePayload](msg.Envelope)
		if err == nil {
			log.Debug("Voice channel %s with %d peers", payload.Channel, len(payload.AudioIDs))
		}
	case messages.KindError:
		payload, _ := messages.DecodePayload[messages.ErrorPayload](msg.Envelope)
		log.Warn("Server error %d: %s", msg.Envelope.Status, payload.Message)
	}
}

func (b *bot) join(payload messages.JoinedPayload) {
	world, err := game.NewArenaWorld()
	if err != nil {
		log.Error("Failed to create local world: %v", err)
		return
	}
	body, err := world.CreateBody(game.PlayerBodyDef(payload.PlayerID))
	if err != nil {
		log.Error("Failed to create local player: %v", err)
		return
	}

	b.localID = payload.PlayerID
	b.hostID = payload.HostID
	b.world = world
	b.stepper = physics.NewStepper(physics.StepperOptions{
		FixedTimestep: constants.FixedTimestep,
		MaxSteps:      constants.MaxSteps,
		Interpolate:   true,
	})
	b.reconciler = prediction.NewReconciler(prediction.ReconcilerOptions{
		World:   world,
		Body:    body,
		LocalID: payload.PlayerID,
		Send:    b.client.SendInput,
		Stepper: b.stepper,
	})
	b.remotes = prediction.NewRemoteBuffer(payload.PlayerID, 0)
	log.Info("Joined room %s as player %d (host %d)", payload.RoomID, payload.PlayerID, payload.HostID)
}

func (b *bot) handleSnapshot(msg *network.Inbound) {
	if b.reconciler == nil {
		return
	}
	b.remotes.Observe(msg.Snapshot, msg.ReceivedAt)

	predicted, _ := b.reconciler.Position()
	if err := b.reconciler.Reconcile(msg.Snapshot); err != nil {
		log.Debug("Skipping snapshot %d: %v", msg.Snapshot.Tick, err)
		return
	}
	corrected, _ := b.reconciler.Position()

	drift := corrected.Sub(predicted).Length()
	b.corrections++
	b.totalDrift += drift
	if drift > b.maxDrift {
		b.maxDrift = drift
	}
	log.Trace("Tick %d: ack %d, %d pending, drift %.2f, %d remotes",
		msg.Snapshot.Tick, msg.Snapshot.AcknowledgedSequence, len(b.reconciler.Pending()), drift, len(b.remotes.IDs()))
}

func (b *bot) report() {
	if b.corrections == 0 {
		log.Info("No snapshots reconciled")
		return
	}
	ping := b.client.Clock().Ping()
	log.Info("Reconciled %d snapshots: average drift %.2f, max drift %.2f, ping %.0fms",
		b.corrections, b.totalDrift/float64(b.corrections), b.maxDrift, ping)
}
