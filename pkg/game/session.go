package game

import (
	"errors"
	"time"

	"github.com/cbodonnell/arena/pkg/log"
	"github.com/cbodonnell/arena/pkg/messages"
	"github.com/cbodonnell/arena/pkg/network"
)

// Channel is the part of a network.Channel a session drives.
type Channel interface {
	Sender
	On(kind messages.Kind, h network.Handler)
	OnDispose(f func())
	Dispose()
}

// BindSession routes a channel's messages to the room operations of player.
// Disposing the channel disconnects the player.
func BindSession(room *MatchRoom, player *Player, ch Channel) {
	s := &session{
		room:   room,
		player: player,
		ch:     ch,
		logger: room.logger.With("player", player.ID),
	}

	ch.On(messages.KindInput, s.handleInput)
	ch.On(messages.KindStartGame, s.hostOnly(room.StartGame))
	ch.On(messages.KindEndGame, s.hostOnly(room.EndGame))
	ch.On(messages.KindStartVoting, s.hostOnly(room.StartVoting))
	ch.On(messages.KindEndVoting, s.hostOnly(room.EndVoting))
	ch.On(messages.KindEliminate, s.handleEliminate)
	ch.On(messages.KindLeave, s.handleLeave)
	ch.On(messages.KindSyncTime, s.handleSyncTime)
	ch.OnDispose(func() {
		room.HandleDisconnect(player)
	})
}

type session struct {
	room   *MatchRoom
	player *Player
	ch     Channel
	logger *log.Logger
}

func (s *session) handleInput(msg *network.Inbound) {
	if err := s.room.EnqueueInput(s.player, msg.Input); err != nil {
		s.logger.Debug("Dropped input: %v", err)
	}
}

func (s *session) hostOnly(op func() error) network.Handler {
	return func(msg *network.Inbound) {
		if !s.room.IsHost(s.player) {
			s.reply(msg.Kind, ErrNotHost)
			return
		}
		if err := op(); err != nil {
			s.reply(msg.Kind, err)
		}
	}
}

func (s *session) handleEliminate(msg *network.Inbound) {
	if !s.room.IsHost(s.player) {
		s.reply(msg.Kind, ErrNotHost)
		return
	}
	payload, err := messages.DecodePayload[messages.EliminatePayload](msg.Envelope)
	if err != nil {
		s.reply(msg.Kind, err)
		return
	}
	if err := s.room.KillPlayer(payload.PlayerID); err != nil {
		s.reply(msg.Kind, err)
	}
}

func (s *session) handleLeave(msg *network.Inbound) {
	s.room.RemovePlayer(s.player)
	s.ch.Dispose()
}

func (s *session) handleSyncTime(msg *network.Inbound) {
	payload, err := messages.DecodePayload[messages.SyncTimePayload](msg.Envelope)
	if err != nil {
		s.reply(msg.Kind, err)
		return
	}
	payload.ServerTime = time.Now().UnixMilli()
	if err := s.ch.SendControl(messages.KindSyncTime, payload, messages.StatusOK); err != nil {
		s.logger.Debug("Failed to answer time sync: %v", err)
	}
}

// reply reports a failed request to the caller only.
func (s *session) reply(kind messages.Kind, err error) {
	if errors.Is(err, ErrInvalidPhase) || errors.Is(err, ErrNotHost) {
		s.logger.Debug("Rejected %s: %v", kind, err)
	} else {
		s.logger.Warn("Failed to handle %s: %v", kind, err)
	}
	payload := messages.ErrorPayload{Message: kind.Event() + ": " + err.Error()}
	if sendErr := s.ch.SendControl(messages.KindError, payload, StatusFor(err)); sendErr != nil {
		s.logger.Debug("Failed to send error reply: %v", sendErr)
	}
}
