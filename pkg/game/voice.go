package game

import "github.com/cbodonnell/arena/pkg/messages"

// VoiceChannel is the audio group a player can hear.
type VoiceChannel string

const (
	VoiceLobby  VoiceChannel = "lobby"
	VoiceVoting VoiceChannel = "voting"
	VoiceSilent VoiceChannel = "silent"
)

// channelFor assigns a voice channel from the room phase and whether the
// player is alive. During play the lobby channel is the spectators' chat.
func channelFor(phase Phase, alive bool) VoiceChannel {
	switch phase {
	case PhaseActive:
		if alive {
			return VoiceSilent
		}
		return VoiceLobby
	case PhaseVoting:
		if alive {
			return VoiceVoting
		}
		return VoiceSilent
	default:
		return VoiceLobby
	}
}

// AudioIDsInChannel returns the audio ids of the connected players assigned
// to ch, in roster order. The silent channel is always empty.
func (r *MatchRoom) AudioIDsInChannel(ch VoiceChannel) []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.audioIDsLocked(ch)
}

func (r *MatchRoom) audioIDsLocked(ch VoiceChannel) []string {
	ids := []string{}
	if ch == VoiceSilent {
		return ids
	}
	phase := r.phaseLocked()
	for _, p := range r.players {
		if p.connected && channelFor(phase, p.alive) == ch {
			ids = append(ids, p.AudioID)
		}
	}
	return ids
}

func (r *MatchRoom) broadcastVoiceLocked() {
	phase := r.phaseLocked()
	for _, p := range r.players {
		ch := channelFor(phase, p.alive)
		payload := messages.VoicePayload{
			Channel:  string(ch),
			AudioIDs: r.audioIDsLocked(ch),
		}
		if err := p.send(messages.KindVoice, payload); err != nil {
			r.logger.Debug("Failed to send voice grouping to player %d: %v", p.ID, err)
		}
	}
}
