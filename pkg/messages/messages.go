package messages

const (
	// MaxMessageSize is the default ceiling for a single inbound frame
	MaxMessageSize = 1024
)

// Kind enumerates every message exchanged over a connection. Binary kinds
// are identified by schema id, control kinds by envelope event name.
type Kind int

const (
	KindUnknown Kind = iota
	KindInput
	KindSnapshot
	KindJoined
	KindRoster
	KindPhase
	KindVoice
	KindError
	KindLeave
	KindStartGame
	KindEndGame
	KindStartVoting
	KindEndVoting
	KindEliminate
	KindSyncTime
)

var kindNames = map[Kind]string{
	KindInput:       "input",
	KindSnapshot:    "snapshot",
	KindJoined:      "joined",
	KindRoster:      "roster",
	KindPhase:       "phase",
	KindVoice:       "voice",
	KindError:       "error",
	KindLeave:       "leave",
	KindStartGame:   "startGame",
	KindEndGame:     "endGame",
	KindStartVoting: "startVoting",
	KindEndVoting:   "endVoting",
	KindEliminate:   "eliminate",
	KindSyncTime:    "syncTime",
}

var kindsByEvent = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		if k.IsControl() {
			m[name] = k
		}
	}
	return m
}()

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event returns the envelope event name of a control kind.
func (k Kind) Event() string {
	return k.String()
}

// IsControl reports whether the kind travels in a JSON envelope.
func (k Kind) IsControl() bool {
	return k > KindSnapshot && k <= KindSyncTime
}

// KindForEvent maps an envelope event name to its kind.
func KindForEvent(event string) Kind {
	if k, ok := kindsByEvent[event]; ok {
		return k
	}
	return KindUnknown
}

// Control envelope status codes.
const (
	StatusOK          = 200
	StatusBadRequest  = 400
	StatusForbidden   = 403
	StatusNotFound    = 404
	StatusConflict    = 409
	StatusUnavailable = 503
)

// JoinedPayload is sent to a connection once it is attached to a player.
type JoinedPayload struct {
	RoomID   string `json:"roomId"`
	PlayerID uint8  `json:"playerId"`
	HostID   uint8  `json:"hostId"`
	AudioID  string `json:"audioId"`
	Tick     uint32 `json:"tick"`
}

type RosterEntry struct {
	ID        uint8  `json:"id"`
	UserID    string `json:"userId"`
	AudioID   string `json:"audioId"`
	Alive     bool   `json:"alive"`
	Connected bool   `json:"connected"`
}

type RosterPayload struct {
	HostID  uint8         `json:"hostId"`
	Players []RosterEntry `json:"players"`
}

type PhasePayload struct {
	Phase  string `json:"phase"`
	Voting bool   `json:"voting"`
	Tick   uint32 `json:"tick"`
}

type VoicePayload struct {
	Channel  string   `json:"channel"`
	AudioIDs []string `json:"audioIds"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type EliminatePayload struct {
	PlayerID uint8 `json:"playerId"`
}

// SyncTimePayload carries client and server clocks in unix milliseconds.
type SyncTimePayload struct {
	ClientTime int64 `json:"clientTime"`
	ServerTime int64 `json:"serverTime,omitempty"`
}
