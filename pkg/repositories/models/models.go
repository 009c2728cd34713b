package models

import "time"

// Match is the persisted record of a finished match.
type Match struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	CreatorID string    `json:"creator_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Ticks     uint32    `json:"ticks"`
	PlayerIDs []string  `json:"player_ids"`
	Replay    []byte    `json:"replay,omitempty"`
}
