package models

import (
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Player is one seat in a room. Seat assignment order is join order. The
// alias is the reconnection key: when a player rejoins with a known alias,
// ConnID and Conn are replaced in place and the seat keeps its hand and
// melds.
type Player struct {
	Seat      int             `json:"seat"`
	Alias     string          `json:"alias"`
	Connected bool            `json:"connected"`
	ConnID    uuid.UUID       `json:"-"`
	Conn      *websocket.Conn `json:"-"`

	Hand  []Card   `json:"-"`
	Melds [][]Card `json:"-"`

	// HandComplete is set once the player's laid-down melds total ten
	// cards, so the announcement fires only once.
	HandComplete bool `json:"-"`
}
