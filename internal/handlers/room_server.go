package handlers

import (
	"log"

	"github.com/conquian-game/server/internal/registry"
)

// RoomServer is a high-level struct holding the room registry shared by all
// websocket connections.
type RoomServer struct {
	Registry *registry.Store
	Logf     func(f string, v ...interface{})
}

// NewRoomServer builds a RoomServer around an existing registry.
func NewRoomServer(reg *registry.Store) *RoomServer {
	return &RoomServer{
		Registry: reg,
		Logf:     log.Printf,
	}
}
