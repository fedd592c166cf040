package registry

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/conquian-game/server/internal/game"
)

const codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// codeLength is the room-code length; four uppercase letters per the wire
// format clients type in.
const codeLength = 4

// Store owns the active rooms in memory, keyed by their human-entered code.
// It provides thread-safe create, lookup and delete, plus an idle reaper.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*game.Room

	// idleTimeout is how long a room with no connected players survives
	// before the reaper removes it.
	idleTimeout time.Duration
}

// NewStore initializes an empty Store.
func NewStore(idleTimeout time.Duration) *Store {
	return &Store{
		rooms:       make(map[string]*game.Room),
		idleTimeout: idleTimeout,
	}
}

// CreateRoom generates a collision-free code, builds the room and registers
// it. It fails only if the code space is effectively saturated.
func (s *Store) CreateRoom() (*game.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < 100; attempt++ {
		code := randomCode()
		if _, taken := s.rooms[code]; taken {
			continue
		}
		room := game.NewRoom(code)
		s.rooms[code] = room
		log.Printf("Registry: created room %s", code)
		return room, nil
	}
	return nil, fmt.Errorf("could not find a free room code after 100 attempts")
}

// GetRoom retrieves a room by code, case-insensitively.
func (s *Store) GetRoom(code string) (*game.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[strings.ToUpper(code)]
	return room, ok
}

// DeleteRoom removes a room from the registry.
func (s *Store) DeleteRoom(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; ok {
		delete(s.rooms, code)
		log.Printf("Registry: deleted room %s", code)
	}
}

// Len reports the number of registered rooms.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// RunReaper periodically removes rooms that have had no connected players
// for longer than the idle timeout. It exits when the context is done.
func (s *Store) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reapOnce()
		}
	}
}

// reapOnce sweeps the registry for abandoned rooms.
func (s *Store) reapOnce() {
	s.mu.Lock()
	candidates := make(map[string]*game.Room, len(s.rooms))
	for code, room := range s.rooms {
		candidates[code] = room
	}
	s.mu.Unlock()

	// Room locks are taken outside the registry lock so a slow room never
	// blocks lookups.
	for code, room := range candidates {
		if room.ConnectedCount() == 0 && room.IdleFor() > s.idleTimeout {
			log.Printf("Registry: reaping abandoned room %s (idle %s)", code, room.IdleFor().Round(time.Second))
			s.DeleteRoom(code)
		}
	}
}

func randomCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeLetters[rand.Intn(len(codeLetters))]
	}
	return string(b)
}
