package registry

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^[A-Z]{4}$`)

func TestCreateRoomGeneratesFourLetterCode(t *testing.T) {
	s := NewStore(time.Minute)
	room, err := s.CreateRoom()
	require.NoError(t, err)
	assert.Regexp(t, codePattern, room.Code)
}

func TestCreateRoomCodesAreUnique(t *testing.T) {
	s := NewStore(time.Minute)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		room, err := s.CreateRoom()
		require.NoError(t, err)
		assert.False(t, seen[room.Code], "code %s issued twice", room.Code)
		seen[room.Code] = true
	}
	assert.Equal(t, 200, s.Len())
}

func TestGetRoomIsCaseInsensitive(t *testing.T) {
	s := NewStore(time.Minute)
	room, err := s.CreateRoom()
	require.NoError(t, err)

	for _, code := range []string{room.Code, strings.ToLower(room.Code)} {
		got, ok := s.GetRoom(code)
		require.True(t, ok, "lookup %q", code)
		assert.Same(t, room, got)
	}

	_, ok := s.GetRoom("ZZZZZ")
	assert.False(t, ok)
}

func TestDeleteRoom(t *testing.T) {
	s := NewStore(time.Minute)
	room, err := s.CreateRoom()
	require.NoError(t, err)

	s.DeleteRoom(room.Code)
	_, ok := s.GetRoom(room.Code)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestReaperRemovesIdleEmptyRooms(t *testing.T) {
	s := NewStore(time.Millisecond)
	idle, err := s.CreateRoom()
	require.NoError(t, err)

	occupied, err := s.CreateRoom()
	require.NoError(t, err)
	require.NoError(t, occupied.Join("ana", uuid.New(), nil))

	time.Sleep(10 * time.Millisecond)
	s.reapOnce()

	_, ok := s.GetRoom(idle.Code)
	assert.False(t, ok, "idle empty room should be reaped")
	_, ok = s.GetRoom(occupied.Code)
	assert.True(t, ok, "room with a connected player must survive")
}
