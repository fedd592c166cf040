package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conquian-game/server/internal/models"
)

func TestNewDeckHas40UniqueCards(t *testing.T) {
	d := NewDeck()
	require.Equal(t, 40, d.Len())

	seen := map[string]bool{}
	for {
		c, ok := d.Draw()
		if !ok {
			break
		}
		assert.False(t, seen[c.ID()], "duplicate card %s", c.ID())
		seen[c.ID()] = true
	}
	assert.Len(t, seen, 40)
}

func TestDrawFromEmptyDeck(t *testing.T) {
	d := NewDeck()
	for i := 0; i < 40; i++ {
		_, ok := d.Draw()
		require.True(t, ok)
	}
	_, ok := d.Draw()
	assert.False(t, ok)
	assert.Equal(t, 0, d.Len())
}

func TestRecycleRestoresPile(t *testing.T) {
	d := NewDeck()
	pile := make([]models.Card, 0, 40)
	for {
		c, ok := d.Draw()
		if !ok {
			break
		}
		pile = append(pile, c)
	}

	d.Recycle(pile[:10])
	assert.Equal(t, 10, d.Len())

	seen := map[string]bool{}
	for {
		c, ok := d.Draw()
		if !ok {
			break
		}
		assert.False(t, seen[c.ID()], "duplicate card %s after recycle", c.ID())
		seen[c.ID()] = true
	}
	assert.Len(t, seen, 10)
}
