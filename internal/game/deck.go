package game

import (
	"math/rand"
	"time"

	"github.com/conquian-game/server/internal/models"
)

// Deck is an ordered pile of cards. The draw position is the end of the
// slice, so Draw pops the last element.
type Deck struct {
	cards []models.Card
}

// NewDeck builds the full 40-card Spanish deck, uniformly shuffled.
func NewDeck() *Deck {
	cards := make([]models.Card, 0, len(models.Suits)*len(models.Ranks))
	for _, suit := range models.Suits {
		for _, rank := range models.Ranks {
			cards = append(cards, models.Card{Rank: rank, Suit: suit})
		}
	}
	d := &Deck{cards: cards}
	d.shuffle()
	return d
}

// Draw removes and returns the top card. ok is false when the deck is empty.
func (d *Deck) Draw() (models.Card, bool) {
	if len(d.cards) == 0 {
		return models.Card{}, false
	}
	c := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return c, true
}

// Recycle shuffles the given pile back into the deck. Used when the deck is
// exhausted: the dead discard pile comes back instead of a fresh 40-card
// set, so no card identity is ever duplicated within a room.
func (d *Deck) Recycle(pile []models.Card) {
	d.cards = append(d.cards, pile...)
	d.shuffle()
}

// Len reports how many cards remain.
func (d *Deck) Len() int {
	return len(d.cards)
}

func (d *Deck) shuffle() {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	r.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}
