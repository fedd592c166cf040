package models

import "fmt"

// Suits of the Spanish 40-card deck.
const (
	SuitOros    = "Oros"
	SuitCopas   = "Copas"
	SuitEspadas = "Espadas"
	SuitBastos  = "Bastos"
)

// Suits lists the four suits in deck-build order.
var Suits = []string{SuitOros, SuitCopas, SuitEspadas, SuitBastos}

// Ranks of the Spanish deck. There is no 8 or 9: Sota=10, Caballo=11, Rey=12.
var Ranks = []int{1, 2, 3, 4, 5, 6, 7, 10, 11, 12}

// Card is an immutable card value. Exactly one card exists per (rank, suit)
// combination in any room.
type Card struct {
	Rank int    `json:"rank"`
	Suit string `json:"suit"`
}

// ID returns the stable wire identity of the card, e.g. "7-Espadas".
func (c Card) ID() string {
	return fmt.Sprintf("%d-%s", c.Rank, c.Suit)
}
