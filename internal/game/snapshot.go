package game

// PlayerState is one seat's slice of a snapshot, from the perspective of a
// requesting viewer. Other players' hands are reduced to a count; melds are
// public and always revealed.
type PlayerState struct {
	Seat      int           `json:"seat"`
	Alias     string        `json:"alias"`
	Connected bool          `json:"connected"`
	HandSize  int           `json:"hand_size"`
	Melds     [][]EventCard `json:"melds"`

	// Hand is populated only for the viewer's own seat.
	Hand []EventCard `json:"hand,omitempty"`

	// ExchangeSubmitted is set for the viewer during the exchange phase so
	// a reconnecting client knows whether to re-show the waiting screen or
	// the selection UI.
	ExchangeSubmitted *bool `json:"exchange_submitted,omitempty"`

	HandComplete bool `json:"hand_complete"`
}

// RoomState is the full per-viewer snapshot used for reconnection recovery
// and state sync. Generating it never mutates room state.
type RoomState struct {
	RoomCode      string        `json:"room_code"`
	Phase         Phase         `json:"phase"`
	TableCard     *EventCard    `json:"table_card,omitempty"`
	DeckRemaining int           `json:"deck_remaining"`
	DiscardCount  int           `json:"discard_count"`
	OwnerSeat     int           `json:"owner_seat"`
	OfferSeat     int           `json:"offer_seat"`
	Players       []PlayerState `json:"players"`
}

// snapshot builds the snapshot for one viewer seat. Assumes lock is held.
func (r *Room) snapshot(viewerSeat int) *RoomState {
	state := &RoomState{
		RoomCode:      r.Code,
		Phase:         r.phase,
		DeckRemaining: r.deck.Len(),
		DiscardCount:  len(r.discardPile),
		OwnerSeat:     r.ownerIndex,
		OfferSeat:     r.offerIndex,
	}
	if r.tableCard != nil {
		state.TableCard = newEventCard(*r.tableCard)
	}

	for _, p := range r.Players {
		ps := PlayerState{
			Seat:         p.Seat,
			Alias:        p.Alias,
			Connected:    p.Connected,
			HandSize:     len(p.Hand),
			HandComplete: p.HandComplete,
			Melds:        make([][]EventCard, len(p.Melds)),
		}
		for i, m := range p.Melds {
			ps.Melds[i] = eventCards(m)
		}
		if p.Seat == viewerSeat {
			ps.Hand = eventCards(p.Hand)
			if r.phase == PhaseExchange {
				_, submitted := r.exchange[p.Seat]
				ps.ExchangeSubmitted = &submitted
			}
		}
		state.Players = append(state.Players, ps)
	}
	return state
}

// Snapshot returns the per-viewer snapshot for the given seat.
func (r *Room) Snapshot(viewerSeat int) *RoomState {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.snapshot(viewerSeat)
}
