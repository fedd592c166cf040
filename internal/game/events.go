package game

import "github.com/conquian-game/server/internal/models"

// RoomEventType is an enum-like type for outbound room notifications.
type RoomEventType string

const (
	EventRoomCreated      RoomEventType = "room_created"       // to-actor: room code assigned
	EventPlayerJoined     RoomEventType = "player_joined"      // to-room: a seat was filled
	EventLobbyState       RoomEventType = "lobby_state"        // to-room: roster while in the lobby
	EventGameStarted      RoomEventType = "game_started"       // to-actor: private dealt hand
	EventExchangeWaiting  RoomEventType = "exchange_waiting"   // to-actor: card accepted, barrier pending
	EventExchangeResolved RoomEventType = "exchange_resolved"  // to-actor: received card + full hand
	EventOffer            RoomEventType = "offer"              // to-room: table card presented to a seat
	EventOfferPassed      RoomEventType = "offer_passed"       // to-room: a seat refused the table card
	EventCardTaken        RoomEventType = "card_taken"         // to-room: a seat took the table card
	EventMeldLaid         RoomEventType = "meld_laid"          // to-room: a meld went face-up
	EventCardDiscarded    RoomEventType = "card_discarded"     // to-room: discard became the next table card
	EventHandUpdated      RoomEventType = "hand_updated"       // to-actor: private hand after a mutation
	EventDeckReshuffled   RoomEventType = "deck_reshuffled"    // to-room: discard pile recycled into the deck
	EventHandComplete     RoomEventType = "hand_complete"      // to-room: a seat has laid down ten cards
	EventSyncState        RoomEventType = "room_sync_state"    // to-actor: full snapshot for (re)connects
	EventChatMessage      RoomEventType = "chat_message"       // to-room: chat relay
	EventError            RoomEventType = "error"              // to-actor: rejected intent
)

// EventCard carries a card over the wire together with its stable identity.
type EventCard struct {
	ID   string `json:"id"`
	Rank int    `json:"rank"`
	Suit string `json:"suit"`
}

// EventSeat identifies a seat in event payloads.
type EventSeat struct {
	Seat  int    `json:"seat"`
	Alias string `json:"alias"`
}

// RoomEvent is the single outbound message shape. The gateway delivers it
// verbatim; whether it goes to one seat or the whole room is decided by
// which broadcast callback the room fires it through.
type RoomEvent struct {
	Type    RoomEventType          `json:"type"`
	Seat    *EventSeat             `json:"seat,omitempty"`
	Card    *EventCard             `json:"card,omitempty"`
	Cards   []EventCard            `json:"cards,omitempty"`
	State   *RoomState             `json:"state,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

func newEventCard(c models.Card) *EventCard {
	return &EventCard{ID: c.ID(), Rank: c.Rank, Suit: c.Suit}
}

func eventCards(cs []models.Card) []EventCard {
	out := make([]EventCard, len(cs))
	for i, c := range cs {
		out[i] = *newEventCard(c)
	}
	return out
}
