package game

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/conquian-game/server/internal/cache"
	"github.com/conquian-game/server/internal/models"
)

// Phase is the room-wide stage of play. Exactly one phase is active at a
// time and it is tracked per room, not per player.
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseExchange   Phase = "exchange"
	PhaseOffer      Phase = "offer"
	PhaseMelding    Phase = "melding"
	PhaseDiscarding Phase = "discarding"
)

const (
	// MaxSeats caps the number of players per room.
	MaxSeats = 4
	// MinSeats is the minimum roster required to start.
	MinSeats = 2
	// HandSize is the number of cards dealt per seat.
	HandSize = 9
	// meldTarget is the laid-down card total that triggers the
	// hand-complete announcement.
	meldTarget = 10
)

// Room holds the entire state for a single room instance in memory. All
// mutations are serialized through Mu: an intent either completes its
// read-modify-write under the lock or is rejected. Distinct rooms share no
// mutable state.
type Room struct {
	ID   uuid.UUID
	Code string

	Players     []*models.Player
	deck        *Deck
	discardPile []models.Card

	// tableCard is the single card currently offered for take/pass. It is
	// distinct from the discard pile, which holds dead refused cards.
	tableCard *models.Card

	// exchange buffers each seat's relinquished card until every seat has
	// submitted, then resolves atomically.
	exchange map[int]models.Card

	phase Phase

	// ownerIndex is the seat that benefits by default this round;
	// offerIndex is the seat currently deciding on the table card.
	ownerIndex int
	offerIndex int
	refusals   int

	actionIndex int
	lastActive  time.Time

	Mu sync.Mutex

	// BroadcastFn sends an event to every connected seat. Called with the
	// room lock held; implementations must not re-acquire it.
	BroadcastFn func(ev RoomEvent)

	// BroadcastToSeatFn sends an event to a single seat. Same locking
	// contract as BroadcastFn.
	BroadcastToSeatFn func(seat int, ev RoomEvent)
}

// NewRoom builds an empty lobby-phase room with a freshly shuffled deck.
func NewRoom(code string) *Room {
	id, _ := uuid.NewRandom()
	return &Room{
		ID:         id,
		Code:       code,
		deck:       NewDeck(),
		exchange:   make(map[int]models.Card),
		phase:      PhaseLobby,
		lastActive: time.Now(),
	}
}

// Join adds a new seat while in the lobby, or reattaches a known alias as a
// reconnection. Reconnection never mutates game state: it only replaces the
// connection identity and replays snapshots so the returning client reaches
// parity with live players.
func (r *Room) Join(alias string, connID uuid.UUID, conn *websocket.Conn) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.touch()

	if p := r.playerByAlias(alias); p != nil {
		p.ConnID = connID
		p.Conn = conn
		p.Connected = true
		log.Printf("Room %s: player %q reconnected at seat %d", r.Code, alias, p.Seat)
		r.logAction(p.Seat, "player_reconnect", nil)
		r.replayState(p)
		return nil
	}

	if r.phase != PhaseLobby {
		return reject(RejectWrongPhase, "room %s has already started", r.Code)
	}
	if len(r.Players) >= MaxSeats {
		return reject(RejectRoomFull, "room %s is full", r.Code)
	}

	p := &models.Player{
		Seat:      len(r.Players),
		Alias:     alias,
		ConnID:    connID,
		Conn:      conn,
		Connected: true,
	}
	r.Players = append(r.Players, p)
	log.Printf("Room %s: player %q joined at seat %d", r.Code, alias, p.Seat)
	r.logAction(p.Seat, "player_join", nil)

	r.fireEvent(RoomEvent{
		Type: EventPlayerJoined,
		Seat: &EventSeat{Seat: p.Seat, Alias: p.Alias},
	})
	r.fireLobbyState()
	r.fireSystemMessage(alias + " joined the room")
	return nil
}

// StartGame deals nine cards per seat and enters the exchange phase. Only
// the host (seat 0) may start, and only from the lobby with two or more
// seats filled.
func (r *Room) StartGame(connID uuid.UUID) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.touch()

	actor := r.playerByConn(connID)
	if actor == nil {
		return reject(RejectUnknownPlayer, "connection is not seated in room %s", r.Code)
	}
	if r.phase != PhaseLobby {
		return reject(RejectWrongPhase, "game already started")
	}
	if actor.Seat != 0 {
		return reject(RejectNotHost, "only the host can start the game")
	}
	if len(r.Players) < MinSeats {
		return reject(RejectNotEnoughPlayers, "need at least %d players", MinSeats)
	}

	for _, p := range r.Players {
		p.Hand = make([]models.Card, 0, HandSize)
		for i := 0; i < HandSize; i++ {
			c, ok := r.deck.Draw()
			if !ok {
				// Unreachable with 4 seats and a 40-card deck.
				log.Printf("Room %s: deck exhausted during deal", r.Code)
				break
			}
			p.Hand = append(p.Hand, c)
		}
	}

	r.phase = PhaseExchange
	r.exchange = make(map[int]models.Card)
	log.Printf("Room %s: game started with %d players", r.Code, len(r.Players))
	r.logAction(actor.Seat, "game_start", map[string]interface{}{"players": len(r.Players)})

	for _, p := range r.Players {
		r.fireEventToSeat(p.Seat, RoomEvent{
			Type:  EventGameStarted,
			Cards: eventCards(p.Hand),
			Payload: map[string]interface{}{
				"phase": string(r.phase),
			},
		})
	}
	r.fireSystemMessage("Game started: choose one card to pass to your right-hand neighbor")
	return nil
}

// SubmitExchangeCard moves one card from the actor's hand into the exchange
// buffer. Each seat submits exactly once; the barrier resolves atomically
// when the last seat submits.
func (r *Room) SubmitExchangeCard(connID uuid.UUID, cardID string) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.touch()

	actor := r.playerByConn(connID)
	if actor == nil {
		return reject(RejectUnknownPlayer, "connection is not seated in room %s", r.Code)
	}
	if r.phase != PhaseExchange {
		return reject(RejectWrongPhase, "not in the exchange phase")
	}
	if _, dup := r.exchange[actor.Seat]; dup {
		return reject(RejectAlreadySubmitted, "seat %d already submitted an exchange card", actor.Seat)
	}

	card, ok := removeFromHand(actor, cardID)
	if !ok {
		return reject(RejectCardNotInHand, "card %s is not in your hand", cardID)
	}
	r.exchange[actor.Seat] = card
	r.logAction(actor.Seat, "exchange_submit", map[string]interface{}{"card": card.ID()})

	r.fireEventToSeat(actor.Seat, RoomEvent{
		Type: EventExchangeWaiting,
		Payload: map[string]interface{}{
			"submitted": len(r.exchange),
			"expected":  len(r.Players),
		},
	})

	if len(r.exchange) == len(r.Players) {
		r.resolveExchange()
	}
	return nil
}

// resolveExchange rotates the buffered cards one seat leftward: seat i
// receives the card submitted by seat (i-1) mod N. It then draws the first
// table card and opens the first offer round anchored on seat 1.
// Assumes lock is held.
func (r *Room) resolveExchange() {
	n := len(r.Players)
	for i, p := range r.Players {
		from := (i - 1 + n) % n
		gained := r.exchange[from]
		p.Hand = append(p.Hand, gained)
		r.fireEventToSeat(p.Seat, RoomEvent{
			Type:  EventExchangeResolved,
			Card:  newEventCard(gained),
			Cards: eventCards(p.Hand),
			Payload: map[string]interface{}{
				"from_seat": from,
			},
		})
	}
	r.exchange = make(map[int]models.Card)
	r.logAction(-1, "exchange_resolved", nil)
	log.Printf("Room %s: exchange resolved for %d players", r.Code, n)

	// Play starts at the seat after the dealer/host.
	r.ownerIndex = 1 % n
	r.beginOfferRound()
}

// beginOfferRound draws a fresh table card and anchors a new offer round on
// the current owner. Assumes lock is held.
func (r *Room) beginOfferRound() {
	card, ok := r.deck.Draw()
	if !ok {
		r.recycleDiscardPile()
		card, ok = r.deck.Draw()
		if !ok {
			// Deck and discard both empty: every card is in hands or
			// melds. No table card can be produced this round.
			log.Printf("Room %s: no cards left to offer", r.Code)
			r.fireSystemMessage("No cards left in the deck or discard pile")
			return
		}
	}
	r.tableCard = &card
	r.refusals = 0
	r.offerIndex = r.ownerIndex
	r.phase = PhaseOffer
	r.fireOffer()
}

// recycleDiscardPile shuffles the dead pile back into the deck and tells the
// room about it. Assumes lock is held.
func (r *Room) recycleDiscardPile() {
	if len(r.discardPile) == 0 {
		return
	}
	n := len(r.discardPile)
	r.deck.Recycle(r.discardPile)
	r.discardPile = nil
	log.Printf("Room %s: reshuffled %d discarded card(s) into the deck", r.Code, n)
	r.logAction(-1, "deck_reshuffled", map[string]interface{}{"recycled": n})
	r.fireEvent(RoomEvent{
		Type: EventDeckReshuffled,
		Payload: map[string]interface{}{
			"deck_remaining": r.deck.Len(),
		},
	})
	r.fireSystemMessage("Deck exhausted: the discard pile was reshuffled in")
}

// fireOffer announces the current table card and the seat deciding on it.
// Assumes lock is held.
func (r *Room) fireOffer() {
	r.fireEvent(RoomEvent{
		Type: EventOffer,
		Seat: &EventSeat{Seat: r.offerIndex, Alias: r.Players[r.offerIndex].Alias},
		Card: newEventCard(*r.tableCard),
		Payload: map[string]interface{}{
			"owner_seat":     r.ownerIndex,
			"deck_remaining": r.deck.Len(),
		},
	})
}

// HandleOfferResponse processes take/pass from the seat currently deciding.
// The offer proceeds strictly clockwise from the owner, never skipping or
// revisiting a seat within a round.
func (r *Room) HandleOfferResponse(connID uuid.UUID, action string) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.touch()

	actor := r.playerByConn(connID)
	if actor == nil {
		return reject(RejectUnknownPlayer, "connection is not seated in room %s", r.Code)
	}
	if r.phase != PhaseOffer {
		return reject(RejectWrongPhase, "no card is being offered")
	}
	if actor.Seat != r.offerIndex {
		return reject(RejectNotYourTurn, "seat %d is deciding, not seat %d", r.offerIndex, actor.Seat)
	}

	switch action {
	case "take":
		r.ownerIndex = actor.Seat
		r.phase = PhaseMelding
		r.logAction(actor.Seat, "offer_take", map[string]interface{}{"card": r.tableCard.ID()})
		r.fireEvent(RoomEvent{
			Type: EventCardTaken,
			Seat: &EventSeat{Seat: actor.Seat, Alias: actor.Alias},
			Card: newEventCard(*r.tableCard),
		})
		return nil

	case "pass":
		r.refusals++
		r.logAction(actor.Seat, "offer_pass", map[string]interface{}{"card": r.tableCard.ID()})
		r.fireEvent(RoomEvent{
			Type: EventOfferPassed,
			Seat: &EventSeat{Seat: actor.Seat, Alias: actor.Alias},
		})
		if r.refusals >= len(r.Players) {
			// Everyone refused, the owner included: the card is dead and
			// ownership moves one seat clockwise.
			r.discardPile = append(r.discardPile, *r.tableCard)
			r.tableCard = nil
			r.ownerIndex = (r.ownerIndex + 1) % len(r.Players)
			r.beginOfferRound()
			return nil
		}
		r.offerIndex = (r.offerIndex + 1) % len(r.Players)
		r.fireOffer()
		return nil

	default:
		return reject(RejectBadAction, "offer response must be take or pass, got %q", action)
	}
}

// SubmitMeld lays the named hand cards plus the just-taken table card as one
// immutable face-up meld. An empty list simply moves the table card into the
// hand. No combinability check is performed: any grouping is accepted.
func (r *Room) SubmitMeld(connID uuid.UUID, cardIDs []string) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.touch()

	actor := r.playerByConn(connID)
	if actor == nil {
		return reject(RejectUnknownPlayer, "connection is not seated in room %s", r.Code)
	}
	if r.phase != PhaseMelding {
		return reject(RejectWrongPhase, "not in the melding phase")
	}
	if actor.Seat != r.ownerIndex {
		return reject(RejectNotYourTurn, "seat %d took the card, not seat %d", r.ownerIndex, actor.Seat)
	}

	taken := *r.tableCard

	if len(cardIDs) == 0 {
		// Nothing laid down; the taken card joins the hand.
		actor.Hand = append(actor.Hand, taken)
		r.tableCard = nil
		r.phase = PhaseDiscarding
		r.logAction(actor.Seat, "meld_skip", map[string]interface{}{"card": taken.ID()})
		r.fireHandUpdated(actor)
		return nil
	}

	// Unknown ids are treated as not-found and skipped rather than failing
	// the whole submission.
	meld := make([]models.Card, 0, len(cardIDs)+1)
	for _, id := range cardIDs {
		if c, ok := removeFromHand(actor, id); ok {
			meld = append(meld, c)
		} else {
			log.Printf("Room %s: seat %d named card %s not in hand, skipping", r.Code, actor.Seat, id)
		}
	}
	if len(meld) == 0 {
		return reject(RejectCardNotInHand, "none of the named cards are in your hand")
	}
	meld = append(meld, taken)
	r.tableCard = nil
	actor.Melds = append(actor.Melds, meld)
	r.phase = PhaseDiscarding
	r.logAction(actor.Seat, "meld_laid", map[string]interface{}{"size": len(meld)})

	r.fireEvent(RoomEvent{
		Type:  EventMeldLaid,
		Seat:  &EventSeat{Seat: actor.Seat, Alias: actor.Alias},
		Cards: eventCards(meld),
	})
	r.fireHandUpdated(actor)
	r.checkHandComplete(actor)

	if len(actor.Hand) == 0 {
		// Every card is on the table; there is nothing to discard, so the
		// turn passes and a fresh card opens the next round.
		r.ownerIndex = (r.ownerIndex + 1) % len(r.Players)
		r.beginOfferRound()
	}
	return nil
}

// DiscardCard removes the named card from the turn owner's hand and sets it
// as the table card offered in the next round. Ownership advances by exactly
// one seat.
func (r *Room) DiscardCard(connID uuid.UUID, cardID string) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.touch()

	actor := r.playerByConn(connID)
	if actor == nil {
		return reject(RejectUnknownPlayer, "connection is not seated in room %s", r.Code)
	}
	if r.phase != PhaseDiscarding {
		return reject(RejectWrongPhase, "not in the discarding phase")
	}
	if actor.Seat != r.ownerIndex {
		return reject(RejectNotYourTurn, "seat %d must discard, not seat %d", r.ownerIndex, actor.Seat)
	}

	card, ok := removeFromHand(actor, cardID)
	if !ok {
		return reject(RejectCardNotInHand, "card %s is not in your hand", cardID)
	}
	r.tableCard = &card
	r.logAction(actor.Seat, "card_discarded", map[string]interface{}{"card": card.ID()})

	r.fireEvent(RoomEvent{
		Type: EventCardDiscarded,
		Seat: &EventSeat{Seat: actor.Seat, Alias: actor.Alias},
		Card: newEventCard(card),
	})
	r.fireHandUpdated(actor)

	r.ownerIndex = (r.ownerIndex + 1) % len(r.Players)
	r.refusals = 0
	r.offerIndex = r.ownerIndex
	r.phase = PhaseOffer
	r.fireOffer()
	return nil
}

// Chat relays a message from a seated player to the whole room.
func (r *Room) Chat(connID uuid.UUID, message string) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.touch()

	actor := r.playerByConn(connID)
	if actor == nil {
		return reject(RejectUnknownPlayer, "connection is not seated in room %s", r.Code)
	}
	r.fireEvent(RoomEvent{
		Type: EventChatMessage,
		Payload: map[string]interface{}{
			"sender": actor.Alias,
			"msg":    message,
		},
	})
	return nil
}

// HandleDisconnect marks the seat behind the connection as disconnected.
// Game state is untouched; the alias keeps the seat for reconnection.
func (r *Room) HandleDisconnect(connID uuid.UUID) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.touch()

	p := r.playerByConn(connID)
	if p == nil || !p.Connected {
		return
	}
	p.Connected = false
	p.Conn = nil
	log.Printf("Room %s: player %q at seat %d disconnected", r.Code, p.Alias, p.Seat)
	r.logAction(p.Seat, "player_disconnect", nil)
	r.fireLobbyState()
	r.fireSystemMessage(p.Alias + " disconnected")
}

// checkHandComplete announces, once per player, that a seat has laid down
// ten cards. Informational only: play continues. Assumes lock is held.
func (r *Room) checkHandComplete(p *models.Player) {
	if p.HandComplete {
		return
	}
	total := 0
	for _, m := range p.Melds {
		total += len(m)
	}
	if total < meldTarget {
		return
	}
	p.HandComplete = true
	log.Printf("Room %s: seat %d (%s) completed a ten-card hand", r.Code, p.Seat, p.Alias)
	r.logAction(p.Seat, "hand_complete", map[string]interface{}{"melded": total})
	r.fireEvent(RoomEvent{
		Type: EventHandComplete,
		Seat: &EventSeat{Seat: p.Seat, Alias: p.Alias},
	})
	r.fireSystemMessage(p.Alias + " has laid down ten cards!")
}

// replayState re-emits everything a reconnecting player needs: the full
// snapshot (phase, table card, own hand, melds) plus the roster, and, if
// mid-exchange, whether their submission is already buffered. Assumes lock
// is held.
func (r *Room) replayState(p *models.Player) {
	r.fireEventToSeat(p.Seat, RoomEvent{
		Type:  EventSyncState,
		State: r.snapshot(p.Seat),
	})
	r.fireLobbyState()
	r.fireSystemMessage(p.Alias + " reconnected")
}

// fireLobbyState broadcasts the roster. Assumes lock is held.
func (r *Room) fireLobbyState() {
	roster := make([]map[string]interface{}, len(r.Players))
	for i, p := range r.Players {
		roster[i] = map[string]interface{}{
			"seat":      p.Seat,
			"alias":     p.Alias,
			"connected": p.Connected,
		}
	}
	r.fireEvent(RoomEvent{
		Type: EventLobbyState,
		Payload: map[string]interface{}{
			"room_code": r.Code,
			"phase":     string(r.phase),
			"players":   roster,
		},
	})
}

// fireSystemMessage sends a chat line attributed to the system sender.
// Assumes lock is held.
func (r *Room) fireSystemMessage(msg string) {
	r.fireEvent(RoomEvent{
		Type: EventChatMessage,
		Payload: map[string]interface{}{
			"sender": "system",
			"msg":    msg,
		},
	})
}

// fireHandUpdated privately re-sends a player's hand after it changed.
// Assumes lock is held.
func (r *Room) fireHandUpdated(p *models.Player) {
	r.fireEventToSeat(p.Seat, RoomEvent{
		Type:  EventHandUpdated,
		Cards: eventCards(p.Hand),
	})
}

// fireEvent broadcasts an event to every connected seat. Assumes lock is
// held.
func (r *Room) fireEvent(ev RoomEvent) {
	if r.BroadcastFn != nil {
		r.BroadcastFn(ev)
	}
}

// fireEventToSeat sends an event to a single seat. Assumes lock is held.
func (r *Room) fireEventToSeat(seat int, ev RoomEvent) {
	if r.BroadcastToSeatFn != nil {
		r.BroadcastToSeatFn(seat, ev)
	}
}

// playerByConn finds the seat bound to a connection identity. Assumes lock
// is held.
func (r *Room) playerByConn(connID uuid.UUID) *models.Player {
	for _, p := range r.Players {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

// playerByAlias finds a seat by its reconnection key. Assumes lock is held.
func (r *Room) playerByAlias(alias string) *models.Player {
	for _, p := range r.Players {
		if p.Alias == alias {
			return p
		}
	}
	return nil
}

// removeFromHand removes the card with the given identity from the player's
// hand, preserving the order of the rest.
func removeFromHand(p *models.Player, cardID string) (models.Card, bool) {
	for i, c := range p.Hand {
		if c.ID() == cardID {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return c, true
		}
	}
	return models.Card{}, false
}

// touch records activity for the registry's idle reaper. Assumes lock is
// held.
func (r *Room) touch() {
	r.lastActive = time.Now()
}

// IdleFor reports how long the room has gone without an intent.
func (r *Room) IdleFor() time.Duration {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return time.Since(r.lastActive)
}

// ConnectedCount returns the number of seats with a live connection.
func (r *Room) ConnectedCount() int {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	count := 0
	for _, p := range r.Players {
		if p.Connected {
			count++
		}
	}
	return count
}

// CurrentPhase returns the room's active phase.
func (r *Room) CurrentPhase() Phase {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.phase
}

// logAction publishes the action to the historian queue via Redis. The push
// happens off the room goroutine so the lock is never held across a network
// call. Assumes lock is held. Seat -1 marks a room-level action.
func (r *Room) logAction(seat int, actionType string, payload map[string]interface{}) {
	r.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	alias := ""
	if seat >= 0 && seat < len(r.Players) {
		alias = r.Players[seat].Alias
	}
	record := cache.RoomActionRecord{
		RoomID:        r.ID,
		RoomCode:      r.Code,
		ActionIndex:   r.actionIndex,
		ActorSeat:     seat,
		ActorAlias:    alias,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func(rec cache.RoomActionRecord) {
		if cache.Rdb == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishRoomAction(ctx, rec); err != nil {
			log.Printf("Room %s: failed to publish action %d: %v", rec.RoomCode, rec.ActionIndex, err)
		}
	}(record)
}
