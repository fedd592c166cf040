package game

import (
	"errors"
	"fmt"
)

// RejectReason classifies why an intent was refused without mutating state.
type RejectReason string

const (
	RejectRoomFull         RejectReason = "room_full"
	RejectWrongPhase       RejectReason = "wrong_phase"
	RejectNotYourTurn      RejectReason = "not_your_turn"
	RejectNotHost          RejectReason = "not_host"
	RejectNotEnoughPlayers RejectReason = "not_enough_players"
	RejectAlreadySubmitted RejectReason = "already_submitted"
	RejectCardNotInHand    RejectReason = "card_not_in_hand"
	RejectUnknownPlayer    RejectReason = "unknown_player"
	RejectBadAction        RejectReason = "bad_action"
)

// Rejection is the typed result for an illegal intent. The gateway surfaces
// it to the actor as an error event; the room state is guaranteed untouched.
type Rejection struct {
	Reason RejectReason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

func reject(reason RejectReason, format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the rejection reason from an error, if it carries one.
func ReasonOf(err error) (RejectReason, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}
