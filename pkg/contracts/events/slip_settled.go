package events

import "time"

// Evento emitido pelo settlement após liquidar um bilhete.
type SlipSettled struct {
	SlipID      string    `json:"slip_id"`
	UserID      string    `json:"user_id"`
	MatchID     string    `json:"match_id"`
	Status      string    `json:"status"` // WON | LOST | PARTIAL_VOID
	PayoutCents int64     `json:"payout_cents"`
	Ts          time.Time `json:"ts"`
}
