package events

import "time"

// TickEvent é um lance ocorrido dentro de um minuto simulado.
type TickEvent struct {
	Minute int    `json:"minute"`
	Type   string `json:"type"` // GOAL | CARD | CORNER | SUBSTITUTION | SHOT
	Team   string `json:"team"` // HOME | AWAY
	Player string `json:"player,omitempty"`
	Detail string `json:"detail,omitempty"` // ex: YELLOW | RED
}

// Evento publicado no tópico "match_ticks" a cada minuto simulado.
type MatchTick struct {
	MatchID      string      `json:"match_id"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Status       string      `json:"status"`
	Minute       int         `json:"minute"`
	HomeScore    int         `json:"home_score"`
	AwayScore    int         `json:"away_score"`
	HomeMomentum float64     `json:"home_momentum"`
	AwayMomentum float64     `json:"away_momentum"`
	Events       []TickEvent `json:"events,omitempty"`
	Ts           time.Time   `json:"ts"`
}
