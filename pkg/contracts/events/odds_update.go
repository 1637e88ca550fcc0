package events

import "time"

// Preços inteiros em base 100 (100 = 1.00).
type Prices struct {
	Home int64 `json:"home"`
	Draw int64 `json:"draw"`
	Away int64 `json:"away"`
}

// Evento publicado no tópico "odds_updates" após cada recomputação.
type OddsUpdate struct {
	MatchID   string    `json:"match_id"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	Market    string    `json:"market"` // "1x2"
	Minute    int       `json:"minute"`
	Prices    Prices    `json:"prices"`
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source"`  // "match-service"
	Version   int64     `json:"version"` // incrementado a cada atualização da partida
}
