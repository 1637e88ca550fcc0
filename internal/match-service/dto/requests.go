package dto

// TeamRating espelha os atributos de time aceitos na criação de partida.
type TeamRating struct {
	Attack     int `json:"attack"`
	Defense    int `json:"defense"`
	Discipline int `json:"discipline"`
}

type CreateMatchRequest struct {
	MatchID    string     `json:"matchId"`
	HomeTeam   string     `json:"homeTeam"`
	AwayTeam   string     `json:"awayTeam"`
	HomeRating TeamRating `json:"homeRating"`
	AwayRating TeamRating `json:"awayRating"`
	Derby      bool       `json:"derby"`
}

type SlipLegRequest struct {
	MatchID    string `json:"matchId"`
	Market     string `json:"market,omitempty"` // default "1x2"
	Outcome    string `json:"outcome"`          // HOME | DRAW | AWAY
	PriceCents int64  `json:"price_cents"`      // preço visto pelo cliente, base 100
}

type CreateSlipRequest struct {
	UserID     string           `json:"userId"`
	Currency   string           `json:"currency,omitempty"` // default "BRL"
	StakeCents int64            `json:"stake_cents"`
	Legs       []SlipLegRequest `json:"legs"`
}
