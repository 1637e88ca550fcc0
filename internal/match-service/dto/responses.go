package dto

type CreateMatchResponse struct {
	MatchID string `json:"matchId"`
	Status  string `json:"status"`
}

type CreateSlipResponse struct {
	SlipID             string `json:"slipId"`
	Status             string `json:"status"`
	CombinedPriceCents int64  `json:"combined_price_cents"`
}

type CashOutResponse struct {
	LegID      string `json:"legId"`
	Eligible   bool   `json:"eligible"`
	ValueCents int64  `json:"value_cents"`
	Reason     string `json:"reason,omitempty"`
}
