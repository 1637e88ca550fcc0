package topics

const (
	// Simulação
	MatchTicks    = "match_ticks"
	OddsUpdates   = "odds_updates"
	MatchFinished = "match_finished"

	// Liquidação
	SlipSettled = "slip_settled"

	// DLQs
	MatchFinishedDLQ = "match_finished_dlq"
)
