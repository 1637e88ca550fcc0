package events

import "time"

// Evento publicado no tópico "match_finished" quando a partida chega a um
// estado terminal. Status FAILED indica partida abandonada: as seleções
// pendentes são anuladas na liquidação.
type MatchFinished struct {
	MatchID    string    `json:"match_id"`
	Status     string    `json:"status"` // FINISHED | FAILED
	Minute     int       `json:"minute"`
	HomeScore  int       `json:"home_score"`
	AwayScore  int       `json:"away_score"`
	FinishedAt time.Time `json:"finished_at"`
}
