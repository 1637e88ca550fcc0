package match

import "time"

// Status do ciclo de vida de uma partida simulada.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusLive      Status = "LIVE"
	StatusFinished  Status = "FINISHED"
	StatusFailed    Status = "FAILED" // simulação abortada; seleções pendentes são anuladas
)

// Terminal indica se o status não admite mais mutação.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// Side identifica o lado da partida afetado por um lance.
type Side string

const (
	SideHome Side = "HOME"
	SideAway Side = "AWAY"
)

type EventType string

const (
	EventGoal         EventType = "GOAL"
	EventCard         EventType = "CARD"
	EventCorner       EventType = "CORNER"
	EventSubstitution EventType = "SUBSTITUTION"
	EventShot         EventType = "SHOT"
)

const (
	CardYellow = "YELLOW"
	CardRed    = "RED"
)

// TeamRating são os atributos fixos de um time usados na geração de lances.
// Escala 1-100; a média da liga fica em torno de 70.
type TeamRating struct {
	Attack     int `json:"attack"`
	Defense    int `json:"defense"`
	Discipline int `json:"discipline"`
}

// Event é um lance ocorrido num minuto. O log de eventos da partida é
// append-only: um Event nunca é alterado depois de aplicado.
type Event struct {
	Minute int       `json:"minute"`
	Type   EventType `json:"type"`
	Team   Side      `json:"team"`
	Player string    `json:"player,omitempty"`
	Detail string    `json:"detail,omitempty"` // YELLOW | RED para cartões
}

// State é o estado canônico de uma partida. Enquanto LIVE, pertence
// exclusivamente ao Simulator que a conduz; fora dele circulam apenas cópias.
type State struct {
	ID         string     `json:"id"`
	HomeTeam   string     `json:"home_team"`
	AwayTeam   string     `json:"away_team"`
	HomeRating TeamRating `json:"home_rating"`
	AwayRating TeamRating `json:"away_rating"`
	Derby      bool       `json:"derby"`

	Status       Status  `json:"status"`
	Minute       int     `json:"minute"`
	HomeScore    int     `json:"home_score"`
	AwayScore    int     `json:"away_score"`
	HomeMomentum float64 `json:"home_momentum"` // 0-100, começa em 50
	AwayMomentum float64 `json:"away_momentum"`
	Stoppage     int     `json:"stoppage"` // acréscimos sorteados no início (1-5)

	Events    []Event   `json:"events,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState cria uma partida SCHEDULED com momentum neutro.
func NewState(id, homeTeam, awayTeam string, home, away TeamRating, derby bool) *State {
	return &State{
		ID:           id,
		HomeTeam:     homeTeam,
		AwayTeam:     awayTeam,
		HomeRating:   home,
		AwayRating:   away,
		Derby:        derby,
		Status:       StatusScheduled,
		HomeMomentum: 50,
		AwayMomentum: 50,
		UpdatedAt:    time.Now().UTC(),
	}
}

// Snapshot devolve uma cópia independente do estado, incluindo o log de eventos.
func (s *State) Snapshot() State {
	cp := *s
	if len(s.Events) > 0 {
		cp.Events = make([]Event, len(s.Events))
		copy(cp.Events, s.Events)
	}
	return cp
}

// Momentum devolve o momentum do lado pedido.
func (s *State) Momentum(side Side) float64 {
	if side == SideHome {
		return s.HomeMomentum
	}
	return s.AwayMomentum
}

// Rating devolve os atributos do lado pedido.
func (s *State) Rating(side Side) TeamRating {
	if side == SideHome {
		return s.HomeRating
	}
	return s.AwayRating
}
