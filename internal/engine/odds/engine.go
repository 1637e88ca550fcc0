package odds

import (
	"errors"
	"math"
	"time"

	"github.com/radieske/live-match-engine/internal/engine/match"
)

// ErrStateOutOfRange indica estado de partida impossível (minuto negativo,
// placar absurdo). Quem chamou deve logar como erro de integridade de dados;
// nenhuma cotação é produzida a partir de lixo.
var ErrStateOutOfRange = errors.New("match state out of range")

// Outcome é a seleção do mercado 1x2.
type Outcome string

const (
	OutcomeHome Outcome = "HOME"
	OutcomeDraw Outcome = "DRAW"
	OutcomeAway Outcome = "AWAY"
)

// MarketMatchOdds é o único mercado cotado por este motor.
const MarketMatchOdds = "1x2"

// Params agrupa as constantes de pricing. Os defaults são escolhas empíricas;
// o contrato é só que as cotações permaneçam monotônicas e dentro dos limites.
type Params struct {
	LeadShiftPerGoal float64 // pontos percentuais por gol de vantagem
	MaxLeadGoals     int     // vantagem além disso não desloca mais
	MomentumTilt     float64 // deslocamento por ponto de diferença de momentum
	TimeAmp          float64 // amplificação dos resultados não-empate com o relógio
	Overround        float64 // margem embutida (>1)
	MinPrice         int64   // clamp inferior do preço (base 100)
	MaxPrice         int64   // clamp superior
	RegularTime      int
	MaxMinute        int // minuto máximo aceito como entrada sã
}

func DefaultParams() Params {
	return Params{
		LeadShiftPerGoal: 0.15,
		MaxLeadGoals:     3,
		MomentumTilt:     0.002,
		TimeAmp:          0.6,
		Overround:        1.06,
		MinPrice:         101,
		MaxPrice:         10000,
		RegularTime:      90,
		MaxMinute:        130,
	}
}

// Snapshot é uma cotação derivada deterministicamente de um estado de
// partida. Nunca é mutado: cada recomputação produz um snapshot novo que
// substitui o anterior.
type Snapshot struct {
	MatchID    string    `json:"match_id"`
	Market     string    `json:"market"`
	Minute     int       `json:"minute"`
	Home       int64     `json:"home"`
	Draw       int64     `json:"draw"`
	Away       int64     `json:"away"`
	ComputedAt time.Time `json:"computed_at"`
}

// Price devolve o preço da seleção pedida.
func (s Snapshot) Price(o Outcome) int64 {
	switch o {
	case OutcomeHome:
		return s.Home
	case OutcomeAway:
		return s.Away
	default:
		return s.Draw
	}
}

// Engine recomputa o mercado 1x2 a partir do estado da partida. Sem
// aleatoriedade: duas chamadas com o mesmo estado devolvem a mesma cotação.
type Engine struct {
	params Params
}

func NewEngine(params Params) *Engine {
	return &Engine{params: params}
}

// Probabilities devolve as probabilidades 1x2 já normalizadas (soma 1).
//
// Modelo: baseline de 1/3 para cada resultado, deslocado pela diferença de
// placar (~15pp por gol de vantagem, empate encolhendo junto), inclinado pelo
// momentum e, havendo vantagem, amplificando os resultados não-empate
// conforme o relógio avança (virada fica mais difícil com menos tempo).
func (e *Engine) Probabilities(st match.State) (home, draw, away float64, err error) {
	if err := e.validate(st); err != nil {
		return 0, 0, 0, err
	}

	home, draw, away = 1.0/3, 1.0/3, 1.0/3

	// Diferença de placar
	diff := st.HomeScore - st.AwayScore
	if diff > e.params.MaxLeadGoals {
		diff = e.params.MaxLeadGoals
	}
	if diff < -e.params.MaxLeadGoals {
		diff = -e.params.MaxLeadGoals
	}
	if diff != 0 {
		shift := e.params.LeadShiftPerGoal * math.Abs(float64(diff))
		if diff > 0 {
			home += shift
			away -= shift * 0.6
			draw -= shift * 0.4
		} else {
			away += shift
			home -= shift * 0.6
			draw -= shift * 0.4
		}
	}

	// Momentum
	tilt := (st.HomeMomentum - st.AwayMomentum) * e.params.MomentumTilt
	home += tilt
	away -= tilt

	// Tempo restante: com vantagem no placar, resultados decididos valem mais
	if diff != 0 {
		elapsed := float64(st.Minute)
		if elapsed > float64(e.params.RegularTime) {
			elapsed = float64(e.params.RegularTime)
		}
		w := 1 + e.params.TimeAmp*(elapsed/float64(e.params.RegularTime))
		home *= w
		away *= w
	}

	// Piso e normalização
	home = math.Max(home, 0.01)
	draw = math.Max(draw, 0.01)
	away = math.Max(away, 0.01)
	total := home + draw + away
	return home / total, draw / total, away / total, nil
}

// WinProbability devolve a probabilidade corrente de uma seleção específica.
// É a mesma derivação usada pela cotação, exigência do cash-out.
func (e *Engine) WinProbability(st match.State, o Outcome) (float64, error) {
	home, draw, away, err := e.Probabilities(st)
	if err != nil {
		return 0, err
	}
	switch o {
	case OutcomeHome:
		return home, nil
	case OutcomeAway:
		return away, nil
	default:
		return draw, nil
	}
}

// Compute converte probabilidades em cotação com overround fixo.
func (e *Engine) Compute(st match.State) (Snapshot, error) {
	home, draw, away, err := e.Probabilities(st)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		MatchID:    st.ID,
		Market:     MarketMatchOdds,
		Minute:     st.Minute,
		Home:       e.price(home),
		Draw:       e.price(draw),
		Away:       e.price(away),
		ComputedAt: time.Now().UTC(),
	}, nil
}

// price inverte a probabilidade em preço base 100, aplica a margem e clampa
// para evitar cotação degenerada.
func (e *Engine) price(prob float64) int64 {
	p := int64(math.Round(100.0 / (prob * e.params.Overround)))
	if p < e.params.MinPrice {
		p = e.params.MinPrice
	}
	if p > e.params.MaxPrice {
		p = e.params.MaxPrice
	}
	return p
}

func (e *Engine) validate(st match.State) error {
	if st.Minute < 0 || st.Minute > e.params.MaxMinute {
		return ErrStateOutOfRange
	}
	if st.HomeScore < 0 || st.AwayScore < 0 || st.HomeScore > 50 || st.AwayScore > 50 {
		return ErrStateOutOfRange
	}
	if st.HomeMomentum < 0 || st.HomeMomentum > 100 || st.AwayMomentum < 0 || st.AwayMomentum > 100 {
		return ErrStateOutOfRange
	}
	return nil
}
