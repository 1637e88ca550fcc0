package odds

import (
	"errors"
	"math"

	"github.com/radieske/live-match-engine/internal/engine/match"
)

var (
	// ErrMatchNotLive: cash-out só vale com a partida LIVE. Nunca devolvemos
	// valuation zerada como se fosse real.
	ErrMatchNotLive = errors.New("cash-out not eligible: match not live")
	// ErrCashOutLocked: a partir do minuto de trava o cash-out é desabilitado.
	ErrCashOutLocked = errors.New("cash-out not eligible: lock-out minute reached")
)

// CashOutParams parametriza a valuation de cash-out.
type CashOutParams struct {
	LockMinute int     // cash-out bloqueado a partir deste minuto
	Discount   float64 // fator de desconto de liquidez (0-1)
}

func DefaultCashOutParams() CashOutParams {
	return CashOutParams{
		LockMinute: 75,
		Discount:   0.88,
	}
}

// Valuator computa o valor justo de recompra de uma seleção pendente dado o
// estado corrente da partida. A probabilidade usada é a mesma do pricing 1x2.
type Valuator struct {
	engine *Engine
	params CashOutParams
}

func NewValuator(engine *Engine, params CashOutParams) *Valuator {
	return &Valuator{engine: engine, params: params}
}

// Valuate devolve o valor de cash-out em centavos para a seleção.
//
// valor = p * (stake + (potencial - stake) * desconto), clampado em
// [0, potencial]. O stake também escala com p: só volta se a seleção ganhar.
// Monotônico em p por construção: mantidas as demais variáveis, aumentar a
// probabilidade de vitória nunca reduz a valuation.
func (v *Valuator) Valuate(st match.State, outcome Outcome, stakeCents, priceCents int64) (int64, error) {
	if st.Status != match.StatusLive {
		return 0, ErrMatchNotLive
	}
	if st.Minute >= v.params.LockMinute {
		return 0, ErrCashOutLocked
	}

	winProb, err := v.engine.WinProbability(st, outcome)
	if err != nil {
		return 0, err
	}

	potential := stakeCents * priceCents / 100
	value := int64(math.Round(winProb * (float64(stakeCents) + float64(potential-stakeCents)*v.params.Discount)))

	if value < 0 {
		value = 0
	}
	if value > potential {
		value = potential
	}
	return value, nil
}
