package wager

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/live-match-engine/internal/engine/odds"
)

var (
	ErrNoLegs       = errors.New("slip needs at least one leg")
	ErrInvalidStake = errors.New("stake must be positive")
	ErrInvalidPrice = errors.New("leg price must be above 100")
)

// LegResult transiciona exatamente uma vez, de PENDING para um valor terminal.
type LegResult string

const (
	LegPending LegResult = "PENDING"
	LegWon     LegResult = "WON"
	LegLost    LegResult = "LOST"
	LegVoid    LegResult = "VOID" // partida abandonada; a perna sai da conta com preço 1.00
)

func (r LegResult) Terminal() bool { return r != LegPending }

// SlipStatus só vira terminal quando toda perna tem resultado terminal.
type SlipStatus string

const (
	SlipPending     SlipStatus = "PENDING"
	SlipWon         SlipStatus = "WON"
	SlipLost        SlipStatus = "LOST"
	SlipPartialVoid SlipStatus = "PARTIAL_VOID" // venceu com pelo menos uma perna anulada
)

func (s SlipStatus) Terminal() bool { return s != SlipPending }

// Leg é uma seleção dentro de um bilhete: uma partida, um mercado, um
// resultado escolhido e o preço travado na colocação.
type Leg struct {
	ID         string       `json:"id"`
	SlipID     string       `json:"slip_id"`
	MatchID    string       `json:"match_id"`
	Market     string       `json:"market"`
	Outcome    odds.Outcome `json:"outcome"`
	PriceCents int64        `json:"price_cents"` // base 100, travado na colocação
	Result     LegResult    `json:"result"`
}

// Slip é um bilhete: uma ou mais pernas independentes, todas precisando
// vencer para haver pagamento (acumulada a partir de duas).
type Slip struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Currency           string     `json:"currency"`
	Legs               []Leg      `json:"legs"`
	StakeCents         int64      `json:"stake_cents"`
	CombinedPriceCents int64      `json:"combined_price_cents"`
	Status             SlipStatus `json:"status"`
	PayoutCents        int64      `json:"payout_cents"`
	CreatedAt          time.Time  `json:"created_at"`
}

// NewSlip valida e monta um bilhete PENDING, com ids e preço combinado.
func NewSlip(userID, currency string, stakeCents int64, legs []Leg) (*Slip, error) {
	if len(legs) == 0 {
		return nil, ErrNoLegs
	}
	if stakeCents <= 0 {
		return nil, ErrInvalidStake
	}

	slipID := uuid.NewString()
	out := make([]Leg, len(legs))
	for i, l := range legs {
		if l.PriceCents <= 100 {
			return nil, ErrInvalidPrice
		}
		l.ID = uuid.NewString()
		l.SlipID = slipID
		l.Result = LegPending
		if l.Market == "" {
			l.Market = odds.MarketMatchOdds
		}
		out[i] = l
	}

	return &Slip{
		ID:                 slipID,
		UserID:             userID,
		Currency:           currency,
		Legs:               out,
		StakeCents:         stakeCents,
		CombinedPriceCents: CombinedPrice(out),
		Status:             SlipPending,
		CreatedAt:          time.Now().UTC(),
	}, nil
}

// CombinedPrice é o produto dos preços das pernas em base 100.
// Ex.: 150 x 200 x 300 => 900 (1.50 x 2.00 x 3.00 = 9.00).
func CombinedPrice(legs []Leg) int64 {
	acc := int64(100)
	for _, l := range legs {
		acc = acc * l.PriceCents / 100
	}
	return acc
}

// EffectivePrice é o preço combinado pós-liquidação: perna anulada conta como
// 1.00, retirando sua contribuição sem anular o bilhete inteiro.
func EffectivePrice(legs []Leg) int64 {
	acc := int64(100)
	for _, l := range legs {
		if l.Result == LegVoid {
			continue
		}
		acc = acc * l.PriceCents / 100
	}
	return acc
}

// ResolveMatchOdds aplica a regra do mercado 1x2 ao placar final.
func ResolveMatchOdds(outcome odds.Outcome, homeScore, awayScore int) LegResult {
	won := false
	switch outcome {
	case odds.OutcomeHome:
		won = homeScore > awayScore
	case odds.OutcomeDraw:
		won = homeScore == awayScore
	case odds.OutcomeAway:
		won = awayScore > homeScore
	}
	if won {
		return LegWon
	}
	return LegLost
}

// LedgerEntry é um lançamento no razão do usuário. Append-only: o saldo é
// sempre a soma dos deltas aplicados, nunca editado no lugar.
type LedgerEntry struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	Currency           string    `json:"currency"`
	DeltaCents         int64     `json:"delta_cents"`
	BalanceBeforeCents int64     `json:"balance_before_cents"`
	BalanceAfterCents  int64     `json:"balance_after_cents"`
	SlipID             string    `json:"slip_id"`
	CreatedAt          time.Time `json:"created_at"`
}

// UserStats acumula a sequência de bilhetes vencedores e contadores de
// liquidação por usuário.
type UserStats struct {
	UserID           string `json:"user_id"`
	Streak           int    `json:"streak"` // bilhetes WON consecutivos
	SlipsWon         int    `json:"slips_won"`
	SlipsLost        int    `json:"slips_lost"`
	SlipsSettled     int    `json:"slips_settled"`
	TotalPayoutCents int64  `json:"total_payout_cents"`
}
