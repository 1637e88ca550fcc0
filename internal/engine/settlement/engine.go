package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-match-engine/internal/engine/match"
	"github.com/radieske/live-match-engine/internal/engine/store"
	"github.com/radieske/live-match-engine/internal/engine/wager"
	"github.com/radieske/live-match-engine/pkg/contracts/events"
)

// ErrMatchNotTerminal: só se liquida partida FINISHED ou FAILED.
var ErrMatchNotTerminal = errors.New("match is not in a terminal state")

// Publisher emite a notificação de bilhete liquidado. Pode ser nil.
type Publisher interface {
	PublishSlipSettled(ctx context.Context, e events.SlipSettled) error
}

// Engine liquida todos os bilhetes com pernas na partida encerrada.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa.
type Engine struct {
	Log   *zap.Logger
	Store store.Store
	Publ  Publisher

	OnLegResolved func()       // métricas (counter++)
	OnSlipSettled func(status string)
	OnError       func(string) // métricas por fase
}

func New(log *zap.Logger, st store.Store, publ Publisher) *Engine {
	return &Engine{Log: log, Store: st, Publ: publ}
}

// settledSlip carrega o que precisa ser notificado depois do commit.
type settledSlip struct {
	slip    wager.Slip
	matchID string
}

// SettleMatch resolve toda perna pendente que referencia a partida e fecha os
// bilhetes que ficaram sem perna pendente, creditando o pagamento no razão na
// mesma transação. Idempotente: pernas/bilhetes já terminais não mudam, e uma
// partida já marcada como liquidada vira no-op completo.
func (e *Engine) SettleMatch(ctx context.Context, final match.State) error {
	if !final.Status.Terminal() {
		return ErrMatchNotTerminal
	}

	tx, err := e.Store.Begin(ctx)
	if err != nil {
		e.fail("begin")
		return fmt.Errorf("settlement begin: %w", err)
	}
	defer tx.Rollback()

	done, err := tx.MatchSettled(ctx, final.ID)
	if err != nil {
		e.fail("marker")
		return fmt.Errorf("settlement marker read: %w", err)
	}
	if done {
		e.Log.Info("match already settled, skipping", zap.String("match_id", final.ID))
		return nil
	}

	legs, err := tx.LegsForMatch(ctx, final.ID)
	if err != nil {
		e.fail("load_legs")
		return fmt.Errorf("load legs: %w", err)
	}

	slipIDs := make(map[string]struct{})
	for _, leg := range legs {
		slipIDs[leg.SlipID] = struct{}{}

		if leg.Result.Terminal() {
			continue // transição única: resultado terminal nunca é reescrito
		}

		result := wager.LegVoid // partida abandonada anula a perna
		if final.Status == match.StatusFinished {
			result = wager.ResolveMatchOdds(leg.Outcome, final.HomeScore, final.AwayScore)
		}
		if err := tx.UpdateLegResult(ctx, leg.ID, result); err != nil {
			e.fail("update_leg")
			return fmt.Errorf("update leg %s: %w", leg.ID, err)
		}
		if e.OnLegResolved != nil {
			e.OnLegResolved()
		}
	}

	var notify []settledSlip
	for slipID := range slipIDs {
		slip, err := tx.Slip(ctx, slipID)
		if err != nil {
			e.fail("load_slip")
			return fmt.Errorf("load slip %s: %w", slipID, err)
		}

		st, ok := e.closeSlip(slip, final.ID)
		if !ok {
			continue // ainda há perna pendente em outra partida, ou já terminal
		}

		if err := tx.UpdateSlip(ctx, slip.ID, st.slip.Status, st.slip.PayoutCents); err != nil {
			e.fail("update_slip")
			return fmt.Errorf("update slip %s: %w", slip.ID, err)
		}

		// Crédito e transição do bilhete commitam juntos: nunca existe
		// bilhete WON sem lançamento correspondente no razão.
		if st.slip.PayoutCents > 0 {
			if _, err := tx.AppendLedger(ctx, slip.UserID, slip.Currency, st.slip.PayoutCents, slip.ID); err != nil {
				e.fail("ledger")
				return fmt.Errorf("ledger credit slip %s: %w", slip.ID, err)
			}
		}

		won := st.slip.Status != wager.SlipLost
		if err := tx.UpdateStreak(ctx, slip.UserID, won, st.slip.PayoutCents); err != nil {
			e.fail("streak")
			return fmt.Errorf("streak update %s: %w", slip.UserID, err)
		}

		notify = append(notify, st)
	}

	if err := tx.MarkMatchSettled(ctx, final.ID); err != nil {
		e.fail("marker")
		return fmt.Errorf("mark settled: %w", err)
	}

	if err := tx.Commit(); err != nil {
		e.fail("commit")
		return fmt.Errorf("settlement commit: %w", err)
	}

	e.Log.Info("match settled",
		zap.String("match_id", final.ID),
		zap.Int("legs", len(legs)),
		zap.Int("slips_closed", len(notify)),
	)

	// Notificações só depois do commit: uma por bilhete.
	for _, st := range notify {
		if e.OnSlipSettled != nil {
			e.OnSlipSettled(string(st.slip.Status))
		}
		if e.Publ == nil {
			continue
		}
		ev := events.SlipSettled{
			SlipID:      st.slip.ID,
			UserID:      st.slip.UserID,
			MatchID:     st.matchID,
			Status:      string(st.slip.Status),
			PayoutCents: st.slip.PayoutCents,
			Ts:          time.Now().UTC(),
		}
		if err := e.Publ.PublishSlipSettled(ctx, ev); err != nil {
			e.fail("publish")
			e.Log.Warn("slip settled publish failed",
				zap.String("slip_id", st.slip.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// closeSlip decide o destino de um bilhete cujas pernas já estão todas
// terminais. Qualquer perna LOST derruba o bilhete; caso contrário o
// pagamento usa o preço efetivo, com pernas VOID contando como 1.00.
// matchID identifica a partida cuja liquidação fechou o bilhete.
func (e *Engine) closeSlip(slip wager.Slip, matchID string) (settledSlip, bool) {
	if slip.Status.Terminal() {
		return settledSlip{}, false
	}

	anyLost, anyVoid := false, false
	for _, leg := range slip.Legs {
		if !leg.Result.Terminal() {
			return settledSlip{}, false
		}
		switch leg.Result {
		case wager.LegLost:
			anyLost = true
		case wager.LegVoid:
			anyVoid = true
		}
	}

	if anyLost {
		slip.Status = wager.SlipLost
		slip.PayoutCents = 0
		return settledSlip{slip: slip, matchID: matchID}, true
	}

	slip.Status = wager.SlipWon
	if anyVoid {
		slip.Status = wager.SlipPartialVoid
	}
	slip.PayoutCents = slip.StakeCents * wager.EffectivePrice(slip.Legs) / 100
	return settledSlip{slip: slip, matchID: matchID}, true
}

func (e *Engine) fail(stage string) {
	if e.OnError != nil {
		e.OnError(stage)
	}
}
