package store

import (
	"context"
	"errors"

	"github.com/radieske/live-match-engine/internal/engine/wager"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Store abstrai a persistência de bilhetes, pernas e razão. A liquidação
// roda inteira dentro de um Tx: ou tudo commita, ou nada fica gravado.
type Store interface {
	// Begin abre uma unidade de trabalho. O chamador deve sempre encerrar
	// com Commit ou Rollback; Rollback após Commit é no-op.
	Begin(ctx context.Context) (Tx, error)

	// Leituras fora de transação (API de consulta, cash-out).
	Leg(ctx context.Context, legID string) (wager.Leg, error)
	Slip(ctx context.Context, slipID string) (wager.Slip, error)
	Balance(ctx context.Context, userID, currency string) (int64, error)

	// CreateSlip grava o bilhete e debita o stake do saldo do usuário em uma
	// única transação, com lançamento no razão.
	CreateSlip(ctx context.Context, slip *wager.Slip) error
}

// Tx é a unidade de trabalho transacional da liquidação.
type Tx interface {
	LegsForMatch(ctx context.Context, matchID string) ([]wager.Leg, error)
	UpdateLegResult(ctx context.Context, legID string, result wager.LegResult) error

	Slip(ctx context.Context, slipID string) (wager.Slip, error)
	UpdateSlip(ctx context.Context, slipID string, status wager.SlipStatus, payoutCents int64) error

	// AppendLedger aplica o delta no saldo via caminho único de
	// read-modify-write e registra o lançamento. Nunca edita lançamentos.
	AppendLedger(ctx context.Context, userID, currency string, deltaCents int64, slipID string) (wager.LedgerEntry, error)

	// UpdateStreak incrementa a sequência em vitória e zera em derrota,
	// atualizando os contadores agregados.
	UpdateStreak(ctx context.Context, userID string, won bool, payoutCents int64) error

	MatchSettled(ctx context.Context, matchID string) (bool, error)
	MarkMatchSettled(ctx context.Context, matchID string) error

	Commit() error
	Rollback() error
}
