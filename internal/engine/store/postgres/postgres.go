package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/live-match-engine/internal/engine/odds"
	"github.com/radieske/live-match-engine/internal/engine/store"
	"github.com/radieske/live-match-engine/internal/engine/wager"
)

// Store implementa store.Store sobre Postgres. O razão é append-only e todo
// caminho de saldo passa por SELECT ... FOR UPDATE na linha do usuário, então
// liquidações concorrentes sobre o mesmo usuário nunca perdem atualização.
type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

func (s *Store) Leg(ctx context.Context, legID string) (wager.Leg, error) {
	return scanLeg(s.db.QueryRowContext(ctx, legQuery+` WHERE id=$1`, legID))
}

func (s *Store) Slip(ctx context.Context, slipID string) (wager.Slip, error) {
	return loadSlip(ctx, s.db, slipID)
}

func (s *Store) Balance(ctx context.Context, userID, currency string) (int64, error) {
	var bal int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance_cents FROM user_balances WHERE user_id=$1 AND currency=$2`,
		userID, currency).Scan(&bal)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return bal, err
}

// CreateSlip grava bilhete e pernas e debita o stake, tudo numa transação.
// Garante lock pessimista na linha de saldo.
func (s *Store) CreateSlip(ctx context.Context, slip *wager.Slip) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	before, err := lockBalance(ctx, tx, slip.UserID, slip.Currency)
	if err != nil {
		return err
	}
	if before < slip.StakeCents {
		return store.ErrInsufficientFunds
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE user_balances SET balance_cents = balance_cents - $1, version = version + 1
		 WHERE user_id=$2 AND currency=$3`,
		slip.StakeCents, slip.UserID, slip.Currency); err != nil {
		return err
	}

	if err = insertLedger(ctx, tx, wager.LedgerEntry{
		ID:                 uuid.NewString(),
		UserID:             slip.UserID,
		Currency:           slip.Currency,
		DeltaCents:         -slip.StakeCents,
		BalanceBeforeCents: before,
		BalanceAfterCents:  before - slip.StakeCents,
		SlipID:             slip.ID,
		CreatedAt:          time.Now().UTC(),
	}); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO wager_slips (id, user_id, currency, stake_cents, combined_price_cents, status, payout_cents, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,0,$7)`,
		slip.ID, slip.UserID, slip.Currency, slip.StakeCents, slip.CombinedPriceCents,
		string(slip.Status), slip.CreatedAt); err != nil {
		return err
	}
	for _, leg := range slip.Legs {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO wager_legs (id, slip_id, match_id, market, outcome, price_cents, result)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			leg.ID, leg.SlipID, leg.MatchID, leg.Market, string(leg.Outcome),
			leg.PriceCents, string(leg.Result)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

type pgTx struct{ tx *sql.Tx }

func (t *pgTx) LegsForMatch(ctx context.Context, matchID string) ([]wager.Leg, error) {
	// FOR UPDATE: as pernas da partida ficam travadas até o fim da liquidação
	rows, err := t.tx.QueryContext(ctx, legQuery+` WHERE match_id=$1 ORDER BY id FOR UPDATE`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wager.Leg
	for rows.Next() {
		leg, err := scanLeg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, leg)
	}
	return out, rows.Err()
}

func (t *pgTx) UpdateLegResult(ctx context.Context, legID string, result wager.LegResult) error {
	// só transiciona perna ainda pendente
	_, err := t.tx.ExecContext(ctx,
		`UPDATE wager_legs SET result=$1 WHERE id=$2 AND result='PENDING'`,
		string(result), legID)
	return err
}

func (t *pgTx) Slip(ctx context.Context, slipID string) (wager.Slip, error) {
	return loadSlip(ctx, t.tx, slipID)
}

func (t *pgTx) UpdateSlip(ctx context.Context, slipID string, status wager.SlipStatus, payoutCents int64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE wager_slips SET status=$1, payout_cents=$2, settled_at=NOW()
		 WHERE id=$3 AND status='PENDING'`,
		string(status), payoutCents, slipID)
	return err
}

func (t *pgTx) AppendLedger(ctx context.Context, userID, currency string, deltaCents int64, slipID string) (wager.LedgerEntry, error) {
	before, err := lockBalance(ctx, t.tx, userID, currency)
	if err != nil {
		return wager.LedgerEntry{}, err
	}

	if _, err = t.tx.ExecContext(ctx,
		`UPDATE user_balances SET balance_cents = balance_cents + $1, version = version + 1
		 WHERE user_id=$2 AND currency=$3`,
		deltaCents, userID, currency); err != nil {
		return wager.LedgerEntry{}, err
	}

	entry := wager.LedgerEntry{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Currency:           currency,
		DeltaCents:         deltaCents,
		BalanceBeforeCents: before,
		BalanceAfterCents:  before + deltaCents,
		SlipID:             slipID,
		CreatedAt:          time.Now().UTC(),
	}
	if err = insertLedger(ctx, t.tx, entry); err != nil {
		return wager.LedgerEntry{}, err
	}
	return entry, nil
}

func (t *pgTx) UpdateStreak(ctx context.Context, userID string, won bool, payoutCents int64) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, streak, slips_won, slips_lost, slips_settled, total_payout_cents)
		VALUES ($1, CASE WHEN $2 THEN 1 ELSE 0 END,
		        CASE WHEN $2 THEN 1 ELSE 0 END,
		        CASE WHEN $2 THEN 0 ELSE 1 END, 1, $3)
		ON CONFLICT (user_id) DO UPDATE SET
		  streak             = CASE WHEN $2 THEN user_stats.streak + 1 ELSE 0 END,
		  slips_won          = user_stats.slips_won  + CASE WHEN $2 THEN 1 ELSE 0 END,
		  slips_lost         = user_stats.slips_lost + CASE WHEN $2 THEN 0 ELSE 1 END,
		  slips_settled      = user_stats.slips_settled + 1,
		  total_payout_cents = user_stats.total_payout_cents + $3`,
		userID, won, payoutCents)
	return err
}

func (t *pgTx) MatchSettled(ctx context.Context, matchID string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx,
		`SELECT 1 FROM settled_matches WHERE match_id=$1`, matchID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (t *pgTx) MarkMatchSettled(ctx context.Context, matchID string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO settled_matches (match_id, settled_at) VALUES ($1, NOW())
		 ON CONFLICT (match_id) DO NOTHING`, matchID)
	return err
}

func (t *pgTx) Commit() error   { return t.tx.Commit() }
func (t *pgTx) Rollback() error { return t.tx.Rollback() }

const legQuery = `SELECT id, slip_id, match_id, market, outcome, price_cents, result FROM wager_legs`

type rowScanner interface{ Scan(dest ...any) error }

func scanLeg(row rowScanner) (wager.Leg, error) {
	var leg wager.Leg
	var outcome, result string
	err := row.Scan(&leg.ID, &leg.SlipID, &leg.MatchID, &leg.Market, &outcome, &leg.PriceCents, &result)
	if err == sql.ErrNoRows {
		return wager.Leg{}, store.ErrNotFound
	}
	if err != nil {
		return wager.Leg{}, err
	}
	leg.Outcome = odds.Outcome(outcome)
	leg.Result = wager.LegResult(result)
	return leg, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadSlip(ctx context.Context, q querier, slipID string) (wager.Slip, error) {
	var slip wager.Slip
	var status string
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, currency, stake_cents, combined_price_cents, status, payout_cents, created_at
		FROM wager_slips WHERE id=$1`, slipID).
		Scan(&slip.ID, &slip.UserID, &slip.Currency, &slip.StakeCents,
			&slip.CombinedPriceCents, &status, &slip.PayoutCents, &slip.CreatedAt)
	if err == sql.ErrNoRows {
		return wager.Slip{}, store.ErrNotFound
	}
	if err != nil {
		return wager.Slip{}, err
	}
	slip.Status = wager.SlipStatus(status)

	rows, err := q.QueryContext(ctx, legQuery+` WHERE slip_id=$1 ORDER BY id`, slipID)
	if err != nil {
		return wager.Slip{}, err
	}
	defer rows.Close()
	for rows.Next() {
		leg, err := scanLeg(rows)
		if err != nil {
			return wager.Slip{}, err
		}
		slip.Legs = append(slip.Legs, leg)
	}
	return slip, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// lockBalance trava a linha de saldo do usuário, criando a carteira zerada
// quando não existe.
func lockBalance(ctx context.Context, tx execer, userID, currency string) (int64, error) {
	var bal int64
	err := tx.QueryRowContext(ctx,
		`SELECT balance_cents FROM user_balances WHERE user_id=$1 AND currency=$2 FOR UPDATE`,
		userID, currency).Scan(&bal)
	if err == sql.ErrNoRows {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO user_balances (user_id, currency, balance_cents, version) VALUES ($1,$2,0,1)`,
			userID, currency); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return bal, err
}

func insertLedger(ctx context.Context, tx execer, e wager.LedgerEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries
		  (id, user_id, currency, delta_cents, balance_before_cents, balance_after_cents, slip_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.UserID, e.Currency, e.DeltaCents, e.BalanceBeforeCents, e.BalanceAfterCents,
		e.SlipID, e.CreatedAt)
	return err
}
