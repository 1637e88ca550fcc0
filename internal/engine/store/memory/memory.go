package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/live-match-engine/internal/engine/store"
	"github.com/radieske/live-match-engine/internal/engine/wager"
)

// Store é a implementação em memória da unidade de trabalho. Um único mutex
// serializa as transações: Begin adquire o lock e Commit/Rollback o solta,
// espelhando o FOR UPDATE do Postgres. Escritas ficam em staging e só são
// aplicadas no Commit, então um Rollback não deixa estado parcial.
type Store struct {
	mu sync.Mutex

	legs        map[string]wager.Leg
	slips       map[string]wager.Slip // legs preenchidas
	legsByMatch map[string][]string
	balances    map[string]int64 // userID|currency -> cents
	ledger      []wager.LedgerEntry
	stats       map[string]*wager.UserStats
	settled     map[string]bool
}

func New() *Store {
	return &Store{
		legs:        make(map[string]wager.Leg),
		slips:       make(map[string]wager.Slip),
		legsByMatch: make(map[string][]string),
		balances:    make(map[string]int64),
		stats:       make(map[string]*wager.UserStats),
		settled:     make(map[string]bool),
	}
}

func balanceKey(userID, currency string) string { return userID + "|" + currency }

// SeedBalance credita saldo inicial direto, sem razão. Só para testes e
// bootstrap local.
func (s *Store) SeedBalance(userID, currency string, cents int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[balanceKey(userID, currency)] += cents
}

// LedgerEntries devolve uma cópia do razão completo.
func (s *Store) LedgerEntries() []wager.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wager.LedgerEntry, len(s.ledger))
	copy(out, s.ledger)
	return out
}

// Stats devolve os agregados do usuário.
func (s *Store) Stats(userID string) wager.UserStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stats[userID]; ok {
		return *st
	}
	return wager.UserStats{UserID: userID}
}

func (s *Store) Leg(_ context.Context, legID string) (wager.Leg, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	leg, ok := s.legs[legID]
	if !ok {
		return wager.Leg{}, store.ErrNotFound
	}
	return leg, nil
}

func (s *Store) Slip(_ context.Context, slipID string) (wager.Slip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slipLocked(slipID)
}

func (s *Store) Balance(_ context.Context, userID, currency string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[balanceKey(userID, currency)], nil
}

// CreateSlip grava o bilhete e debita o stake atomicamente.
func (s *Store) CreateSlip(_ context.Context, slip *wager.Slip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey(slip.UserID, slip.Currency)
	before := s.balances[key]
	if before < slip.StakeCents {
		return store.ErrInsufficientFunds
	}

	s.balances[key] = before - slip.StakeCents
	s.ledger = append(s.ledger, wager.LedgerEntry{
		ID:                 uuid.NewString(),
		UserID:             slip.UserID,
		Currency:           slip.Currency,
		DeltaCents:         -slip.StakeCents,
		BalanceBeforeCents: before,
		BalanceAfterCents:  before - slip.StakeCents,
		SlipID:             slip.ID,
		CreatedAt:          time.Now().UTC(),
	})

	s.slips[slip.ID] = *slip
	for _, leg := range slip.Legs {
		s.legs[leg.ID] = leg
		s.legsByMatch[leg.MatchID] = append(s.legsByMatch[leg.MatchID], leg.ID)
	}
	return nil
}

func (s *Store) Begin(_ context.Context) (store.Tx, error) {
	s.mu.Lock() // solto em Commit/Rollback
	return &tx{
		s:          s,
		legResults: make(map[string]wager.LegResult),
		slipStates: make(map[string]slipUpdate),
		balances:   make(map[string]int64),
	}, nil
}

// slipLocked monta o Slip com as pernas correntes. Chamar com lock.
func (s *Store) slipLocked(slipID string) (wager.Slip, error) {
	slip, ok := s.slips[slipID]
	if !ok {
		return wager.Slip{}, store.ErrNotFound
	}
	legs := make([]wager.Leg, len(slip.Legs))
	for i, l := range slip.Legs {
		legs[i] = s.legs[l.ID]
	}
	slip.Legs = legs
	return slip, nil
}

type slipUpdate struct {
	status wager.SlipStatus
	payout int64
}

type streakOp struct {
	userID string
	won    bool
	payout int64
}

// tx acumula escritas em staging; leituras enxergam o estado commitado mais
// o staging da própria transação.
type tx struct {
	s    *Store
	done bool

	legResults map[string]wager.LegResult
	slipStates map[string]slipUpdate
	balances   map[string]int64
	ledger     []wager.LedgerEntry
	streaks    []streakOp
	settledIDs []string
}

func (t *tx) LegsForMatch(_ context.Context, matchID string) ([]wager.Leg, error) {
	var out []wager.Leg
	for _, id := range t.s.legsByMatch[matchID] {
		leg := t.s.legs[id]
		if res, ok := t.legResults[id]; ok {
			leg.Result = res
		}
		out = append(out, leg)
	}
	return out, nil
}

func (t *tx) UpdateLegResult(_ context.Context, legID string, result wager.LegResult) error {
	if _, ok := t.s.legs[legID]; !ok {
		return store.ErrNotFound
	}
	t.legResults[legID] = result
	return nil
}

func (t *tx) Slip(_ context.Context, slipID string) (wager.Slip, error) {
	slip, err := t.s.slipLocked(slipID)
	if err != nil {
		return wager.Slip{}, err
	}
	for i, leg := range slip.Legs {
		if res, ok := t.legResults[leg.ID]; ok {
			slip.Legs[i].Result = res
		}
	}
	if up, ok := t.slipStates[slipID]; ok {
		slip.Status = up.status
		slip.PayoutCents = up.payout
	}
	return slip, nil
}

func (t *tx) UpdateSlip(_ context.Context, slipID string, status wager.SlipStatus, payoutCents int64) error {
	if _, ok := t.s.slips[slipID]; !ok {
		return store.ErrNotFound
	}
	t.slipStates[slipID] = slipUpdate{status: status, payout: payoutCents}
	return nil
}

func (t *tx) AppendLedger(_ context.Context, userID, currency string, deltaCents int64, slipID string) (wager.LedgerEntry, error) {
	key := balanceKey(userID, currency)
	before, staged := t.balances[key]
	if !staged {
		before = t.s.balances[key]
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
	t.balances[key] = entry.BalanceAfterCents
	t.ledger = append(t.ledger, entry)
	return entry, nil
}

func (t *tx) UpdateStreak(_ context.Context, userID string, won bool, payoutCents int64) error {
	t.streaks = append(t.streaks, streakOp{userID: userID, won: won, payout: payoutCents})
	return nil
}

func (t *tx) MatchSettled(_ context.Context, matchID string) (bool, error) {
	return t.s.settled[matchID], nil
}

func (t *tx) MarkMatchSettled(_ context.Context, matchID string) error {
	t.settledIDs = append(t.settledIDs, matchID)
	return nil
}

// Commit aplica o staging no estado compartilhado e libera o lock.
func (t *tx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true

	for id, res := range t.legResults {
		leg := t.s.legs[id]
		leg.Result = res
		t.s.legs[id] = leg
	}
	for id, up := range t.slipStates {
		slip := t.s.slips[id]
		slip.Status = up.status
		slip.PayoutCents = up.payout
		t.s.slips[id] = slip
	}
	for key, bal := range t.balances {
		t.s.balances[key] = bal
	}
	t.s.ledger = append(t.s.ledger, t.ledger...)
	for _, op := range t.streaks {
		st, ok := t.s.stats[op.userID]
		if !ok {
			st = &wager.UserStats{UserID: op.userID}
			t.s.stats[op.userID] = st
		}
		st.SlipsSettled++
		if op.won {
			st.Streak++
			st.SlipsWon++
			st.TotalPayoutCents += op.payout
		} else {
			st.Streak = 0
			st.SlipsLost++
		}
	}
	for _, id := range t.settledIDs {
		t.s.settled[id] = true
	}

	t.s.mu.Unlock()
	return nil
}

// Rollback descarta o staging e libera o lock. No-op após Commit.
func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.mu.Unlock()
	return nil
}
