package wager

import (
	"errors"
	"testing"

	"github.com/radieske/live-match-engine/internal/engine/odds"
)

func TestNewSlipValidation(t *testing.T) {
	good := []Leg{{MatchID: "m1", Outcome: odds.OutcomeHome, PriceCents: 250}}

	if _, err := NewSlip("u1", "BRL", 1000, nil); !errors.Is(err, ErrNoLegs) {
		t.Fatalf("no legs err = %v, want ErrNoLegs", err)
	}
	if _, err := NewSlip("u1", "BRL", 0, good); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("zero stake err = %v, want ErrInvalidStake", err)
	}
	if _, err := NewSlip("u1", "BRL", -50, good); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("negative stake err = %v, want ErrInvalidStake", err)
	}

	bad := []Leg{{MatchID: "m1", Outcome: odds.OutcomeHome, PriceCents: 100}}
	if _, err := NewSlip("u1", "BRL", 1000, bad); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("price 1.00 err = %v, want ErrInvalidPrice", err)
	}
}

func TestNewSlipDefaults(t *testing.T) {
	legs := []Leg{
		{MatchID: "m1", Outcome: odds.OutcomeHome, PriceCents: 150},
		{MatchID: "m2", Market: "1x2", Outcome: odds.OutcomeAway, PriceCents: 200},
	}
	slip, err := NewSlip("u1", "BRL", 1000, legs)
	if err != nil {
		t.Fatalf("new slip: %v", err)
	}

	if slip.ID == "" || slip.Status != SlipPending {
		t.Fatalf("slip not pending with id: %+v", slip)
	}
	if slip.CombinedPriceCents != 300 {
		t.Fatalf("combined price = %d, want 300", slip.CombinedPriceCents)
	}
	for _, leg := range slip.Legs {
		if leg.ID == "" || leg.SlipID != slip.ID {
			t.Fatalf("leg not linked to slip: %+v", leg)
		}
		if leg.Market != odds.MarketMatchOdds {
			t.Fatalf("market = %q, want %q", leg.Market, odds.MarketMatchOdds)
		}
		if leg.Result != LegPending {
			t.Fatalf("leg result = %s, want PENDING", leg.Result)
		}
	}
}

func TestCombinedPrice(t *testing.T) {
	cases := []struct {
		prices []int64
		want   int64
	}{
		{[]int64{250}, 250},
		{[]int64{150, 200}, 300},
		{[]int64{150, 200, 300}, 900},
		{[]int64{101, 101}, 102}, // truncamento inteiro
	}
	for _, tc := range cases {
		legs := make([]Leg, len(tc.prices))
		for i, p := range tc.prices {
			legs[i] = Leg{PriceCents: p}
		}
		if got := CombinedPrice(legs); got != tc.want {
			t.Fatalf("CombinedPrice(%v) = %d, want %d", tc.prices, got, tc.want)
		}
	}
}

func TestEffectivePriceSkipsVoid(t *testing.T) {
	legs := []Leg{
		{PriceCents: 150, Result: LegWon},
		{PriceCents: 200, Result: LegVoid},
		{PriceCents: 300, Result: LegWon},
	}
	if got := EffectivePrice(legs); got != 450 {
		t.Fatalf("EffectivePrice = %d, want 450", got)
	}

	allVoid := []Leg{
		{PriceCents: 150, Result: LegVoid},
		{PriceCents: 200, Result: LegVoid},
	}
	// tudo anulado: preço efetivo 1.00, o bilhete devolve o stake
	if got := EffectivePrice(allVoid); got != 100 {
		t.Fatalf("EffectivePrice all void = %d, want 100", got)
	}
}

func TestResolveMatchOdds(t *testing.T) {
	cases := []struct {
		outcome    odds.Outcome
		home, away int
		want       LegResult
	}{
		{odds.OutcomeHome, 2, 1, LegWon},
		{odds.OutcomeHome, 1, 1, LegLost},
		{odds.OutcomeHome, 0, 1, LegLost},
		{odds.OutcomeDraw, 0, 0, LegWon},
		{odds.OutcomeDraw, 3, 3, LegWon},
		{odds.OutcomeDraw, 2, 1, LegLost},
		{odds.OutcomeAway, 0, 1, LegWon},
		{odds.OutcomeAway, 1, 1, LegLost},
		{odds.OutcomeAway, 2, 0, LegLost},
	}
	for _, tc := range cases {
		got := ResolveMatchOdds(tc.outcome, tc.home, tc.away)
		if got != tc.want {
			t.Fatalf("ResolveMatchOdds(%s, %d-%d) = %s, want %s",
				tc.outcome, tc.home, tc.away, got, tc.want)
		}
	}
}

func TestTerminalTransitions(t *testing.T) {
	if LegPending.Terminal() {
		t.Fatalf("PENDING leg must not be terminal")
	}
	for _, r := range []LegResult{LegWon, LegLost, LegVoid} {
		if !r.Terminal() {
			t.Fatalf("%s must be terminal", r)
		}
	}

	if SlipPending.Terminal() {
		t.Fatalf("PENDING slip must not be terminal")
	}
	for _, s := range []SlipStatus{SlipWon, SlipLost, SlipPartialVoid} {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
}
