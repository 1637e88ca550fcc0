package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/live-match-engine/internal/engine/match"
	"github.com/radieske/live-match-engine/internal/engine/odds"
	"github.com/radieske/live-match-engine/internal/engine/settlement"
	"github.com/radieske/live-match-engine/internal/engine/store"
	"github.com/radieske/live-match-engine/internal/engine/wager"
	mcache "github.com/radieske/live-match-engine/internal/match-service/cache"
	"github.com/radieske/live-match-engine/internal/match-service/dto"
)

// API expõe as operações do motor para as camadas externas: ciclo de vida de
// partidas, cotações, bilhetes, cash-out e liquidação manual.
type API struct {
	Log      *zap.Logger
	Registry *match.Registry
	Odds     *odds.Engine
	Valuator *odds.Valuator
	Store    store.Store
	Settler  *settlement.Engine
	Cache    *mcache.OddsCache
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/matches", a.createMatch)
	r.Post("/v1/matches/{id}/start", a.startMatch)
	r.Post("/v1/matches/{id}/stop", a.stopMatch)
	r.Get("/v1/matches/{id}", a.getMatch)
	r.Get("/v1/matches/{id}/odds", a.getOdds)
	r.Post("/v1/matches/{id}/settle", a.settleMatch)
	r.Post("/v1/slips", a.createSlip)
	r.Get("/v1/legs/{id}/cashout", a.cashOut)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// createMatch registra uma partida SCHEDULED no registry.
func (a *API) createMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.MatchID == "" || req.HomeTeam == "" || req.AwayTeam == "" {
		writeError(w, http.StatusBadRequest, "matchId, homeTeam and awayTeam required")
		return
	}

	st := match.NewState(req.MatchID, req.HomeTeam, req.AwayTeam,
		match.TeamRating(req.HomeRating), match.TeamRating(req.AwayRating), req.Derby)
	if err := a.Registry.Register(st); err != nil {
		if errors.Is(err, match.ErrAlreadyRegistered) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, dto.CreateMatchResponse{
		MatchID: req.MatchID,
		Status:  string(match.StatusScheduled),
	})
}

func (a *API) startMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Registry.Start(id); err != nil {
		switch {
		case errors.Is(err, match.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, match.ErrNotScheduled):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"matchId": id, "status": string(match.StatusLive)})
}

func (a *API) stopMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Registry.Stop(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := a.Registry.State(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// getOdds devolve a cotação corrente: cache primeiro, recomputação na falta.
func (a *API) getOdds(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if a.Cache != nil {
		if cached, ok, _ := a.Cache.GetCurrent(r.Context(), id); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	st, err := a.Registry.State(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	snap, err := a.Odds.Compute(st)
	if err != nil {
		a.Log.Error("data integrity: odds rejected",
			zap.String("match_id", id),
			zap.Error(err),
		)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// settleMatch dispara a liquidação manual de uma partida terminal. O caminho
// normal é o settlement-worker via Kafka; este endpoint cobre retries.
func (a *API) settleMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := a.Registry.State(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := a.Settler.SettleMatch(r.Context(), st); err != nil {
		if errors.Is(err, settlement.ErrMatchNotTerminal) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"matchId": id, "status": "SETTLED"})
}

// createSlip valida e grava um bilhete, debitando o stake.
func (a *API) createSlip(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateSlipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.UserID == "" || req.StakeCents <= 0 || len(req.Legs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Currency == "" {
		req.Currency = "BRL"
	}

	legs := make([]wager.Leg, len(req.Legs))
	for i, l := range req.Legs {
		legs[i] = wager.Leg{
			MatchID:    l.MatchID,
			Market:     l.Market,
			Outcome:    odds.Outcome(l.Outcome),
			PriceCents: l.PriceCents,
		}
	}

	slip, err := wager.NewSlip(req.UserID, req.Currency, req.StakeCents, legs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.Store.CreateSlip(r.Context(), slip); err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.CreateSlipResponse{
		SlipID:             slip.ID,
		Status:             string(slip.Status),
		CombinedPriceCents: slip.CombinedPriceCents,
	})
}

// cashOut computa o valor de recompra de uma perna pendente. Inelegível
// devolve o motivo explícito, nunca uma valuation zerada como se fosse real.
func (a *API) cashOut(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	leg, err := a.Store.Leg(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "leg not found")
		return
	}
	if leg.Result.Terminal() {
		writeJSON(w, http.StatusConflict, dto.CashOutResponse{
			LegID:  id,
			Reason: "leg already settled",
		})
		return
	}
	slip, err := a.Store.Slip(r.Context(), leg.SlipID)
	if err != nil {
		writeError(w, http.StatusNotFound, "slip not found")
		return
	}

	st, err := a.Registry.State(leg.MatchID)
	if err != nil {
		// partida fora do registry não está LIVE por definição
		writeJSON(w, http.StatusConflict, dto.CashOutResponse{
			LegID:  id,
			Reason: odds.ErrMatchNotLive.Error(),
		})
		return
	}

	value, err := a.Valuator.Valuate(st, leg.Outcome, slip.StakeCents, leg.PriceCents)
	if err != nil {
		if errors.Is(err, odds.ErrMatchNotLive) || errors.Is(err, odds.ErrCashOutLocked) {
			writeJSON(w, http.StatusConflict, dto.CashOutResponse{LegID: id, Reason: err.Error()})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.CashOutResponse{
		LegID:      id,
		Eligible:   true,
		ValueCents: value,
	})
}
