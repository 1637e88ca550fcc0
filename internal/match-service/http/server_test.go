package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-match-engine/internal/engine/match"
	"github.com/radieske/live-match-engine/internal/engine/odds"
	"github.com/radieske/live-match-engine/internal/engine/settlement"
	"github.com/radieske/live-match-engine/internal/engine/store/memory"
	"github.com/radieske/live-match-engine/internal/match-service/dto"
)

func newTestAPI(t *testing.T) (*API, *memory.Store) {
	t.Helper()
	mem := memory.New()
	engine := odds.NewEngine(odds.DefaultParams())
	registry := match.NewRegistry(zap.NewNop(), match.RegistryConfig{
		Params:       match.DefaultParams(),
		TickInterval: time.Millisecond,
		Seed:         func(string) int64 { return 42 },
	})
	// dreno: ninguém consome os updates nos testes de API
	go func() {
		for range registry.Updates() {
		}
	}()

	return &API{
		Log:      zap.NewNop(),
		Registry: registry,
		Odds:     engine,
		Valuator: odds.NewValuator(engine, odds.DefaultCashOutParams()),
		Store:    mem,
		Settler:  settlement.New(zap.NewNop(), mem, nil),
	}, mem
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func createMatchReq(id string) dto.CreateMatchRequest {
	return dto.CreateMatchRequest{
		MatchID:    id,
		HomeTeam:   "Botafogo",
		AwayTeam:   "Fluminense",
		HomeRating: dto.TeamRating{Attack: 75, Defense: 70, Discipline: 68},
		AwayRating: dto.TeamRating{Attack: 72, Defense: 74, Discipline: 80},
		Derby:      true,
	}
}

func TestCreateMatchEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)
	router := api.Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/matches", createMatchReq("m1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp dto.CreateMatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.MatchID != "m1" || resp.Status != "SCHEDULED" {
		t.Fatalf("response = %+v", resp)
	}

	// duplicata
	rec = doJSON(t, router, http.MethodPost, "/v1/matches", createMatchReq("m1"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", rec.Code)
	}

	// payload incompleto
	rec = doJSON(t, router, http.MethodPost, "/v1/matches", dto.CreateMatchRequest{MatchID: "m2"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("incomplete status = %d", rec.Code)
	}
}

func TestMatchLifecycleEndpoints(t *testing.T) {
	api, _ := newTestAPI(t)
	router := api.Router()

	doJSON(t, router, http.MethodPost, "/v1/matches", createMatchReq("m1"))

	rec := doJSON(t, router, http.MethodPost, "/v1/matches/m1/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, body = %s", rec.Code, rec.Body.String())
	}
	// segundo start conflita
	rec = doJSON(t, router, http.MethodPost, "/v1/matches/m1/start", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double start status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/matches/m1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var st match.State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.Status != match.StatusLive && st.Status != match.StatusFinished {
		t.Fatalf("state after start = %s", st.Status)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/matches/m1/stop", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("stop status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/matches/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown match status = %d", rec.Code)
	}
}

func TestGetOddsEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)
	router := api.Router()

	doJSON(t, router, http.MethodPost, "/v1/matches", createMatchReq("m1"))
	doJSON(t, router, http.MethodPost, "/v1/matches/m1/start", nil)

	rec := doJSON(t, router, http.MethodGet, "/v1/matches/m1/odds", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("odds status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var snap odds.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Home < 101 || snap.Draw < 101 || snap.Away < 101 {
		t.Fatalf("degenerate prices: %+v", snap)
	}
}

func TestCreateSlipEndpoint(t *testing.T) {
	api, mem := newTestAPI(t)
	router := api.Router()
	mem.SeedBalance("u1", "BRL", 1_000)

	req := dto.CreateSlipRequest{
		UserID:     "u1",
		StakeCents: 300,
		Legs: []dto.SlipLegRequest{
			{MatchID: "m1", Outcome: "HOME", PriceCents: 250},
		},
	}
	rec := doJSON(t, router, http.MethodPost, "/v1/slips", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp dto.CreateSlipResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SlipID == "" || resp.Status != "PENDING" || resp.CombinedPriceCents != 250 {
		t.Fatalf("response = %+v", resp)
	}

	// saldo insuficiente
	req.StakeCents = 5_000
	rec = doJSON(t, router, http.MethodPost, "/v1/slips", req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("insufficient funds status = %d", rec.Code)
	}

	// preço inválido
	req.StakeCents = 100
	req.Legs[0].PriceCents = 100
	rec = doJSON(t, router, http.MethodPost, "/v1/slips", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid price status = %d", rec.Code)
	}
}

func TestCashOutEndpoint(t *testing.T) {
	api, mem := newTestAPI(t)
	router := api.Router()
	mem.SeedBalance("u1", "BRL", 1_000)

	doJSON(t, router, http.MethodPost, "/v1/matches", createMatchReq("m1"))

	req := dto.CreateSlipRequest{
		UserID:     "u1",
		StakeCents: 300,
		Legs: []dto.SlipLegRequest{
			{MatchID: "m1", Outcome: "HOME", PriceCents: 250},
		},
	}
	rec := doJSON(t, router, http.MethodPost, "/v1/slips", req)
	var created dto.CreateSlipResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode slip: %v", err)
	}
	slip, err := mem.Slip(context.Background(), created.SlipID)
	if err != nil {
		t.Fatalf("load slip: %v", err)
	}
	legID := slip.Legs[0].ID

	// partida ainda SCHEDULED: inelegível com motivo explícito
	rec = doJSON(t, router, http.MethodGet, "/v1/legs/"+legID+"/cashout", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("scheduled cash-out status = %d", rec.Code)
	}
	var co dto.CashOutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &co); err != nil {
		t.Fatalf("decode cash-out: %v", err)
	}
	if co.Eligible || co.Reason == "" {
		t.Fatalf("ineligible response without reason: %+v", co)
	}

	// com a partida LIVE a valuation sai positiva
	doJSON(t, router, http.MethodPost, "/v1/matches/m1/start", nil)
	rec = doJSON(t, router, http.MethodGet, "/v1/legs/"+legID+"/cashout", nil)
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &co); err != nil {
			t.Fatalf("decode cash-out: %v", err)
		}
		if !co.Eligible || co.ValueCents <= 0 {
			t.Fatalf("live cash-out = %+v", co)
		}
	} else if rec.Code != http.StatusConflict {
		// a simulação de 1ms pode já ter passado da trava; qualquer outra
		// resposta é bug
		t.Fatalf("live cash-out status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// perna desconhecida
	rec = doJSON(t, router, http.MethodGet, "/v1/legs/ghost/cashout", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown leg status = %d", rec.Code)
	}
}

func TestSettleEndpoint(t *testing.T) {
	api, mem := newTestAPI(t)
	router := api.Router()
	mem.SeedBalance("u1", "BRL", 1_000)

	doJSON(t, router, http.MethodPost, "/v1/matches", createMatchReq("m1"))

	// partida SCHEDULED não liquida
	rec := doJSON(t, router, http.MethodPost, "/v1/matches/m1/settle", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("settle scheduled status = %d", rec.Code)
	}

	// roda até o fim e então liquida
	doJSON(t, router, http.MethodPost, "/v1/matches/m1/start", nil)
	deadline := time.Now().Add(10 * time.Second)
	for {
		rec = doJSON(t, router, http.MethodGet, "/v1/matches/m1", nil)
		var st match.State
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		if st.Status.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("match never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/matches/m1/settle", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("settle status = %d, body = %s", rec.Code, rec.Body.String())
	}
	// repetir é seguro (idempotente)
	rec = doJSON(t, router, http.MethodPost, "/v1/matches/m1/settle", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resettle status = %d", rec.Code)
	}
}
