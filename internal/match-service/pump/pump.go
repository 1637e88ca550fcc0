package pump

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-match-engine/internal/engine/broadcast"
	"github.com/radieske/live-match-engine/internal/engine/match"
	"github.com/radieske/live-match-engine/internal/engine/odds"
	mcache "github.com/radieske/live-match-engine/internal/match-service/cache"
	"github.com/radieske/live-match-engine/pkg/contracts/events"
)

// Pump drena o canal de updates das simulações e faz o trabalho de borda:
// recomputa odds, atualiza cache, publica nos tópicos Kafka e no canal de
// broadcast do WebSocket. A simulação nunca espera por este I/O.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa.
type Pump struct {
	Log         *zap.Logger
	Updates     <-chan match.Update
	Odds        *odds.Engine
	Cache       *mcache.OddsCache
	Publisher   *broadcast.KafkaPublisher
	Broadcaster *broadcast.RedisBroadcaster
	Channel     string // canal Redis Pub/Sub do WS
	Source      string // nome do serviço, vai no evento de odds

	OnTick     func()       // métricas (counter++)
	OnGoal     func()       // métricas
	OnFinished func()       // métricas
	OnError    func(string) // métricas por fase

	mu       sync.Mutex
	versions map[string]int64 // matchID -> versão incremental das odds
}

// Run consome updates até o contexto encerrar ou o canal fechar.
func (p *Pump) Run(ctx context.Context) {
	p.versions = make(map[string]int64)
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-p.Updates:
			if !ok {
				return
			}
			p.handle(ctx, u)
		}
	}
}

func (p *Pump) handle(ctx context.Context, u match.Update) {
	if p.OnTick != nil {
		p.OnTick()
	}

	tick := tickEvent(u)
	if err := p.Publisher.PublishTick(ctx, tick); err != nil {
		p.Log.Warn("tick publish failed", zap.String("match_id", u.State.ID), zap.Error(err))
		p.fail("publish_tick")
	}
	p.wsPublish(ctx, u.State.ID, "tick", tick)

	for _, ev := range u.Applied {
		if ev.Type == match.EventGoal && p.OnGoal != nil {
			p.OnGoal()
		}
	}

	// Odds só fazem sentido até o estado terminal; estado inválido é erro de
	// integridade de dados, não cotação.
	if u.State.Status == match.StatusLive || u.Finished {
		snap, err := p.Odds.Compute(u.State)
		if err != nil {
			p.Log.Error("data integrity: odds rejected",
				zap.String("match_id", u.State.ID),
				zap.Int("minute", u.State.Minute),
				zap.Error(err),
			)
			p.fail("odds")
		} else {
			upd := p.oddsEvent(u.State, snap)
			if err := p.Cache.SetCurrent(ctx, upd); err != nil {
				p.Log.Warn("odds cache set failed", zap.Error(err))
				p.fail("cache")
				// não bloqueia publicação se falhar o cache
			}
			if err := p.Publisher.PublishOdds(ctx, upd); err != nil {
				p.Log.Warn("odds publish failed", zap.Error(err))
				p.fail("publish_odds")
			}
			p.wsPublish(ctx, u.State.ID, "odds", upd)
		}
	}

	if u.Finished || u.Failed {
		if p.OnFinished != nil {
			p.OnFinished()
		}
		fin := events.MatchFinished{
			MatchID:    u.State.ID,
			Status:     string(u.State.Status),
			Minute:     u.State.Minute,
			HomeScore:  u.State.HomeScore,
			AwayScore:  u.State.AwayScore,
			FinishedAt: time.Now().UTC(),
		}
		if err := p.Publisher.PublishMatchFinished(ctx, fin); err != nil {
			// o worker de liquidação depende deste evento
			p.Log.Error("match finished publish failed",
				zap.String("match_id", u.State.ID),
				zap.Error(err),
			)
			p.fail("publish_finished")
		}
	}
}

func (p *Pump) oddsEvent(st match.State, snap odds.Snapshot) events.OddsUpdate {
	p.mu.Lock()
	p.versions[st.ID]++
	v := p.versions[st.ID]
	p.mu.Unlock()

	return events.OddsUpdate{
		MatchID:  st.ID,
		HomeTeam: st.HomeTeam,
		AwayTeam: st.AwayTeam,
		Market:   snap.Market,
		Minute:   snap.Minute,
		Prices: events.Prices{
			Home: snap.Home,
			Draw: snap.Draw,
			Away: snap.Away,
		},
		UpdatedAt: snap.ComputedAt,
		Source:    p.Source,
		Version:   v,
	}
}

func (p *Pump) wsPublish(ctx context.Context, matchID, kind string, payload any) {
	if p.Broadcaster == nil {
		return
	}
	msg := broadcast.WSUpdate{MatchID: matchID, Kind: kind, Payload: payload}
	b, _ := json.Marshal(msg)

	cctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := p.Broadcaster.Publish(cctx, p.Channel, b); err != nil {
		p.Log.Warn("ws broadcast publish failed", zap.Error(err))
		p.fail("ws_broadcast")
	}
}

func tickEvent(u match.Update) events.MatchTick {
	evs := make([]events.TickEvent, 0, len(u.Applied))
	for _, ev := range u.Applied {
		evs = append(evs, events.TickEvent{
			Minute: ev.Minute,
			Type:   string(ev.Type),
			Team:   string(ev.Team),
			Player: ev.Player,
			Detail: ev.Detail,
		})
	}
	return events.MatchTick{
		MatchID:      u.State.ID,
		HomeTeam:     u.State.HomeTeam,
		AwayTeam:     u.State.AwayTeam,
		Status:       string(u.State.Status),
		Minute:       u.State.Minute,
		HomeScore:    u.State.HomeScore,
		AwayScore:    u.State.AwayScore,
		HomeMomentum: u.State.HomeMomentum,
		AwayMomentum: u.State.AwayMomentum,
		Events:       evs,
		Ts:           u.State.UpdatedAt,
	}
}

func (p *Pump) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
