package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/live-match-engine/internal/engine/broadcast"
	"github.com/radieske/live-match-engine/internal/engine/match"
	"github.com/radieske/live-match-engine/internal/engine/settlement"
	pgstore "github.com/radieske/live-match-engine/internal/engine/store/postgres"
	"github.com/radieske/live-match-engine/internal/shared/config"
	"github.com/radieske/live-match-engine/internal/shared/db"
	"github.com/radieske/live-match-engine/internal/shared/kafka"
	"github.com/radieske/live-match-engine/internal/shared/logger"
	"github.com/radieske/live-match-engine/internal/shared/metrics"
	ev "github.com/radieske/live-match-engine/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Conexão com Postgres: carteira, bilhetes, razão e marcador de liquidação
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka consumer: consome match_finished para liquidar bilhetes
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  strings.Split(cfg.KafkaBrokers, ","),
		GroupID:  "settlement-worker",
		Topic:    cfg.TopicMatchFinished,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	// Producers: slip_settled pós-commit e DLQ para eventos que esgotaram retry
	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSlipSettled)
	defer settledWriter.Close()

	var dlqWriter *kafkago.Writer
	if cfg.TopicMatchFinishedDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchFinishedDLQ)
		defer dlqWriter.Close()
	}

	// Métricas Prometheus do worker
	matchesSettled := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_matches_total", Help: "partidas liquidadas"})
	legsResolved := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_legs_total", Help: "pernas resolvidas"})
	slipsByStatus := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_slips_total", Help: "bilhetes fechados por status"}, []string{"status"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_errors_total", Help: "erros por fase"}, []string{"stage"})
	dlqTotal := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_dlq_total", Help: "eventos enviados para DLQ"})
	prometheus.MustRegister(matchesSettled, legsResolved, slipsByStatus, errorsBy, dlqTotal)

	engine := settlement.New(log, pgstore.New(pg), broadcast.NewSlipSettledPublisher(settledWriter))
	engine.OnLegResolved = func() { legsResolved.Inc() }
	engine.OnSlipSettled = func(status string) { slipsByStatus.WithLabelValues(status).Inc() }
	engine.OnError = func(stage string) { errorsBy.WithLabelValues(stage).Inc() }

	// Servidor HTTP para métricas Prometheus e healthcheck
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})
	log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))

	log.Info("settlement-worker started",
		zap.String("consume", cfg.TopicMatchFinished),
		zap.String("publish", cfg.TopicSlipSettled),
	)

	ctx := context.Background()

	// Loop principal: consome match_finished, liquida e confirma
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		var fin ev.MatchFinished
		if jerr := json.Unmarshal(msg.Value, &fin); jerr != nil {
			log.Error("unmarshal match_finished", zap.Error(jerr))
			continue
		}

		if err := settleOne(ctx, engine, &fin); err != nil {
			log.Error("settle match", zap.String("matchId", fin.MatchID), zap.Error(err))
			if dlqWriter != nil {
				dlqTotal.Inc()
				_ = kafka.WriteJSON(ctx, dlqWriter, fin.MatchID, mustJSON(&fin))
			}
			// Backoff simples para evitar flood em caso de erro
			time.Sleep(500 * time.Millisecond)
			continue
		}
		matchesSettled.Inc()
	}
}

// settleOne converte o evento no estado final e liquida, com retry simples.
// A liquidação é idempotente, então reprocessar o mesmo evento é seguro.
func settleOne(ctx context.Context, engine *settlement.Engine, fin *ev.MatchFinished) error {
	final := finalState(fin)

	err := engine.SettleMatch(ctx, final)
	if err == nil {
		return nil
	}

	const retries = 3
	for i := 0; i < retries; i++ {
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
		if err = engine.SettleMatch(ctx, final); err == nil {
			return nil
		}
	}
	return err
}

// finalState reconstrói o estado terminal mínimo que a liquidação precisa.
func finalState(fin *ev.MatchFinished) match.State {
	status := match.StatusFinished
	if fin.Status == string(match.StatusFailed) {
		status = match.StatusFailed
	}
	return match.State{
		ID:        fin.MatchID,
		Status:    status,
		Minute:    fin.Minute,
		HomeScore: fin.HomeScore,
		AwayScore: fin.AwayScore,
		UpdatedAt: fin.FinishedAt,
	}
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
