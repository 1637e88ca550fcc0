package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/live-match-engine/internal/engine/broadcast"
	"github.com/radieske/live-match-engine/internal/engine/match"
	"github.com/radieske/live-match-engine/internal/engine/odds"
	"github.com/radieske/live-match-engine/internal/engine/settlement"
	pgstore "github.com/radieske/live-match-engine/internal/engine/store/postgres"
	mcache "github.com/radieske/live-match-engine/internal/match-service/cache"
	mhttp "github.com/radieske/live-match-engine/internal/match-service/http"
	"github.com/radieske/live-match-engine/internal/match-service/pump"
	"github.com/radieske/live-match-engine/internal/match-service/ws"
	sharedcache "github.com/radieske/live-match-engine/internal/shared/cache"
	"github.com/radieske/live-match-engine/internal/shared/config"
	"github.com/radieske/live-match-engine/internal/shared/db"
	"github.com/radieske/live-match-engine/internal/shared/logger"
	"github.com/radieske/live-match-engine/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Métricas Prometheus da simulação e da borda
	ticks := prometheus.NewCounter(prometheus.CounterOpts{Name: "match_ticks_total", Help: "minutos simulados"})
	goals := prometheus.NewCounter(prometheus.CounterOpts{Name: "match_goals_total", Help: "gols gerados"})
	finished := prometheus.NewCounter(prometheus.CounterOpts{Name: "match_finished_total", Help: "partidas encerradas"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "match_pump_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(ticks, goals, finished, errorsBy)

	// Registry das simulações: dono explícito do ciclo de vida
	registry := match.NewRegistry(log, match.RegistryConfig{
		Params:       match.DefaultParams(),
		TickInterval: time.Duration(cfg.TickIntervalMs) * time.Millisecond,
	})

	// Motor de odds e cash-out
	oddsEngine := odds.NewEngine(odds.DefaultParams())
	coParams := odds.DefaultCashOutParams()
	coParams.LockMinute = cfg.CashOutLockMinute
	valuator := odds.NewValuator(oddsEngine, coParams)

	// Publicadores Kafka e broadcast Redis
	publisher := broadcast.NewKafkaPublisher(cfg.KafkaBrokers,
		cfg.TopicMatchTicks, cfg.TopicOddsUpdates, cfg.TopicMatchFinished, cfg.TopicSlipSettled)
	defer publisher.Close()
	broadcaster := broadcast.NewRedisBroadcaster(redisClient)

	// Cache da cotação corrente
	oddsCache := mcache.NewOddsCache(redisClient, time.Duration(cfg.OddsTTLSeconds)*time.Second)

	// Store Postgres e liquidação (caminho manual de retry via HTTP)
	st := pgstore.New(pg)
	settler := settlement.New(log, st, publisher)

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Pump: drena os updates das simulações para cache/Kafka/WS
	pmp := &pump.Pump{
		Log:         log,
		Updates:     registry.Updates(),
		Odds:        oddsEngine,
		Cache:       oddsCache,
		Publisher:   publisher,
		Broadcaster: broadcaster,
		Channel:     cfg.RedisPubSubChannel,
		Source:      cfg.ServiceName,
		OnTick:      func() { ticks.Inc() },
		OnGoal:      func() { goals.Inc() },
		OnFinished:  func() { finished.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}
	go pmp.Run(ctx)

	// Hub WebSocket alimentado pelo canal Redis Pub/Sub
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, log, redisClient, cfg.RedisPubSubChannel, hub)

	// HTTP público
	api := &mhttp.API{
		Log:      log,
		Registry: registry,
		Odds:     oddsEngine,
		Valuator: valuator,
		Store:    st,
		Settler:  settler,
		Cache:    oddsCache,
	}
	appMux := http.NewServeMux()
	appMux.Handle("/", api.Router())
	appMux.HandleFunc("/ws", hub.HandleWS)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: appMux,
	}

	// metrics/health em porta separada
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})
	log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))

	// Encerra simulações e servidor no shutdown
	go func() {
		<-ctx.Done()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		registry.StopAll(stopCtx)
		_ = apiSrv.Shutdown(stopCtx)
		_ = metricsSrv.Shutdown(stopCtx)
	}()

	log.Info("match-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
	log.Info("match-service stopped")
}
