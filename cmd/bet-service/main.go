package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httpapi "github.com/radieske/match-bet-platform/internal/bet-service/http"
	"github.com/radieske/match-bet-platform/internal/bet-service/producer"
	"github.com/radieske/match-bet-platform/internal/market"
	"github.com/radieske/match-bet-platform/internal/odds-service/cache"
	"github.com/radieske/match-bet-platform/internal/settlement"
	sharedcache "github.com/radieske/match-bet-platform/internal/shared/cache"
	"github.com/radieske/match-bet-platform/internal/shared/config"
	"github.com/radieske/match-bet-platform/internal/shared/db"
	"github.com/radieske/match-bet-platform/internal/shared/kafka"
	"github.com/radieske/match-bet-platform/internal/shared/lock"
	"github.com/radieske/match-bet-platform/internal/shared/logger"
	"github.com/radieske/match-bet-platform/internal/shared/metrics"
	"github.com/radieske/match-bet-platform/internal/storage/postgres"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	store := postgres.New(pg)
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	// Redis: lock distribuído por bet e invalidação do cache de odds
	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writer sem tópico fixo (bet_placed, bet_settled e market_settled saem por ele)
	writer := kafka.NewWriter(cfg.KafkaBrokers, "")
	defer writer.Close()

	m := metrics.NewEngine(prometheus.DefaultRegisterer)

	publ := producer.NewKafkaPublisher(writer, producer.Topics{
		BetPlaced:     cfg.TopicBetPlaced,
		BetSettled:    cfg.TopicBetSettled,
		MarketSettled: cfg.TopicMarketSettled,
	})
	settle := settlement.New(log, store, newLocker(cfg, rdb), publ)
	settle.OnPlaced = m.Placed
	settle.OnSettled = m.SettledBet
	settle.OnPublishError = m.PublishError

	markets := market.New(log, store, cache.New(rdb, cfg.OddsCacheTTL))
	markets.Grace = cfg.MarketCloseGrace
	markets.GenerateBets = cfg.BetGenEnabled
	markets.OnCreated = m.MarketsCreated.Inc
	markets.OnClosed = m.MarketsClosed.Inc

	// metrics/health
	msrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Checks(map[string]metrics.HealthFunc{
		"postgres": store.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}))
	log.Info("metrics/health", zap.String("addr", msrv.Addr))

	// HTTP público
	api := httpapi.NewServer(log, settle, markets, store)
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(m.Middleware),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = apiSrv.Shutdown(sctx)
		_ = msrv.Shutdown(sctx)
	}()

	log.Info("bet-service listening", zap.String("addr", apiSrv.Addr), zap.String("lock", cfg.LockBackend))
	if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api", zap.Error(err))
	}
}

// newLocker escolhe o lock por bet: redis serializa entre réplicas, local só dentro do processo
func newLocker(cfg config.Config, rdb *redis.Client) lock.Locker {
	if cfg.LockBackend == "local" {
		return lock.NewLocal()
	}
	return lock.NewRedis(rdb, cfg.LockTTL)
}
