package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/market"
	"github.com/radieske/match-bet-platform/internal/market-worker/consumer"
	"github.com/radieske/match-bet-platform/internal/odds-service/cache"
	sharedcache "github.com/radieske/match-bet-platform/internal/shared/cache"
	"github.com/radieske/match-bet-platform/internal/shared/config"
	"github.com/radieske/match-bet-platform/internal/shared/db"
	"github.com/radieske/match-bet-platform/internal/shared/kafka"
	"github.com/radieske/match-bet-platform/internal/shared/logger"
	"github.com/radieske/match-bet-platform/internal/shared/metrics"
	"github.com/radieske/match-bet-platform/internal/storage/postgres"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	store := postgres.New(pg)
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	m := metrics.NewEngine(prometheus.DefaultRegisterer)

	markets := market.New(log, store, cache.New(redisClient, cfg.OddsCacheTTL))
	markets.Grace = cfg.MarketCloseGrace
	markets.GenerateBets = cfg.BetGenEnabled
	markets.OnCreated = m.MarketsCreated.Inc
	markets.OnClosed = m.MarketsClosed.Inc

	// Consumer group market-worker em match_created; falhas definitivas vão para a DLQ
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicMatchCreated, "market-worker")
	defer reader.Close()

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Markets:    markets,
		OnConsumed: m.Consumed.Inc,
		OnError:    m.ConsumeError,
	}
	if cfg.TopicMatchCreatedDLQ != "" {
		dlq := kafka.NewWriter(cfg.KafkaBrokers, "")
		defer dlq.Close()
		proc.DLQ = dlq
		proc.DLQTopic = cfg.TopicMatchCreatedDLQ
	}

	// Fechamento periódico dos mercados cujo encontro já passou
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal("scheduler", zap.Error(err))
	}
	_, err = sched.NewJob(
		gocron.DurationJob(cfg.MarketSweepInterval),
		gocron.NewTask(func() {
			sctx, scancel := context.WithTimeout(ctx, cfg.MarketSweepInterval)
			defer scancel()
			n, err := markets.CloseExpiredMarkets(sctx, time.Now())
			if err != nil {
				log.Warn("market sweep", zap.Int("closed", n), zap.Error(err))
				return
			}
			if n > 0 {
				log.Info("market sweep", zap.Int("closed", n))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Fatal("schedule market sweep", zap.Error(err))
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Warn("scheduler shutdown", zap.Error(err))
		}
	}()

	// Servidor HTTP para métricas e health check
	msrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Checks(map[string]metrics.HealthFunc{
		"postgres": store.Ping,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}))
	defer msrv.Close()
	log.Info("metrics/health listening", zap.String("addr", msrv.Addr))

	log.Info("market-worker started",
		zap.String("consume", cfg.TopicMatchCreated),
		zap.String("dlq", cfg.TopicMatchCreatedDLQ),
		zap.Duration("sweep", cfg.MarketSweepInterval),
	)
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("market-worker stopped")
}
