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
	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/compatibility"
	"github.com/radieske/match-bet-platform/internal/discovery"
	httpapi "github.com/radieske/match-bet-platform/internal/discovery-service/http"
	"github.com/radieske/match-bet-platform/internal/discovery-service/producer"
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
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	store := postgres.New(pg)
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	// Kafka writer sem tópico fixo: o publisher define match_created por mensagem
	writer := kafka.NewWriter(cfg.KafkaBrokers, "")
	defer writer.Close()

	m := metrics.NewEngine(prometheus.DefaultRegisterer)

	compat := compatibility.New(log, store)
	compat.OnFallback = m.FallbackFor("compatibility")

	svc := discovery.New(log, store, compat, discovery.NewRand(uint64(time.Now().UnixNano())), producer.NewKafkaPublisher(writer, cfg.TopicMatchCreated))
	svc.OnMatch = m.Matches.Inc
	svc.OnPublishError = m.PublishError

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Checks(map[string]metrics.HealthFunc{
		"postgres": store.Ping,
	}))
	log.Info("metrics/health listening", zap.String("addr", msrv.Addr))

	api := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpapi.NewServer(log, svc, store).Router(m.Middleware),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown(log, api, msrv)
	}()

	log.Info("discovery-service listening", zap.String("addr", api.Addr))
	if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api", zap.Error(err))
	}
	log.Info("discovery-service stopped")
}

func shutdown(log *zap.Logger, servers ...*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, s := range servers {
		if err := s.Shutdown(ctx); err != nil {
			log.Warn("shutdown", zap.String("addr", s.Addr), zap.Error(err))
		}
	}
}
