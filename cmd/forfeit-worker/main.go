package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/challenge"
	"github.com/radieske/challenge-settlement-platform/internal/challenge-service/producer"
	"github.com/radieske/challenge-settlement-platform/internal/directory"
	"github.com/radieske/challenge-settlement-platform/internal/forfeit"
	"github.com/radieske/challenge-settlement-platform/internal/ledger"
	"github.com/radieske/challenge-settlement-platform/internal/repo/postgres"
	"github.com/radieske/challenge-settlement-platform/internal/shared/config"
	"github.com/radieske/challenge-settlement-platform/internal/shared/db"
	"github.com/radieske/challenge-settlement-platform/internal/shared/kafka"
	"github.com/radieske/challenge-settlement-platform/internal/shared/logger"
	"github.com/radieske/challenge-settlement-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("forfeit-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// O W.O. liquida o desafio, então o evento segue o mesmo caminho do challenge-service
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicChallengeEvents)
	defer writer.Close()

	s := cfg.Settlement
	engine := challenge.NewEngine(challenge.Settings{
		StakeFraction:      s.StakeFraction,
		RewardRatio:        s.RewardRatio,
		AdminUserID:        s.AdminUserID,
		ScorecardWindow:    s.ScorecardWindow,
		VerificationWindow: s.VerificationWindow,
		ProofConfidence:    s.ProofConfidence,
		AnalysisMemory:     s.AnalysisMemory,
	}, challenge.Deps{
		Store:     postgres.New(pg),
		Ledger:    ledger.New(s.DefaultBalance),
		Directory: directory.NewPostgres(pg),
		Publisher: producer.NewKafkaPublisher(writer),
		Log:       log,
		Metrics:   challenge.NewMetrics(prometheus.DefaultRegisterer),
	})

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Check{Name: "postgres", Fn: pg.PingContext})
	defer metricsSrv.Close()

	sched, err := forfeit.Start(ctx, log, engine, cfg.SweepInterval, cfg.SweepBatch)
	if err != nil {
		log.Fatal("forfeit scheduler", zap.Error(err))
	}
	log.Info("forfeit-worker started", zap.Duration("interval", cfg.SweepInterval), zap.Int("batch", cfg.SweepBatch))

	<-ctx.Done()
	if err := sched.Shutdown(); err != nil {
		log.Warn("scheduler shutdown", zap.Error(err))
	}
	log.Info("forfeit-worker stopped")
}
