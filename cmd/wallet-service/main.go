package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/ledger"
	"github.com/radieske/challenge-settlement-platform/internal/repo/memory"
	"github.com/radieske/challenge-settlement-platform/internal/repo/postgres"
	"github.com/radieske/challenge-settlement-platform/internal/shared/config"
	"github.com/radieske/challenge-settlement-platform/internal/shared/db"
	skafka "github.com/radieske/challenge-settlement-platform/internal/shared/kafka"
	"github.com/radieske/challenge-settlement-platform/internal/shared/logger"
	"github.com/radieske/challenge-settlement-platform/internal/shared/metrics"
	"github.com/radieske/challenge-settlement-platform/internal/wallet"
	whttp "github.com/radieske/challenge-settlement-platform/internal/wallet-service/http"
	"github.com/radieske/challenge-settlement-platform/internal/wallet-service/producer"
	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

// logPublisher é usado com STORE=memory, quando não há Kafka
type logPublisher struct{ log *zap.Logger }

func (p logPublisher) PublishWithdrawal(_ context.Context, ev events.WithdrawalRequested) error {
	p.log.Info("withdrawal requested", zap.String("payout_id", ev.PayoutID), zap.String("amount", ev.Amount))
	return nil
}

func main() {
	cfg := config.Load()

	// Inicializa logger estruturado
	log, err := logger.New("wallet-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "wallet-service"), zap.String("env", cfg.Env))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		store  wallet.Store
		publ   wallet.WithdrawalPublisher = logPublisher{log: log}
		checks []metrics.Check
	)
	if cfg.Store == "memory" {
		store = memory.New()
	} else {
		// Conexão com Postgres para operações de carteira
		pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()

		repo := postgres.New(pg)
		if err := repo.Migrate(ctx); err != nil {
			log.Fatal("postgres migrate", zap.Error(err))
		}

		writer := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWithdrawalRequested)
		defer writer.Close()

		store = repo
		publ = producer.NewKafkaPublisher(writer)
		checks = append(checks, metrics.Check{Name: "postgres", Fn: pg.PingContext})
	}

	gw := wallet.NewHTTPGateway(cfg.GatewayURL, cfg.GatewayTimeout)
	svc := wallet.NewService(log, store, ledger.New(cfg.Settlement.DefaultBalance), gw, publ)
	api := whttp.NewServer(log, svc)

	// Servidor HTTP público (API de wallet)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 8082
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Servidor de métricas e health check
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, checks...) // ex: 9098

	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
