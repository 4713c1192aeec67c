package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/repo/postgres"
	"github.com/radieske/challenge-settlement-platform/internal/shared/config"
	"github.com/radieske/challenge-settlement-platform/internal/shared/db"
	"github.com/radieske/challenge-settlement-platform/internal/shared/kafka"
	"github.com/radieske/challenge-settlement-platform/internal/shared/logger"
	"github.com/radieske/challenge-settlement-platform/internal/shared/metrics"
	"github.com/radieske/challenge-settlement-platform/internal/wallet"
	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("payout-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Postgres guarda o estado de cada repasse
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka consumer: withdrawal_requested, commit manual depois do processamento
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicWithdrawalRequested, "payout-worker")
	defer reader.Close()

	var dlqWriter *kafkago.Writer
	if cfg.TopicWithdrawalRequestedDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWithdrawalRequestedDLQ)
		defer dlqWriter.Close()
	}

	payouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_worker_results_total",
		Help: "repasses por resultado do gateway",
	}, []string{"status"})
	dlq := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payout_worker_dlq_total",
		Help: "mensagens enviadas para a DLQ",
	})
	prometheus.MustRegister(payouts, dlq)

	worker := &wallet.PayoutWorker{
		Log:      log,
		Store:    postgres.New(pg),
		Gateway:  wallet.NewHTTPGateway(cfg.GatewayURL, cfg.GatewayTimeout),
		Retries:  cfg.PayoutRetries,
		Backoff:  300 * time.Millisecond,
		OnResult: func(status string) { payouts.WithLabelValues(status).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Check{Name: "postgres", Fn: pg.PingContext})
	defer metricsSrv.Close()

	log.Info("payout-worker started", zap.String("consume", cfg.TopicWithdrawalRequested))

	// Loop principal: consome pedidos de saque, chama o gateway e confirma o offset
	for {
		msg, err := kafka.Fetch(ctx, reader)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var ev events.WithdrawalRequested
		if jerr := json.Unmarshal(msg.Value, &ev); jerr != nil {
			log.Error("unmarshal withdrawal_requested", zap.Error(jerr))
			sendDLQ(ctx, log, dlqWriter, string(msg.Key), msg.Value, dlq)
		} else if err := worker.Handle(ctx, ev); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error("process payout", zap.String("payoutId", ev.PayoutID), zap.Error(err))
			sendDLQ(ctx, log, dlqWriter, ev.PayoutID, msg.Value, dlq)
		}

		if err := kafka.Commit(ctx, reader, msg); err != nil && ctx.Err() == nil {
			log.Warn("kafka commit", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
	log.Info("payout-worker stopped")
}

// sendDLQ repassa a mensagem original; o repasse fica pendente para reprocessamento manual
func sendDLQ(ctx context.Context, log *zap.Logger, w *kafkago.Writer, key string, value []byte, counter prometheus.Counter) {
	if w == nil {
		return
	}
	if err := w.WriteMessages(ctx, kafkago.Message{Key: []byte(key), Value: value, Time: time.Now()}); err != nil {
		log.Warn("dlq write", zap.Error(err))
		return
	}
	counter.Inc()
}
