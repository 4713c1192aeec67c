package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/challenge-events/cache"
	"github.com/radieske/challenge-settlement-platform/internal/challenge-events/consumer"
	"github.com/radieske/challenge-settlement-platform/internal/challenge-events/pubsub"
	sharedcache "github.com/radieske/challenge-settlement-platform/internal/shared/cache"
	"github.com/radieske/challenge-settlement-platform/internal/shared/config"
	"github.com/radieske/challenge-settlement-platform/internal/shared/kafka"
	"github.com/radieske/challenge-settlement-platform/internal/shared/logger"
	"github.com/radieske/challenge-settlement-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("challenge-events-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Configura o consumer Kafka (consumer group challenge-events)
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicChallengeEvents, "challenge-events")
	defer reader.Close()

	var dlq consumer.Sink
	if cfg.TopicChallengeEventsDLQ != "" {
		w := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicChallengeEventsDLQ)
		defer w.Close()
		dlq = w
	}

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "challenge_events_consumed_total", Help: "eventos consumidos"})
	stale := prometheus.NewCounter(prometheus.CounterOpts{Name: "challenge_events_stale_total", Help: "eventos mais antigos que o status em cache"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "challenge_events_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, stale, errorsBy)

	proc := &consumer.Processor{
		Log:         log,
		Source:      reader,
		Cache:       cache.NewStatusCache(redisClient, 24*time.Hour),
		Broadcaster: pubsub.NewRedisBroadcaster(redisClient, cfg.RedisPubSubChannel),
		DLQ:         dlq,
		OnConsumed:  func() { consumed.Inc() },
		OnStale:     func() { stale.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Check{
		Name: "redis",
		Fn:   func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})
	defer metricsSrv.Close()

	log.Info("challenge-events-worker started", zap.String("consume", cfg.TopicChallengeEvents))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("challenge-events-worker stopped")
}
