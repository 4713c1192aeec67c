package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/challenge"
	httpapi "github.com/radieske/challenge-settlement-platform/internal/challenge-service/http"
	"github.com/radieske/challenge-settlement-platform/internal/challenge-service/producer"
	"github.com/radieske/challenge-settlement-platform/internal/challenge-service/ws"
	"github.com/radieske/challenge-settlement-platform/internal/directory"
	"github.com/radieske/challenge-settlement-platform/internal/evidence"
	"github.com/radieske/challenge-settlement-platform/internal/ledger"
	"github.com/radieske/challenge-settlement-platform/internal/repo/memory"
	"github.com/radieske/challenge-settlement-platform/internal/repo/postgres"
	sharedcache "github.com/radieske/challenge-settlement-platform/internal/shared/cache"
	"github.com/radieske/challenge-settlement-platform/internal/shared/config"
	"github.com/radieske/challenge-settlement-platform/internal/shared/db"
	skafka "github.com/radieske/challenge-settlement-platform/internal/shared/kafka"
	"github.com/radieske/challenge-settlement-platform/internal/shared/logger"
	"github.com/radieske/challenge-settlement-platform/internal/shared/metrics"
	"github.com/radieske/challenge-settlement-platform/internal/tournament"
	"github.com/radieske/challenge-settlement-platform/internal/verification"
)

func settings(cfg config.Config) challenge.Settings {
	s := cfg.Settlement
	return challenge.Settings{
		StakeFraction:       s.StakeFraction,
		RewardRatio:         s.RewardRatio,
		AdminUserID:         s.AdminUserID,
		ScorecardWindow:     s.ScorecardWindow,
		VerificationWindow:  s.VerificationWindow,
		VerificationTimeout: cfg.VerificationTimeout,
		ProofConfidence:     s.ProofConfidence,
		AnalysisMemory:      s.AnalysisMemory,
	}
}

func main() {
	cfg := config.Load()

	log, err := logger.New("challenge-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("store", cfg.Store), zap.String("env", cfg.Env))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	l := ledger.New(cfg.Settlement.DefaultBalance)
	deps := challenge.Deps{
		Ledger:   l,
		Verifier: verification.NewClient(cfg.VerificationURL, cfg.VerificationTimeout),
		Log:      log,
		Metrics:  challenge.NewMetrics(prometheus.DefaultRegisterer),
	}
	var (
		registry httpapi.Registry
		store    httpapi.EvidenceStore
		ledgerTx tournament.Store
		checks   []metrics.Check
		rdb      *redis.Client
	)

	// STORE=memory sobe tudo em processo, sem Postgres, Redis, Kafka ou S3
	if cfg.Store == "memory" {
		dir := directory.NewMemory()
		mem := memory.New()
		deps.Store = mem
		ledgerTx = mem
		deps.Directory = dir
		deps.Guard = verification.NewMemoryGuard()
		registry = dir
		store = evidence.NewMemory()
	} else {
		pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()

		repo := postgres.New(pg)
		if err := repo.Migrate(ctx); err != nil {
			log.Fatal("postgres migrate", zap.Error(err))
		}

		rdb, err = sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer rdb.Close()

		s3store, err := evidence.NewS3(ctx, evidence.Options{
			Bucket:    cfg.EvidenceBucket,
			Endpoint:  cfg.EvidenceEndpoint,
			Region:    cfg.EvidenceRegion,
			AccessKey: cfg.EvidenceAccessKey,
			SecretKey: cfg.EvidenceSecretKey,
			PublicURL: cfg.EvidencePublicURL,
		})
		if err != nil {
			log.Fatal("evidence store", zap.Error(err))
		}

		// Eventos de desafio vão para o Kafka; o challenge-events-worker alimenta o cache e o /ws
		writer := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicChallengeEvents)
		defer writer.Close()

		dir := directory.NewPostgres(pg)
		deps.Store = repo
		ledgerTx = repo
		deps.Directory = dir
		deps.Guard = verification.NewRedisGuard(rdb)
		deps.Publisher = producer.NewKafkaPublisher(writer)
		registry = dir
		store = s3store
		checks = []metrics.Check{
			{Name: "postgres", Fn: pg.PingContext},
			{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		}
	}

	engine := challenge.NewEngine(settings(cfg), deps)

	// Hub WebSocket de status; com Redis, recebe as atualizações pelo Pub/Sub
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	if rdb != nil {
		ws.StartRedisSubscriber(ctx, log, rdb, cfg.RedisPubSubChannel, hub)
	}

	api := httpapi.NewServer(log, engine, httpapi.Options{
		Registry:    registry,
		Evidence:    store,
		WS:          http.HandlerFunc(hub.HandleWS),
		Tournaments: tournament.NewService(log, ledgerTx, l, cfg.Settlement.AdminUserID, cfg.Settlement.TournamentRatio),
		AdminToken:  cfg.AdminToken,
		SweepBatch:  cfg.SweepBatch,
	})

	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 8083
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, checks...) // ex: 9099

	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
