package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/gateway"
	"github.com/radieske/challenge-settlement-platform/internal/shared/config"
	"github.com/radieske/challenge-settlement-platform/internal/shared/logger"
	"github.com/radieske/challenge-settlement-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("api-gateway", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// targets
	h, err := gateway.NewRouter(log, gateway.Upstreams{
		Challenge: cfg.ChallengeServiceURL,
		Wallet:    cfg.WalletServiceURL,
	})
	if err != nil {
		log.Fatal("gateway upstreams", zap.Error(err))
	}

	metrics.StartMetricsServer(log, cfg.MetricsPort)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("api-gateway listening",
		zap.String("addr", srv.Addr),
		zap.String("challenge", cfg.ChallengeServiceURL),
		zap.String("wallet", cfg.WalletServiceURL),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
