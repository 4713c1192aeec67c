package main

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/shared/config"
	"github.com/radieske/challenge-settlement-platform/internal/shared/logger"
	"github.com/radieske/challenge-settlement-platform/internal/shared/metrics"
	"github.com/radieske/challenge-settlement-platform/internal/simulator"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("verification-simulator", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	s := simulator.NewServer(log, prometheus.DefaultRegisterer)
	if v, err := strconv.ParseFloat(os.Getenv("SIMULATOR_PAYOUT_SUCCESS"), 64); err == nil {
		s.PayoutSuccess = v
	}

	// Servidor de métricas em goroutine
	metrics.StartMetricsServer(log, cfg.MetricsPort)

	// Servidor público (analyze + gateway de pagamentos)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("verification simulator running",
		zap.String("addr", srv.Addr),
		zap.String("paths", "/analyze,/deposits,/payouts"),
		zap.Float64("payout_success", s.PayoutSuccess),
	)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}
