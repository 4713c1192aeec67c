// Package forfeit agenda a varredura periódica de prazos vencidos.
package forfeit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Sweeper é implementado por *challenge.Engine
type Sweeper interface {
	Sweep(ctx context.Context, limit int) (int, error)
}

// Start agenda Sweep a cada interval. Uma rodada nunca começa antes da anterior terminar.
// O chamador faz Shutdown no scheduler devolvido.
func Start(ctx context.Context, log *zap.Logger, s Sweeper, interval time.Duration, batch int) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := s.Sweep(ctx, batch)
			if err != nil {
				log.Warn("forfeit sweep failed", zap.Error(err))
				return
			}
			if n > 0 {
				log.Info("forfeit sweep", zap.Int("forfeited", n))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}

	sched.Start()
	return sched, nil
}
