package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

// PayoutWorker processa pedidos de saque chamando o gateway.
// Callbacks de métricas são opcionais.
type PayoutWorker struct {
	Log     *zap.Logger
	Store   Store
	Gateway Gateway
	Retries int
	Backoff time.Duration

	OnResult func(status string)
}

// Handle repassa um saque. Devolve erro quando o gateway continua indisponível
// depois dos retries; o chamador decide mandar para a DLQ.
func (w *PayoutWorker) Handle(ctx context.Context, ev events.WithdrawalRequested) error {
	p, err := w.Store.GetPayout(ctx, ev.PayoutID)
	if err != nil {
		return err
	}
	if p.Status != PayoutPending {
		return nil // já tratado
	}
	amount, err := decimal.NewFromString(ev.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", ev.Amount, err)
	}

	// o id do repasse vai como chave de idempotência: uma redelivery depois de
	// um crash entre o gateway e o UpdatePayout não paga duas vezes
	attempts := 1
	res, err := w.Gateway.Payout(ctx, p.ID, p.UserID, amount, p.Destination)
	for i := 0; err != nil && i < w.Retries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * w.Backoff):
		}
		attempts++
		res, err = w.Gateway.Payout(ctx, p.ID, p.UserID, amount, p.Destination)
	}

	p.Attempts += attempts
	p.UpdatedAt = time.Now().UTC()
	if err != nil {
		p.LastError = err.Error()
		if uerr := w.Store.UpdatePayout(ctx, p); uerr != nil {
			w.log().Warn("update payout", zap.String("payoutId", p.ID), zap.Error(uerr))
		}
		w.result("error")
		return errors.Join(ErrGateway, err)
	}

	p.Status = res.Status
	p.ExternalID = res.ExternalID
	p.LastError = res.Reason
	if err := w.Store.UpdatePayout(ctx, p); err != nil {
		return err
	}
	w.result(string(res.Status))
	w.log().Info("payout processed",
		zap.String("payoutId", p.ID),
		zap.String("status", string(p.Status)),
		zap.String("externalId", p.ExternalID),
	)
	return nil
}

func (w *PayoutWorker) result(status string) {
	if w.OnResult != nil {
		w.OnResult(status)
	}
}

func (w *PayoutWorker) log() *zap.Logger {
	if w.Log == nil {
		return zap.NewNop()
	}
	return w.Log
}
