package producer

import (
	"context"

	"github.com/segmentio/kafka-go"

	skafka "github.com/radieske/challenge-settlement-platform/internal/shared/kafka"
	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

// KafkaPublisher publica pedidos de saque para o payout-worker
type KafkaPublisher struct {
	Writer *kafka.Writer
}

func NewKafkaPublisher(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Writer: w}
}

func (p *KafkaPublisher) PublishWithdrawal(ctx context.Context, e events.WithdrawalRequested) error {
	return skafka.WriteJSON(ctx, p.Writer, e.PayoutID, e)
}
