package producer

import (
	"context"

	"github.com/segmentio/kafka-go"

	skafka "github.com/radieske/challenge-settlement-platform/internal/shared/kafka"
	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

// KafkaPublisher publica eventos de desafio; a chave é o challengeId,
// então eventos do mesmo desafio caem na mesma partição e chegam em ordem
type KafkaPublisher struct {
	Writer *kafka.Writer
}

func NewKafkaPublisher(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e events.ChallengeEvent) error {
	return skafka.WriteJSON(ctx, p.Writer, e.ChallengeID, e)
}
