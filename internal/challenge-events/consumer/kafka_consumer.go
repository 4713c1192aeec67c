package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/challenge-service/ws"
	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

// Source é o lado consumidor do Kafka (*kafka.Reader)
type Source interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Sink é um produtor Kafka (*kafka.Writer), usado como DLQ
type Sink interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Cache interface {
	Apply(ctx context.Context, ev events.ChallengeEvent) (bool, error)
}

type Broadcaster interface {
	Publish(ctx context.Context, u ws.Update) error
}

// Processor consome eventos de desafio, atualiza o cache de status e avisa o
// hub WebSocket via Redis Pub/Sub. O offset só é confirmado depois do processamento.
type Processor struct {
	Log         *zap.Logger
	Source      Source
	Cache       Cache
	Broadcaster Broadcaster
	DLQ         Sink // opcional

	OnConsumed func()
	OnStale    func()
	OnError    func(stage string)
}

// Run inicia o loop de consumo até ctx ser cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		p.Handle(ctx, m)

		if err := p.Source.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.fail("commit")
		}
	}
}

// Handle processa uma mensagem. Mensagens inválidas vão para a DLQ; falhas de
// cache não impedem o broadcast.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	var ev events.ChallengeEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.ChallengeID == "" {
		p.Log.Warn("invalid challenge event", zap.ByteString("key", m.Key), zap.Error(err))
		p.fail("decode")
		p.deadLetter(ctx, m)
		return
	}

	fresh, err := p.Cache.Apply(ctx, ev)
	switch {
	case err != nil:
		p.Log.Warn("status cache update failed", zap.String("challengeId", ev.ChallengeID), zap.Error(err))
		p.fail("cache")
	case !fresh:
		// versão antiga: o cliente já recebeu algo mais novo
		if p.OnStale != nil {
			p.OnStale()
		}
		return
	}

	bctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := p.Broadcaster.Publish(bctx, ws.Update{ChallengeID: ev.ChallengeID, Payload: ev}); err != nil {
		p.Log.Warn("ws broadcast publish failed", zap.String("challengeId", ev.ChallengeID), zap.Error(err))
		p.fail("broadcast")
	}
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message) {
	if p.DLQ == nil {
		return
	}
	if err := p.DLQ.WriteMessages(ctx, kafka.Message{Key: m.Key, Value: m.Value, Headers: m.Headers}); err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.fail("dlq")
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
