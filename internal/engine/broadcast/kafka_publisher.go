package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	sharedkafka "github.com/radieske/live-match-engine/internal/shared/kafka"
	"github.com/radieske/live-match-engine/pkg/contracts/events"
)

// KafkaPublisher concentra os writers dos tópicos do motor: ticks, odds,
// término de partida e liquidação.
type KafkaPublisher struct {
	ticks    *kafka.Writer
	odds     *kafka.Writer
	finished *kafka.Writer
	settled  *kafka.Writer
}

// NewKafkaPublisher cria um writer por tópico a partir da lista de brokers.
func NewKafkaPublisher(brokers, topicTicks, topicOdds, topicFinished, topicSettled string) *KafkaPublisher {
	return &KafkaPublisher{
		ticks:    sharedkafka.NewWriter(brokers, topicTicks),
		odds:     sharedkafka.NewWriter(brokers, topicOdds),
		finished: sharedkafka.NewWriter(brokers, topicFinished),
		settled:  sharedkafka.NewWriter(brokers, topicSettled),
	}
}

func (p *KafkaPublisher) Close() {
	_ = p.ticks.Close()
	_ = p.odds.Close()
	_ = p.finished.Close()
	_ = p.settled.Close()
}

func (p *KafkaPublisher) PublishTick(ctx context.Context, e events.MatchTick) error {
	b, _ := json.Marshal(e)
	return sharedkafka.WriteJSON(ctx, p.ticks, e.MatchID, b)
}

func (p *KafkaPublisher) PublishOdds(ctx context.Context, e events.OddsUpdate) error {
	b, _ := json.Marshal(e)
	return sharedkafka.WriteJSON(ctx, p.odds, e.MatchID, b)
}

func (p *KafkaPublisher) PublishMatchFinished(ctx context.Context, e events.MatchFinished) error {
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now().UTC()
	}
	b, _ := json.Marshal(e)
	return sharedkafka.WriteJSON(ctx, p.finished, e.MatchID, b)
}

func (p *KafkaPublisher) PublishSlipSettled(ctx context.Context, e events.SlipSettled) error {
	b, _ := json.Marshal(e)
	return sharedkafka.WriteJSON(ctx, p.settled, e.SlipID, b)
}

// SlipSettledPublisher publica apenas slip_settled sobre um writer já aberto.
// Usado pelo worker de liquidação, que não precisa dos demais tópicos.
type SlipSettledPublisher struct {
	w *kafka.Writer
}

func NewSlipSettledPublisher(w *kafka.Writer) *SlipSettledPublisher {
	return &SlipSettledPublisher{w: w}
}

func (p *SlipSettledPublisher) PublishSlipSettled(ctx context.Context, e events.SlipSettled) error {
	b, _ := json.Marshal(e)
	return sharedkafka.WriteJSON(ctx, p.w, e.SlipID, b)
}
