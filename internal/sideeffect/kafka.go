package sideeffect

import (
	"context"
	"encoding/json"
	"fmt"

	"devotion-go/internal/kafka"
)

// KafkaInvoker hands function calls to a worker through a Kafka topic. It is
// fire-and-forget: a call succeeds once the broker has accepted it, and
// functions that return a result are rejected with ErrNoResult.
type KafkaInvoker struct {
	producer kafka.MessageProducer
	topic    string
}

// Call is the envelope written to the side-effect topic.
type Call struct {
	Function string          `json:"function"`
	Payload  json.RawMessage `json:"payload"`
}

func NewKafkaInvoker(producer kafka.MessageProducer, topic string) *KafkaInvoker {
	return &KafkaInvoker{producer: producer, topic: topic}
}

func (i *KafkaInvoker) Invoke(ctx context.Context, function string, payload any, out any) error {
	if out != nil {
		return fmt.Errorf("invoke %s: %w", function, ErrNoResult)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("invoke %s: encode payload: %w", function, err)
	}
	envelope, err := json.Marshal(Call{Function: function, Payload: body})
	if err != nil {
		return fmt.Errorf("invoke %s: %w", function, err)
	}
	if err := i.producer.SendMessage(ctx, i.topic, []byte(function), envelope); err != nil {
		return fmt.Errorf("invoke %s: %w", function, err)
	}
	return nil
}

// Router sends result-less calls through one invoker and everything else
// through another, e.g. email over Kafka and completions over HTTP.
type Router struct {
	FireAndForget Invoker
	RequestReply  Invoker
}

func (r Router) Invoke(ctx context.Context, function string, payload any, out any) error {
	if out == nil && r.FireAndForget != nil {
		return r.FireAndForget.Invoke(ctx, function, payload, nil)
	}
	return r.RequestReply.Invoke(ctx, function, payload, out)
}
