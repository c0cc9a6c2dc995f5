package repository

import (
	"context"
	"fmt"

	"optionscan/internal/domain/models"
	domrepo "optionscan/internal/domain/repository"
	"optionscan/pkg/config"
	"optionscan/pkg/kafka"
)

// KafkaPublisher fans accepted signals to a topic, keyed by symbol so one
// symbol's signals stay ordered within a partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(
		kafka.WithBrokers(cfg.Brokers),
		kafka.WithRequiredAcks(cfg.RequiredAcks),
		kafka.WithCompression(cfg.Compression),
		kafka.WithMaxAttempts(cfg.MaxAttempts),
		kafka.WithTimeouts(cfg.WriteTimeout, cfg.WriteTimeout),
		kafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	return &KafkaPublisher{producer: producer, topic: cfg.Topic}, nil
}

func (p *KafkaPublisher) PublishSignal(ctx context.Context, sig *models.SignalCandidate) error {
	return p.producer.Publish(ctx, p.topic, []byte(sig.Symbol), sig)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
