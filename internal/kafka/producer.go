package kafka

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

type SaramaProducer struct {
	producer sarama.SyncProducer
	log      *slog.Logger
}

func NewConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Timeout = 5 * time.Second
	return config
}

func NewSaramaProducer(brokers []string, log *slog.Logger) (*SaramaProducer, error) {
	prod, err := sarama.NewSyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewProducer(prod, log), nil
}

// NewProducer wraps an existing sync producer.
func NewProducer(p sarama.SyncProducer, log *slog.Logger) *SaramaProducer {
	return &SaramaProducer{producer: p, log: log}
}

// Publish sends one message; key may be nil, in which case the partitioner
// picks a partition at random.
func (p *SaramaProducer) Publish(topic string, key, message []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(message),
	}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.Error("kafka send failed", "topic", topic, "error", err)
		return err
	}
	p.log.Debug("kafka message stored", "topic", topic, "partition", partition, "offset", offset)
	return nil
}

func (p *SaramaProducer) Close() error {
	return p.producer.Close()
}
