package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"coffeehouse/internal/models"
)

// ConsumerGroupHandler logs every storefront event it reads and marks it
// consumed. Messages that are not events are logged raw.
type ConsumerGroupHandler struct {
	Log *slog.Logger
	// OnEvent, when set, is called for each decoded event.
	OnEvent func(models.Event)
}

func (ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var ev models.Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil || ev.Type == "" {
			h.Log.Warn("undecodable message",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "value", string(msg.Value))
		} else {
			h.Log.Info("event",
				"type", ev.Type,
				"order_id", ev.OrderID,
				"occurred_at", ev.OccurredAt,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			if h.OnEvent != nil {
				h.OnEvent(ev)
			}
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

// StartSaramaConsumer consumes topics until ctx is cancelled.
func StartSaramaConsumer(ctx context.Context, cfg *sarama.Config, brokers []string, groupID string, topics []string, handler sarama.ConsumerGroupHandler, log *slog.Logger) (err error) {
	consumerGroup, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() {
		if cerr := consumerGroup.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close consumer group: %w", cerr))
		}
	}()

	for {
		if err := consumerGroup.Consume(ctx, topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			log.Error("consumer error", "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
