package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/IBM/sarama"

	"coffeehouse/internal/config"
	"coffeehouse/internal/kafka"
	"coffeehouse/internal/logging"
)

func main() {
	cfg := config.LoadConfig()
	log := logging.New(cfg.LogLevel)
	if len(cfg.KafkaBrokers) == 0 {
		log.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	log.Info("consuming", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)
	handler := kafka.ConsumerGroupHandler{Log: log}
	if err := kafka.StartSaramaConsumer(ctx, saramaCfg, cfg.KafkaBrokers, cfg.KafkaGroupID, []string{cfg.KafkaTopic}, handler, log); err != nil {
		log.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
}
