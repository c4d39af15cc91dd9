package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// EnsureTopics creates the topics on the cluster controller. Topics that
// already exist are left alone.
func EnsureTopics(ctx context.Context, brokers []string, topics []string, logger *slog.Logger) error {
	const op = "kafka.EnsureTopics"

	if len(brokers) == 0 {
		return fmt.Errorf("%s: no brokers", op)
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	ctrlConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	defer ctrlConn.Close()

	for _, topic := range topics {
		err := ctrlConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		})
		switch {
		case err == nil:
			logger.Info("created kafka topic", "topic", topic)
		case errors.Is(err, kafka.TopicAlreadyExists):
			logger.Debug("kafka topic exists", "topic", topic)
		default:
			return fmt.Errorf("%s: create %s: %w", op, topic, err)
		}
	}

	return nil
}
