package database

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"realtime_chat_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NewKafkaWriterWithRetry 確認 broker 可連線並建立 topic 後回傳 async Writer
func NewKafkaWriterWithRetry(k KafkaConnection) (*kafka.Writer, error) {
	var err error

	for attempt := 1; attempt <= max(1, k.RetryCount); attempt++ {
		if err = ensureTopic(k.Brokers, k.Topic); err == nil {
			logger.Log.Info("kafka writer ready", zap.Strings("brokers", k.Brokers), zap.String("topic", k.Topic), zap.Int("attempt", attempt))
			return &kafka.Writer{
				Addr:         kafka.TCP(k.Brokers...),
				Topic:        k.Topic,
				Balancer:     &kafka.Hash{},
				Async:        true,
				BatchTimeout: 50 * time.Millisecond,
				Completion: func(messages []kafka.Message, err error) {
					if err != nil {
						logger.Log.Error("kafka async write failed", zap.Int("messages", len(messages)), zap.Error(err))
					}
				},
			}, nil
		}

		logger.Log.Warn("kafka not ready, retrying", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(k.RetryInterval * time.Second)
	}

	return nil, fmt.Errorf("kafka writer not ready after %d attempts: %w", k.RetryCount, err)
}

func ensureTopic(brokers []string, topic string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	cc, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer cc.Close()

	return cc.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}
