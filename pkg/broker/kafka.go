package broker

import (
	"fmt"
	"time"

	"binancebridge/config"
	wmlogger "binancebridge/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// KafkaPublisherFactory creates the watermill-kafka publisher. Tests may replace it.
var KafkaPublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

// newKafkaSink returns a sarama sync producer behind a lazySink. The record key
// comes from the KeyMetadata of each message; sarama's hash partitioner picks the
// partition. Creating the producer fetches cluster metadata, which fails while the
// cluster is unreachable, so creation is retried every retryDelay from Publish.
func newKafkaSink(brokers []string, clientID string, retryDelay time.Duration, logger *zap.Logger) message.Publisher {
	saramaCfg := kafka.DefaultSaramaSyncPublisherConfig()
	if clientID != "" {
		saramaCfg.ClientID = clientID
	}
	cfg := kafka.PublisherConfig{
		Brokers:               brokers,
		Marshaler:             kafka.NewWithPartitioningMarshaler(partitionKey),
		OverwriteSaramaConfig: saramaCfg,
	}

	return newLazySink(config.DriverKafka, func() (message.Publisher, error) {
		pub, err := KafkaPublisherFactory(cfg, wmlogger.NewWatermillAdapter(logger))
		if err != nil {
			return nil, fmt.Errorf("create kafka publisher: %w", err)
		}
		return pub, nil
	}, retryDelay, logger)
}

func partitionKey(_ string, msg *message.Message) (string, error) {
	return msg.Metadata.Get(KeyMetadata), nil
}
