// Kafka-backed Publisher, adapted from the teacher's pkg/kafka/producer.go:
// same async-produce-plus-error-drain shape, generalized from a bespoke
// Message interface to this package's marketplace event types.
package events

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
)

// KafkaConfig configures the Kafka-backed Publisher.
type KafkaConfig struct {
	Brokers        []string
	RequiredAcks   int // 0=none, 1=leader, -1=all
	Compression    string
	FlushFrequency time.Duration
	FlushMessages  int
	MaxRetries     int
}

// DefaultKafkaConfig returns sane production defaults.
func DefaultKafkaConfig(brokers []string) KafkaConfig {
	return KafkaConfig{
		Brokers:        brokers,
		RequiredAcks:   1,
		Compression:    "snappy",
		FlushFrequency: 100 * time.Millisecond,
		FlushMessages:  100,
		MaxRetries:     3,
	}
}

// KafkaPublisher publishes marketplace events to Kafka.
type KafkaPublisher struct {
	producer sarama.AsyncProducer

	sentCount  atomic.Int64
	errorCount atomic.Int64

	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewKafkaPublisher builds a Publisher backed by a Sarama async producer.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	saramaCfg := sarama.NewConfig()

	switch cfg.RequiredAcks {
	case 0:
		saramaCfg.Producer.RequiredAcks = sarama.NoResponse
	case -1:
		saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	default:
		saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	}

	switch cfg.Compression {
	case "gzip":
		saramaCfg.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		saramaCfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		saramaCfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		saramaCfg.Producer.Compression = sarama.CompressionZSTD
	default:
		saramaCfg.Producer.Compression = sarama.CompressionNone
	}

	saramaCfg.Producer.Flush.Frequency = cfg.FlushFrequency
	saramaCfg.Producer.Flush.Messages = cfg.FlushMessages
	saramaCfg.Producer.Retry.Max = cfg.MaxRetries
	saramaCfg.Producer.Return.Successes = false
	saramaCfg.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("events: new kafka producer: %w", err)
	}

	p := &KafkaPublisher{producer: producer}
	p.wg.Add(1)
	go p.drainErrors()
	return p, nil
}

func (p *KafkaPublisher) Publish(_ context.Context, msg Message) error {
	if p.closed.Load() {
		return fmt.Errorf("events: kafka publisher closed")
	}
	data, err := msg.Value()
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", msg.Topic(), err)
	}
	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: msg.Topic(),
		Key:   sarama.StringEncoder(msg.Key()),
		Value: sarama.ByteEncoder(data),
	}
	p.sentCount.Add(1)
	return nil
}

func (p *KafkaPublisher) drainErrors() {
	defer p.wg.Done()
	for err := range p.producer.Errors() {
		p.errorCount.Add(1)
		log.Printf("events: kafka publish to %s failed: %v", err.Msg.Topic, err.Err)
	}
}

func (p *KafkaPublisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	err := p.producer.Close()
	p.wg.Wait()
	return err
}

var _ Publisher = (*KafkaPublisher)(nil)
