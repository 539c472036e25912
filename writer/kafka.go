package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	kafka "github.com/segmentio/kafka-go"

	appconfig "futuresflow/config"
	"futuresflow/logger"
	"futuresflow/models"
)

// messageWriter is the part of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards live ticks to a Kafka topic keyed by instrument.
// It is a side channel: publish failures never affect persistence.
type KafkaPublisher struct {
	ticks    <-chan models.MarketTick
	writer   messageWriter
	maxBatch int

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	log     *logger.Log

	published int64
	failed    int64
}

func NewKafkaPublisher(cfg appconfig.KafkaConfig, ticks <-chan models.MarketTick) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	p := newKafkaPublisher(w, ticks)
	p.log.WithComponent("kafka_publisher").WithFields(logger.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Info("kafka publisher initialized")
	return p, nil
}

func newKafkaPublisher(w messageWriter, ticks <-chan models.MarketTick) *KafkaPublisher {
	return &KafkaPublisher{ticks: ticks, writer: w, maxBatch: 256, log: logger.GetLogger()}
}

func (kp *KafkaPublisher) Start(ctx context.Context) error {
	kp.mu.Lock()
	defer kp.mu.Unlock()
	if kp.running {
		return fmt.Errorf("kafka publisher already running")
	}
	kp.running = true
	kp.ctx, kp.cancel = context.WithCancel(ctx)

	kp.wg.Add(1)
	go kp.run()
	return nil
}

func (kp *KafkaPublisher) run() {
	defer kp.wg.Done()
	for {
		select {
		case <-kp.ctx.Done():
			return
		case tick, ok := <-kp.ticks:
			if !ok {
				return
			}
			batch := kp.collect(tick)
			kp.publish(batch)
		}
	}
}

// collect takes tick plus whatever else is already queued, up to maxBatch.
func (kp *KafkaPublisher) collect(first models.MarketTick) []kafka.Message {
	msgs := make([]kafka.Message, 0, 16)
	add := func(t models.MarketTick) {
		data, err := json.Marshal(t)
		if err != nil {
			kp.log.WithComponent("kafka_publisher").WithError(err).Warn("failed to marshal tick")
			return
		}
		msgs = append(msgs, kafka.Message{Key: []byte(t.InstrumentID), Value: data, Time: t.UpdateTime})
	}
	add(first)
	for len(msgs) < kp.maxBatch {
		select {
		case t, ok := <-kp.ticks:
			if !ok {
				return msgs
			}
			add(t)
		default:
			return msgs
		}
	}
	return msgs
}

func (kp *KafkaPublisher) publish(msgs []kafka.Message) {
	if len(msgs) == 0 {
		return
	}
	if err := kp.writer.WriteMessages(kp.ctx, msgs...); err != nil {
		kp.mu.Lock()
		kp.failed += int64(len(msgs))
		kp.mu.Unlock()
		kp.log.WithComponent("kafka_publisher").WithError(err).WithField("messages", len(msgs)).Warn("failed to write messages")
		return
	}
	kp.mu.Lock()
	kp.published += int64(len(msgs))
	kp.mu.Unlock()
}

func (kp *KafkaPublisher) Stop() {
	kp.mu.Lock()
	if !kp.running {
		kp.mu.Unlock()
		return
	}
	kp.running = false
	kp.cancel()
	kp.mu.Unlock()

	kp.wg.Wait()
	if err := kp.writer.Close(); err != nil {
		kp.log.WithComponent("kafka_publisher").WithError(err).Warn("failed to close kafka writer")
	}
	published, failed := kp.Stats()
	kp.log.WithComponent("kafka_publisher").WithFields(logger.Fields{
		"published": published,
		"failed":    failed,
	}).Info("kafka publisher stopped")
}

func (kp *KafkaPublisher) Stats() (published, failed int64) {
	kp.mu.Lock()
	defer kp.mu.Unlock()
	return kp.published, kp.failed
}
