package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/segmentio/kafka-go"

	"cex-ledger/biz/model"
	"cex-ledger/conf"
)

const (
	batchSize     = 100
	flushInterval = 200 * time.Millisecond
	queueSize     = 10000
)

// messageWriter 便于测试替换 kafka.Writer
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher 领域事件批量写入 Kafka；队列满时丢弃并告警
type Publisher struct {
	writer messageWriter
	topic  string
	queue  chan kafka.Message
	done   chan struct{}
	once   sync.Once
}

// CheckConnection 测试 Kafka 连接
func CheckConnection(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("kafka brokers not configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to kafka: %w", err)
	}
	return conn.Close()
}

// Init 连接测试后创建 writer 并启动批量刷写
func Init(ctx context.Context, cfg conf.Kafka) (*Publisher, error) {
	if err := CheckConnection(ctx, cfg.Brokers); err != nil {
		return nil, err
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: flushInterval,
	}
	return newPublisher(w, cfg.Topic), nil
}

func newPublisher(w messageWriter, topic string) *Publisher {
	p := &Publisher{
		writer: w,
		topic:  topic,
		queue:  make(chan kafka.Message, queueSize),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

// Publish 以 channel 作为分区键，保证同一频道内有序
func (p *Publisher) Publish(_ context.Context, evt model.Event) {
	val, err := json.Marshal(evt)
	if err != nil {
		hlog.Errorf("[KafkaPublisher] marshal event failed: %v", err)
		return
	}
	msg := kafka.Message{Key: []byte(evt.Channel), Value: val}
	select {
	case p.queue <- msg:
	default:
		hlog.Warnf("[KafkaPublisher] queue full, drop event type=%s channel=%s", evt.Type, evt.Channel)
	}
}

func (p *Publisher) loop() {
	defer close(p.done)
	batch := make([]kafka.Message, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-p.queue:
			if !ok {
				p.flush(&batch)
				return
			}
			batch = append(batch, msg)
			if len(batch) >= batchSize {
				p.flush(&batch)
			}
		case <-ticker.C:
			p.flush(&batch)
		}
	}
}

func (p *Publisher) flush(batch *[]kafka.Message) {
	if len(*batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, (*batch)...); err != nil {
		hlog.Errorf("[KafkaPublisher] 写入Kafka失败，topic=%v，数量=%d，err=%v", p.topic, len(*batch), err)
	}
	*batch = (*batch)[:0]
}

// Close 刷完队列后关闭 writer
func (p *Publisher) Close() error {
	p.once.Do(func() { close(p.queue) })
	<-p.done
	return p.writer.Close()
}
