package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// EventTypeBatchApplied 事件類型，放在 message header
const EventTypeBatchApplied = "ledger.batch_applied"

// messageWriter 是 *kafka.Writer 用到的部分，測試時替換
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config Kafka 發布設定
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Publisher 將 BatchApplied 事件寫入 Kafka，以 batch id 作為 key
type Publisher struct {
	writer       messageWriter
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewPublisher 建立 Publisher
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher: brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka publisher: topic is required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           cfg.WriteTimeout,
	}
	return newPublisher(writer, cfg.WriteTimeout, logger), nil
}

func newPublisher(w messageWriter, writeTimeout time.Duration, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{writer: w, writeTimeout: writeTimeout, logger: logger}
}

// PublishBatchApplied 發布批次提交事件
func (p *Publisher) PublishBatchApplied(ctx context.Context, event *domain.BatchApplied) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal batch event: %w", err)
	}

	if p.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.writeTimeout)
		defer cancel()
	}

	msg := kafka.Message{
		Key:   []byte(event.BatchID.String()),
		Value: payload,
		Time:  event.AppliedAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventTypeBatchApplied)},
		},
	}
	if event.Ref != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "ref", Value: []byte(event.Ref)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write batch event: %w", err)
	}
	p.logger.DebugContext(ctx, "batch event published",
		slog.String("batch_id", event.BatchID.String()),
		slog.Int("transactions", len(event.Transactions)))
	return nil
}

// Close 關閉 writer，送出緩衝中的訊息
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ usecase.EventPublisher = (*Publisher)(nil)
