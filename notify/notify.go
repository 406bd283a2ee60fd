package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/go-multierror"
	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Subjects of the messages sent by the donation services.
const (
	SubjectCollectCreated = "Create collect"
	SubjectPaymentCreated = "Create payment"
)

// Message is an outbound notification.
type Message struct {
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Recipients []string  `json:"recipients,omitempty"`
	Key        string    `json:"key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, msg Message) error

func (f Func) Notify(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Nop discards every message.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var result *multierror.Error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Log writes messages to a zap logger.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a logging notifier.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, msg Message) error {
	l.logger.Info("notification",
		zap.String("subject", msg.Subject),
		zap.Strings("recipients", msg.Recipients),
		zap.String("body", msg.Body),
	)
	return nil
}

// RedisStream appends messages to a Redis stream as a JSON "payload" field.
type RedisStream struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// NewRedisStream creates a stream notifier. maxLen > 0 caps the stream
// approximately.
func NewRedisStream(client redis.UniversalClient, stream string, maxLen int64) *RedisStream {
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

func (r *RedisStream) Notify(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return pkgerrors.Wrap(err, "encode notification")
	}
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{"payload": payload},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return pkgerrors.Wrapf(err, "xadd %s", r.stream)
	}
	return nil
}

// MessageWriter is the part of *kafka.Writer the Kafka notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes messages keyed by Message.Key so that messages of one
// entity stay ordered within a partition.
type Kafka struct {
	writer MessageWriter
}

// NewKafkaWriter builds the writer used in production.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
	}
}

// NewKafka creates a Kafka notifier on writer.
func NewKafka(writer MessageWriter) *Kafka {
	return &Kafka{writer: writer}
}

func (k *Kafka) Notify(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return pkgerrors.Wrap(err, "encode notification")
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "subject", Value: []byte(msg.Subject)},
		},
	})
	return pkgerrors.Wrap(err, "kafka write")
}

// Close closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
