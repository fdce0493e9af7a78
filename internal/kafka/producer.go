package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	ErrBufferFull = errors.New("kafka producer buffer full")
	ErrClosed     = errors.New("kafka producer closed")
)

// Producer queues messages in memory and writes them from a single
// goroutine, so Publish never blocks the caller.
type Producer struct {
	w        *kafka.Writer
	inbox    chan kafka.Message
	stopping chan struct{}
	closeCh  chan struct{}
	log      *slog.Logger
}

func NewProducer(brokers []string, topic string, buf int, log *slog.Logger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
		},
		inbox:    make(chan kafka.Message, buf),
		stopping: make(chan struct{}),
		closeCh:  make(chan struct{}),
		log:      log.With("component", "kafka-producer", "topic", topic),
	}
}

// Start runs the write loop until ctx is cancelled, then flushes whatever
// is still queued and closes the writer.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				close(p.stopping)
				p.drain()
				if err := p.w.Close(); err != nil {
					p.log.Warn("close writer", "error", err)
				}
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Error("write message", "key", string(m.Key), "error", err)
	}
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) error {
	m := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case <-p.stopping:
		return ErrClosed
	default:
	}
	select {
	case p.inbox <- m:
		return nil
	default:
		return ErrBufferFull
	}
}

// WaitClosed blocks until the write loop has flushed and exited.
func (p *Producer) WaitClosed() { <-p.closeCh }
