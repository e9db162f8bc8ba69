package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	Exchange    = "multiproduct.jobs"
	WorkerQueue = "multiproduct.jobs.worker"
)

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

func dial(rawURL string) (*amqp.Connection, *amqp.Channel, error) {
	cleanURL, err := sanitizeAMQPURL(rawURL)
	if err != nil {
		return nil, nil, err
	}
	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// Publisher sends jobs to the topic exchange, routed by kind.
type Publisher struct {
	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
}

func NewPublisher(amqpURL string, logger *slog.Logger) (*Publisher, error) {
	conn, ch, err := dial(amqpURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Publisher{conn: conn, ch: ch, logger: logger}, nil
}

func (p *Publisher) Enqueue(ctx context.Context, kind Kind, recipient string, payload map[string]any) {
	job := NewJob(kind, recipient, payload)
	if err := p.publish(ctx, job); err != nil {
		p.logger.Error("publish job failed", "kind", kind, "job_id", job.ID, "error", err)
	}
}

func (p *Publisher) publish(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.EnqueuedAt,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, Exchange, string(job.Kind), false, false, msg)
	if err == nil {
		return nil
	}
	// one retry on a fresh channel
	p.logger.Warn("publish failed; reopening channel", "kind", job.Kind, "error", err)
	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return chErr
	}
	p.ch = ch
	return p.ch.PublishWithContext(ctx, Exchange, string(job.Kind), false, false, msg)
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Consumer feeds jobs from WorkerQueue into a Registry.
type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	registry *Registry
	logger   *slog.Logger
	timeout  time.Duration
	prefetch int
}

func NewConsumer(amqpURL string, registry *Registry, prefetch int, logger *slog.Logger) (*Consumer, error) {
	conn, ch, err := dial(amqpURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		conn:     conn,
		ch:       ch,
		registry: registry,
		logger:   logger,
		timeout:  defaultJobTimeout,
		prefetch: prefetch,
	}, nil
}

// Run consumes until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	q, err := c.ch.QueueDeclare(WorkerQueue, true, false, false, false, nil)
	if err != nil {
		return err
	}
	kinds := c.registry.Kinds()
	if len(kinds) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	for _, k := range kinds {
		if err := c.ch.QueueBind(q.Name, string(k), Exchange, false, nil); err != nil {
			return err
		}
	}
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return err
	}

	deliveries, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	c.logger.Info("consuming jobs", "queue", q.Name, "kinds", len(kinds))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.deliver(d)
		}
	}
}

func (c *Consumer) deliver(d amqp.Delivery) {
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		c.logger.Error("malformed job; dropping", "routing_key", d.RoutingKey, "error", err)
		_ = d.Ack(false)
		return
	}
	job.Attempt = 1
	if d.Redelivered {
		job.Attempt = 2
	}

	err := c.handle(job)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrNoHandler):
		c.logger.Error("no handler; dropping", "kind", job.Kind, "job_id", job.ID)
		_ = d.Ack(false)
	case d.Redelivered:
		c.logger.Error("job failed after redelivery; dropping", "kind", job.Kind, "job_id", job.ID, "error", err)
		_ = d.Nack(false, false)
	default:
		c.logger.Warn("job failed; re-queuing", "kind", job.Kind, "job_id", job.ID, "error", err)
		_ = d.Nack(false, true)
	}
}

func (c *Consumer) handle(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.registry.Handle(ctx, job)
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
