package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
)

// AMQPConsumer reads flight records from a durable RabbitMQ queue. Each
// message carries one record (or an array of them).
type AMQPConsumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queue     string
	sink      Ingester
	log       *logger.Logger
	closeOnce sync.Once
}

// NewAMQPConsumer connects, opens a channel and declares the queue.
func NewAMQPConsumer(url, queue string, sink Ingester, log *logger.Logger) (*AMQPConsumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	// Prefetch 1 keeps snapshots for one flight in publish order.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &AMQPConsumer{
		conn:    conn,
		channel: ch,
		queue:   queue,
		sink:    sink,
		log:     log,
	}, nil
}

// Run consumes until ctx is cancelled or the broker closes the channel.
func (c *AMQPConsumer) Run(ctx context.Context) error {
	msgs, err := c.channel.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.log.Info("feed consumer online (queue=%s)", c.queue)

	for {
		select {
		case <-ctx.Done():
			c.log.Info("feed consumer stopped")
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("message channel closed")
			}
			handleDelivery(ctx, d, c.sink, c.log)
		}
	}
}

// handleDelivery ingests one message. A message with no usable record is
// dropped without requeue; any other failure puts it back on the queue.
func handleDelivery(ctx context.Context, d amqp.Delivery, sink Ingester, log *logger.Logger) {
	recs, err := DecodeRecords(d.Body)
	if err != nil {
		log.Warn("feed: dropping message %d: %v", d.DeliveryTag, err)
		d.Nack(false, false)
		return
	}

	observed := d.Timestamp
	if observed.IsZero() {
		observed = time.Now()
	}

	ingested := 0
	for _, rec := range recs {
		snap, err := rec.Snapshot(observed)
		if err == nil {
			_, err = sink.Ingest(ctx, snap)
		}
		if err == nil {
			ingested++
			continue
		}
		if errors.Is(err, domain.ErrMalformedSnapshot) {
			log.Warn("feed: skipping record %q: %v", rec.Ident, err)
			continue
		}
		log.Error("feed: ingest %q: %v", rec.Ident, err)
		d.Nack(false, ctx.Err() == nil)
		return
	}

	if ingested == 0 {
		d.Nack(false, false)
		return
	}
	d.Ack(false)
}

// Close shuts down the channel and connection.
func (c *AMQPConsumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.channel != nil {
			c.channel.Close()
		}
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}
