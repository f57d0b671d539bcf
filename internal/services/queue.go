package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ejezie/Enact-Pricing/internal/models"
)

const (
	ScrapeJobsQueue    = "scrape_jobs"
	ScrapeResultsQueue = "scrape_results"
)

// QueueService manages the RabbitMQ connection used by the async scrape
// path. Jobs go out on scrape_jobs; raw listings come back on
// scrape_results and are analyzed in-process.
type QueueService struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewQueueService connects to RabbitMQ and declares the required queues.
func NewQueueService(url string) (*QueueService, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	// Declare queues (idempotent).
	for _, name := range []string{ScrapeJobsQueue, ScrapeResultsQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
	}

	return &QueueService{conn: conn, channel: ch}, nil
}

// PublishScrapeJob enqueues a search for the scraper worker.
func (q *QueueService) PublishScrapeJob(ctx context.Context, job *models.ScrapeJob) error {
	return q.publish(ctx, ScrapeJobsQueue, job)
}

// PublishScrapeResult enqueues raw listings for analysis. Used by the
// in-process worker when the gateway scrapes locally.
func (q *QueueService) PublishScrapeResult(ctx context.Context, result *models.ScrapeResult) error {
	return q.publish(ctx, ScrapeResultsQueue, result)
}

func (q *QueueService) publish(ctx context.Context, queue string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return q.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
}

// ConsumeScrapeJobs returns a channel of pending scrape jobs. It runs until
// the context is cancelled.
func (q *QueueService) ConsumeScrapeJobs(ctx context.Context) (<-chan models.ScrapeJob, error) {
	msgs, err := q.channel.Consume(ScrapeJobsQueue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", ScrapeJobsQueue, err)
	}

	jobs := make(chan models.ScrapeJob, 10)
	go pump(ctx, msgs, jobs)
	return jobs, nil
}

// ConsumeScrapeResults returns a channel of completed scrape results. It
// runs until the context is cancelled.
func (q *QueueService) ConsumeScrapeResults(ctx context.Context) (<-chan models.ScrapeResult, error) {
	msgs, err := q.channel.Consume(ScrapeResultsQueue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", ScrapeResultsQueue, err)
	}

	results := make(chan models.ScrapeResult, 10)
	go pump(ctx, msgs, results)
	return results, nil
}

// pump decodes deliveries into typed messages, acking good ones and
// dropping bad ones.
func pump[T any](ctx context.Context, msgs <-chan amqp.Delivery, out chan<- T) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var payload T
			if err := json.Unmarshal(msg.Body, &payload); err != nil {
				log.Printf("[queue] failed to unmarshal message: %v", err)
				msg.Nack(false, false)
				continue
			}
			msg.Ack(false)
			out <- payload
		}
	}
}

// Ping checks if RabbitMQ is reachable.
func (q *QueueService) Ping() error {
	if q.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection closed")
	}
	return nil
}

// Close tears down the connection.
func (q *QueueService) Close() {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		q.conn.Close()
	}
}
