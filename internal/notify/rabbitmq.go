package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"mindcare/backend/pkg/logger"
)

// Connect dials the broker and verifies a channel can be opened within a few seconds.
func Connect(ctx context.Context, url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq failed: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		ch, err := conn.Channel()
		if err == nil {
			err = ch.Close()
		}
		done <- err
	}()

	select {
	case <-checkCtx.Done():
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq health check timeout: %w", checkCtx.Err())
	case err := <-done:
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
		}
		return conn, nil
	}
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	return err
}

// Publisher enqueues email jobs on a durable queue as persistent messages.
type Publisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewPublisher(conn *amqp.Connection, queueName string) *Publisher {
	return &Publisher{conn: conn, queueName: queueName}
}

func (p *Publisher) Notify(ctx context.Context, job EmailJob) error {
	return p.Publish(ctx, job)
}

func (p *Publisher) Publish(ctx context.Context, job EmailJob) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := declareQueue(ch, p.queueName); err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal email job failed: %w", err)
	}

	if err := ch.PublishWithContext(ctx, "", p.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         payload,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Type:         string(job.Kind),
	}); err != nil {
		return fmt.Errorf("publish email job failed: %w", err)
	}
	return nil
}

// acknowledger is the part of amqp.Delivery the worker settles messages with.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Worker consumes email jobs and hands them to a Mailer.
type Worker struct {
	conn      *amqp.Connection
	mailer    Mailer
	queueName string
	log       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(conn *amqp.Connection, mailer Mailer, queueName string, log *logger.Logger) *Worker {
	return &Worker{
		conn:      conn,
		mailer:    mailer,
		queueName: queueName,
		log:       log.WithComponent("email_worker"),
	}
}

// Start begins consuming in the background. Calling Start twice is a no-op.
func (w *Worker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := declareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d, d.Body)
			}
		}
	}()

	w.log.Info("Email worker started", "queue", w.queueName)
	return nil
}

// handle never requeues: a job that fails once is dropped and logged.
func (w *Worker) handle(ctx context.Context, ack acknowledger, body []byte) {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.log.LogError(err, "Email worker could not decode job")
		_ = ack.Nack(false, false)
		return
	}

	if err := w.mailer.Send(ctx, job); err != nil {
		w.log.LogError(err, "Email worker could not send email", "kind", string(job.Kind), "to", job.To)
		_ = ack.Nack(false, false)
		return
	}

	_ = ack.Ack(false)
}

// Close stops consuming and waits for the in-flight job.
func (w *Worker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
