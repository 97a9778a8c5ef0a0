package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/config"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/logging"
	"github.com/therealutkarshpriyadarshi/jifmaker/pkg/models"
)

const (
	ConversionQueueName = "conversion_jobs"
	ExchangeName        = "jifmaker"
)

// JobHandler processes one job. A returned error dead-letters the message;
// conversion failures should be recorded on the job and return nil.
type JobHandler func(ctx context.Context, job *models.ConversionJob) error

// Queue provides message queue operations
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *logging.Logger
}

// New creates a new queue client
func New(cfg config.QueueConfig, logger *logging.Logger) (*Queue, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q := &Queue{conn: conn, channel: channel, logger: logger}

	if err := q.declare(); err != nil {
		q.Close()
		return nil, err
	}

	return q, nil
}

func (q *Queue) declare() error {
	if err := q.SetupDeadLetterQueue(); err != nil {
		return err
	}

	// Declare exchange
	err := q.channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Rejected messages fall through to the dead letter exchange
	_, err = q.channel.QueueDeclare(
		ConversionQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    DeadLetterExchangeName,
			"x-dead-letter-routing-key": DeadLetterQueueName,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	// Bind queue to exchange
	err = q.channel.QueueBind(
		ConversionQueueName,
		ConversionQueueName,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// PublishJob publishes a conversion job to the queue
func (q *Queue) PublishJob(ctx context.Context, job *models.ConversionJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		ExchangeName,
		ConversionQueueName,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    job.ID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	return nil
}

// ConsumeJobs starts consuming jobs from the queue. Jobs are handled one at a
// time and never requeued. The returned channel is closed once ctx is done and
// the job in flight, if any, has been acked.
func (q *Queue) ConsumeJobs(ctx context.Context, handler JobHandler) (<-chan struct{}, error) {
	// One conversion at a time per worker
	err := q.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		ConversionQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	done := make(chan struct{})
	go consume(ctx, msgs, handler, q.PublishToDeadLetterQueue, q.logger, done)

	return done, nil
}

// consume handles deliveries until ctx is done or msgs is closed, then closes done
func consume(ctx context.Context, msgs <-chan amqp.Delivery, handler JobHandler, deadLetter deadLetterFunc, logger *logging.Logger, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			handleDelivery(ctx, msg, handler, deadLetter, logger)
		}
	}
}

type deadLetterFunc func(ctx context.Context, body []byte, reason string) error

func handleDelivery(ctx context.Context, msg amqp.Delivery, handler JobHandler, deadLetter deadLetterFunc, logger *logging.Logger) {
	var job models.ConversionJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		reject(ctx, msg, deadLetter, "undecodable message: "+err.Error(), logger)
		return
	}

	if err := handler(ctx, &job); err != nil {
		logger.WithJobID(job.ID).ErrorWithErr("job handler failed", err)
		reject(ctx, msg, deadLetter, err.Error(), logger)
		return
	}

	msg.Ack(false)
}

func reject(ctx context.Context, msg amqp.Delivery, deadLetter deadLetterFunc, reason string, logger *logging.Logger) {
	// Shutdown must not lose the message
	if err := deadLetter(context.WithoutCancel(ctx), msg.Body, reason); err != nil {
		// The broker still routes the nacked message to the dead letter exchange
		logger.ErrorWithErr("failed to publish to dead letter queue", err)
		msg.Nack(false, false)
		return
	}
	msg.Ack(false)
}

// GetQueueDepth returns the number of messages in the queue
func (q *Queue) GetQueueDepth() (int, error) {
	info, err := q.channel.QueueInspect(ConversionQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}
