package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"courtbook/internal/events"
	"courtbook/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const deadLetterKey = "courtbook:events:deadletter"

var ErrQueueFull = errors.New("event queue is full")

// Sink receives events that leave the process.
type Sink interface {
	Deliver(ctx context.Context, event *events.Event) error
}

// EventRelay buffers bus events and hands them to a Sink with exponential
// backoff. Events that exhaust their retries go to a redis dead-letter list
// when a client is configured, otherwise they are only logged.
type EventRelay struct {
	sink        Sink
	redis       *redis.Client
	retryPolicy RetryPolicy
	queue       chan *events.Event
	logger      *zerolog.Logger
	sleep       func(ctx context.Context, d time.Duration) bool
}

func NewEventRelay(sink Sink, redisClient *redis.Client, retry RetryPolicy, queueSize int, logger *zerolog.Logger) *EventRelay {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &EventRelay{
		sink:        sink,
		redis:       redisClient,
		retryPolicy: retry.withDefaults(),
		queue:       make(chan *events.Event, queueSize),
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// Attach subscribes the relay to every booking event on the bus.
func (r *EventRelay) Attach(bus *events.EventBus) {
	for _, eventType := range []string{events.EventBookingCreated, events.EventBookingStatusChanged} {
		bus.Subscribe(eventType, r.Enqueue)
	}
}

// Enqueue never blocks the publisher.
func (r *EventRelay) Enqueue(event *events.Event) error {
	select {
	case r.queue <- event:
		return nil
	default:
		r.pushDeadLetter(context.Background(), event, ErrQueueFull)
		return ErrQueueFull
	}
}

// Start consumes the queue until ctx is done.
func (r *EventRelay) Start(ctx context.Context) {
	r.logger.Info().Msg("Event relay started")
	defer r.logger.Info().Msg("Event relay stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-r.queue:
			r.process(ctx, event)
		}
	}
}

func (r *EventRelay) process(ctx context.Context, event *events.Event) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = r.sink.Deliver(ctx, event)
		if lastErr == nil {
			metrics.IncEventDelivery("ok")
			return
		}

		metrics.IncEventDelivery("retry")
		delay := r.retryPolicy.NextDelay(attempt)
		r.logger.Warn().Err(lastErr).
			Str("event_id", event.ID).
			Int("attempt", attempt).
			Dur("next_delay", delay).
			Msg("Event delivery failed")

		if r.retryPolicy.Exhausted(attempt) || !r.sleep(ctx, delay) {
			break
		}
	}

	metrics.IncEventDelivery("dead")
	r.pushDeadLetter(ctx, event, lastErr)
}

type deadLetter struct {
	Event    *events.Event `json:"event"`
	Error    string        `json:"error"`
	FailedAt time.Time     `json:"failed_at"`
}

func (r *EventRelay) pushDeadLetter(ctx context.Context, event *events.Event, cause error) {
	r.logger.Error().Err(cause).Str("event_id", event.ID).Str("type", event.Type).Msg("Event dead-lettered")
	if r.redis == nil {
		return
	}

	entry := deadLetter{Event: event, FailedAt: time.Now().UTC()}
	if cause != nil {
		entry.Error = cause.Error()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		r.logger.Error().Err(err).Str("event_id", event.ID).Msg("Encode dead letter")
		return
	}
	// ctx may already be cancelled on shutdown.
	if err := r.redis.LPush(context.WithoutCancel(ctx), deadLetterKey, data).Err(); err != nil {
		r.logger.Error().Err(err).Str("event_id", event.ID).Msg("Dead letter push failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
