package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TaskBookingEvent is the queue task type consumed by the notification worker.
const TaskBookingEvent = "notify:booking_event"

// BookingEventPayload is the task body.
type BookingEventPayload struct {
	UserID  int64           `json:"user_id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// Dispatcher enqueues user notifications for booking state transitions.
// Dispatch is fire-and-forget: failures are logged, never propagated into the
// lifecycle operation that triggered them.
type Dispatcher struct {
	client *asynq.Client
	logger *zap.Logger
}

// NewDispatcher connects an asynq producer to the notification queue.
func NewDispatcher(redisAddr, redisPassword string, redisDB int, logger *zap.Logger) *Dispatcher {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
	return &Dispatcher{client: client, logger: logger}
}

// BookingEvent enqueues one notification task.
func (d *Dispatcher) BookingEvent(ctx context.Context, userID int64, kind string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Warn("failed to marshal notification payload", zap.String("kind", kind), zap.Error(err))
		return
	}

	task, err := json.Marshal(BookingEventPayload{
		UserID:  userID,
		Kind:    kind,
		Payload: body,
		At:      time.Now().UTC(),
	})
	if err != nil {
		d.logger.Warn("failed to marshal notification task", zap.String("kind", kind), zap.Error(err))
		return
	}

	if _, err := d.client.EnqueueContext(ctx, asynq.NewTask(TaskBookingEvent, task)); err != nil {
		d.logger.Warn("failed to enqueue notification",
			zap.Int64("user_id", userID),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
}

// Close releases the queue connection.
func (d *Dispatcher) Close() error {
	return d.client.Close()
}
