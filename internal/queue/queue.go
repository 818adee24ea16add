package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"agenda/backend/internal/notify"
)

const mailQueueKey = "agenda:queue:cancellation_mail"

// MailJob is the payload the cancellation path pushes for the worker.
type MailJob struct {
	To      string `json:"to"`
	ToName  string `json:"to_name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewRedisClient creates a Redis client from connection settings.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Queue is a redis-list job queue for outbound cancellation mail. It
// implements notify.Sink so the dispatcher can hand cancellation events
// straight to it.
type Queue struct {
	client *redis.Client
}

func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func (q *Queue) Enqueue(ctx context.Context, job MailJob) error {
	if q.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal mail job: %w", err)
	}
	if err := q.client.LPush(ctx, mailQueueKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue mail job: %w", err)
	}
	return nil
}

func (q *Queue) Emit(ctx context.Context, ev notify.Event) error {
	if ev.RecipientEmail == "" {
		return fmt.Errorf("event has no recipient email")
	}
	return q.Enqueue(ctx, MailJob{
		To:      ev.RecipientEmail,
		ToName:  ev.RecipientName,
		Subject: "Appointment cancelled",
		Body:    ev.Content,
	})
}

// Len reports the number of pending jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, mailQueueKey).Result()
}
