package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"agenda/backend/internal/mail"
)

const popTimeout = 5 * time.Second

// Worker drains the cancellation-mail queue and hands each job to the
// sender. Failed sends are logged and the job is dropped; the core defines
// no retry policy for notifications.
type Worker struct {
	client *redis.Client
	sender mail.Sender
	log    *slog.Logger
}

func NewWorker(client *redis.Client, sender mail.Sender, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		client: client,
		sender: sender,
		log:    log.With(slog.String("component", "queue.mail_worker")),
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		vals, err := w.client.BRPop(ctx, popTimeout, mailQueueKey).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			w.log.Warn("queue pop failed", slog.Any("err", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		if len(vals) != 2 {
			continue
		}

		var job MailJob
		if err := json.Unmarshal([]byte(vals[1]), &job); err != nil {
			w.log.Warn("dropping malformed mail job", slog.Any("err", err))
			continue
		}

		if err := w.sender.Send(job.To, job.ToName, job.Subject, job.Body); err != nil {
			w.log.Warn(
				"cancellation mail delivery failed",
				slog.Any("err", err),
				slog.String("to", job.To),
			)
			continue
		}
		w.log.Info("cancellation mail sent", slog.String("to", job.To))
	}
}
