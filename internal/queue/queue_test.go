package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/backend/internal/notify"
)

type captureSender struct {
	mu   sync.Mutex
	sent []MailJob
}

func (c *captureSender) Send(to, toName, subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, MailJob{To: to, ToName: toName, Subject: subject, Body: body})
	return nil
}

func (c *captureSender) snapshot() []MailJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]MailJob(nil), c.sent...)
}

func TestQueueEnqueueAndEmit(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	q := New(client)
	ctx := context.Background()

	t.Run("EnqueuePushesJSON", func(t *testing.T) {
		err := q.Enqueue(ctx, MailJob{
			To:      "provider@example.com",
			ToName:  "Pat Provider",
			Subject: "Appointment cancelled",
			Body:    "Chris cancelled the 14:00 slot",
		})
		require.NoError(t, err)

		pending, err := q.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), pending)

		raw, err := s.Pop(mailQueueKey)
		require.NoError(t, err)

		var job MailJob
		require.NoError(t, json.Unmarshal([]byte(raw), &job))
		assert.Equal(t, "provider@example.com", job.To)
		assert.Equal(t, "Pat Provider", job.ToName)

		pending, err = q.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, pending)
	})

	t.Run("EmitConvertsEvent", func(t *testing.T) {
		err := q.Emit(ctx, notify.Event{
			Kind:           notify.KindCancellation,
			RecipientID:    uuid.New(),
			RecipientName:  "Pat Provider",
			RecipientEmail: "provider@example.com",
			Content:        "the appointment was cancelled",
		})
		require.NoError(t, err)

		raw, err := s.Pop(mailQueueKey)
		require.NoError(t, err)

		var job MailJob
		require.NoError(t, json.Unmarshal([]byte(raw), &job))
		assert.Equal(t, "provider@example.com", job.To)
		assert.Equal(t, "Appointment cancelled", job.Subject)
		assert.Equal(t, "the appointment was cancelled", job.Body)
	})

	t.Run("EmitRejectsMissingEmail", func(t *testing.T) {
		err := q.Emit(ctx, notify.Event{Kind: notify.KindCancellation})
		assert.Error(t, err)
	})
}

func TestWorkerDeliversJobs(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	sender := &captureSender{}
	w := NewWorker(client, sender, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	q := New(client)
	require.NoError(t, q.Enqueue(ctx, MailJob{
		To:      "provider@example.com",
		Subject: "Appointment cancelled",
		Body:    "body",
	}))

	require.Eventually(t, func() bool {
		return len(sender.snapshot()) == 1
	}, 3*time.Second, 10*time.Millisecond)

	sent := sender.snapshot()
	assert.Equal(t, "provider@example.com", sent[0].To)
	assert.Equal(t, "Appointment cancelled", sent[0].Subject)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("worker did not stop after cancel")
	}
}

func TestWorkerDropsMalformedJobs(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	_, err = s.Lpush(mailQueueKey, "not json")
	require.NoError(t, err)

	sender := &captureSender{}
	w := NewWorker(client, sender, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = w.Run(ctx)

	assert.Empty(t, sender.snapshot())
	assert.False(t, s.Exists(mailQueueKey))
}
