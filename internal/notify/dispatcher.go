package notify

import (
	"context"
	"log/slog"
)

// Dispatcher routes events to the sink that owns their delivery channel:
// new bookings land in the in-app feed, cancellations go out as mail.
// Sink failures are logged and swallowed here so callers never see them.
type Dispatcher struct {
	feed Sink
	mail Sink
	log  *slog.Logger
}

func NewDispatcher(feed, mail Sink, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		feed: feed,
		mail: mail,
		log:  log.With(slog.String("component", "notify.dispatcher")),
	}
}

func (d *Dispatcher) Emit(ctx context.Context, ev Event) error {
	var sink Sink
	switch ev.Kind {
	case KindNewBooking:
		sink = d.feed
	case KindCancellation:
		sink = d.mail
	default:
		d.log.Warn("unknown event kind", slog.String("kind", string(ev.Kind)))
		return nil
	}

	if sink == nil {
		return nil
	}
	if err := sink.Emit(ctx, ev); err != nil {
		d.log.Warn(
			"notification delivery failed",
			slog.Any("err", err),
			slog.String("kind", string(ev.Kind)),
			slog.String("recipient_id", ev.RecipientID.String()),
		)
	}
	return nil
}
