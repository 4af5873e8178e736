package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/google/uuid"

	"github.com/postboard/apiserver/internal/mq"
	"github.com/postboard/apiserver/types"
)

// ObjectWriter is the subset of storage.Storage used by the archiver.
type ObjectWriter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// Subscriber is the consuming half of mq.MQ.
type Subscriber interface {
	Subscribe(ctx context.Context, handler mq.Handler) error
}

// Archiver writes every received event to object storage under
// activity/YYYY/MM/DD/<type>/<id>.json.
type Archiver struct {
	objects ObjectWriter
	logger  *slog.Logger
}

func NewArchiver(objects ObjectWriter, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{objects: objects, logger: logger}
}

// Run consumes events until ctx is done or the subscription fails.
func (a *Archiver) Run(ctx context.Context, sub Subscriber) error {
	a.logger.InfoContext(ctx, "activity archiver started")
	return sub.Subscribe(ctx, a.Handle)
}

// Handle archives a single message. Undecodable messages are logged and
// acknowledged; storage failures are returned so the broker redelivers.
func (a *Archiver) Handle(ctx context.Context, msg mq.Message) error {
	var event types.Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		a.logger.WarnContext(ctx, "dropping undecodable event",
			slog.String("message_id", msg.ID),
			slog.Any("error", err),
		)
		return nil
	}
	if event.Type == "" || event.OccurredAt.IsZero() {
		a.logger.WarnContext(ctx, "dropping incomplete event", slog.String("message_id", msg.ID))
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	key := ArchiveKey(event)
	if err := a.objects.Put(ctx, key, bytes.NewReader(msg.Data), int64(len(msg.Data)), "application/json"); err != nil {
		return fmt.Errorf("archive event %s: %w", event.ID, err)
	}

	a.logger.DebugContext(ctx, "event archived",
		slog.String("key", key),
		slog.String("type", event.Type),
	)
	return nil
}

// ArchiveKey returns the object key for event.
func ArchiveKey(event types.Event) string {
	t := event.OccurredAt.UTC()
	return path.Join(
		"activity",
		t.Format("2006"), t.Format("01"), t.Format("02"),
		event.Type,
		event.ID+".json",
	)
}
