package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/postboard/apiserver/internal/events"
	"github.com/postboard/apiserver/internal/mq"
	"github.com/postboard/apiserver/internal/storage"
	"github.com/postboard/apiserver/types"
)

type captureBroker struct {
	data  [][]byte
	attrs []map[string]string
	err   error
}

func (b *captureBroker) Publish(_ context.Context, data []byte, attrs map[string]string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.data = append(b.data, data)
	b.attrs = append(b.attrs, attrs)
	return "msg-1", nil
}

// Subscribe replays everything published so far.
func (b *captureBroker) Subscribe(ctx context.Context, handler mq.Handler) error {
	for i, data := range b.data {
		if err := handler(ctx, mq.Message{Data: data, Attributes: b.attrs[i]}); err != nil {
			return err
		}
	}
	return nil
}

type failingWriter struct{}

func (failingWriter) Put(context.Context, string, io.Reader, int64, string) error {
	return errors.New("bucket unavailable")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisherFillsIDAndTime(t *testing.T) {
	c := qt.New(t)
	broker := &captureBroker{}
	pub := events.NewPublisher(broker)

	err := pub.Publish(context.Background(), types.Event{Type: types.EventLikeAdded, ActorID: 2, PostID: 7})
	c.Assert(err, qt.IsNil)
	c.Assert(broker.data, qt.HasLen, 1)
	c.Assert(broker.attrs[0], qt.DeepEquals, map[string]string{"type": types.EventLikeAdded})

	var got types.Event
	c.Assert(json.Unmarshal(broker.data[0], &got), qt.IsNil)
	c.Assert(got.ID, qt.Not(qt.Equals), "")
	c.Assert(got.OccurredAt.IsZero(), qt.IsFalse)
	c.Assert(got.PostID, qt.Equals, 7)
}

func TestPublisherWrapsBrokerError(t *testing.T) {
	c := qt.New(t)
	pub := events.NewPublisher(&captureBroker{err: errors.New("down")})

	err := pub.Publish(context.Background(), types.Event{Type: types.EventPostCreated})
	c.Assert(err, qt.ErrorMatches, "publish event post.created: down")
}

func TestArchiveKey(t *testing.T) {
	c := qt.New(t)
	event := types.Event{
		ID:         "abc",
		Type:       types.EventPostDeleted,
		OccurredAt: time.Date(2026, 3, 4, 23, 59, 0, 0, time.FixedZone("X", -2*3600)),
	}
	c.Assert(events.ArchiveKey(event), qt.Equals, "activity/2026/03/05/post.deleted/abc.json")
}

func TestArchiverStoresPublishedEvents(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	broker := &captureBroker{}
	pub := events.NewPublisher(broker)
	c.Assert(pub.Publish(ctx, types.Event{ID: "e1", Type: types.EventUserRegistered, ActorID: 1}), qt.IsNil)

	mem := storage.NewMemory("archive")
	archiver := events.NewArchiver(storage.NewStorage(mem), discardLogger())
	c.Assert(archiver.Run(ctx, broker), qt.IsNil)

	keys := mem.Keys()
	c.Assert(keys, qt.HasLen, 1)
	c.Assert(keys[0], qt.Matches, `activity/\d{4}/\d{2}/\d{2}/user\.registered/e1\.json`)

	r, err := mem.Get(ctx, keys[0])
	c.Assert(err, qt.IsNil)
	data, err := io.ReadAll(r)
	c.Assert(err, qt.IsNil)
	c.Assert(bytes.Equal(data, broker.data[0]), qt.IsTrue)
}

func TestArchiverDropsMalformedMessages(t *testing.T) {
	c := qt.New(t)
	mem := storage.NewMemory("archive")
	archiver := events.NewArchiver(mem, discardLogger())

	c.Assert(archiver.Handle(context.Background(), mq.Message{ID: "m", Data: []byte("{")}), qt.IsNil)
	c.Assert(archiver.Handle(context.Background(), mq.Message{ID: "m", Data: []byte(`{"id":"x"}`)}), qt.IsNil)
	c.Assert(mem.Keys(), qt.HasLen, 0)
}

func TestArchiverReturnsStorageErrors(t *testing.T) {
	c := qt.New(t)
	archiver := events.NewArchiver(failingWriter{}, discardLogger())
	data, err := json.Marshal(types.Event{ID: "e1", Type: types.EventLikeRemoved, OccurredAt: time.Now()})
	c.Assert(err, qt.IsNil)

	err = archiver.Handle(context.Background(), mq.Message{Data: data})
	c.Assert(err, qt.ErrorMatches, "archive event e1: bucket unavailable")
}
