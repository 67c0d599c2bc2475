package ingress

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	feederrs "github.com/Hamdane-yassine/you-scout-feedgen/internal/errors"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/feedgen"
)

// Feeds a fixed set of messages, then reports EOF like a closed reader.
type fakeReader struct {
	msgs      []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}

	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeDLQ struct {
	written []kafka.Message
}

func (d *fakeDLQ) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	d.written = append(d.written, msgs...)
	return nil
}

// Scriptable handler: fails the first failCreated Created calls with a
// transient error, and permErr (if set) always.
type fakeHandler struct {
	created []feedgen.PostEvent
	deleted []feedgen.PostEvent

	failCreated int
	permErr     error
}

func (h *fakeHandler) Created(_ context.Context, ev feedgen.PostEvent) error {
	if h.permErr != nil {
		return h.permErr
	}
	if h.failCreated > 0 {
		h.failCreated--
		return feederrs.E(feederrs.KindFollowersUnavailable, "graph down")
	}

	h.created = append(h.created, ev)
	return nil
}

func (h *fakeHandler) Deleted(_ context.Context, ev feedgen.PostEvent) error {
	h.deleted = append(h.deleted, ev)
	return nil
}

func testConsumer(reader *fakeReader, dlq *fakeDLQ, handler Handler, attempts uint64) *Consumer {
	return &Consumer{
		reader:      reader,
		dlq:         dlq,
		handler:     handler,
		maxAttempts: attempts,
		backoffBase: time.Millisecond,
	}
}

func createdMsg(postID string) kafka.Message {
	return kafka.Message{
		Key:   []byte("alice"),
		Value: []byte(`{"postId":"` + postID + `","authorUsername":"alice","createdAt":1748779200000,"kind":"CREATED"}`),
	}
}

func TestRunHandlesAndCommits(t *testing.T) {
	var (
		reader  = &fakeReader{msgs: []kafka.Message{createdMsg("post-1")}}
		dlq     = &fakeDLQ{}
		handler = &fakeHandler{}
	)

	require.NoError(t, testConsumer(reader, dlq, handler, 3).Run(context.Background()))

	require.Len(t, handler.created, 1)
	assert.Equal(t, "post-1", handler.created[0].PostID)
	assert.Len(t, reader.committed, 1)
	assert.Empty(t, dlq.written)
}

func TestRunDispatchesDeleted(t *testing.T) {
	var (
		reader = &fakeReader{msgs: []kafka.Message{{
			Key:   []byte("alice"),
			Value: []byte(`{"postId":"post-9","authorUsername":"alice","createdAt":"2025-06-01T12:00:00Z","kind":"DELETED"}`),
		}}}
		dlq     = &fakeDLQ{}
		handler = &fakeHandler{}
	)

	require.NoError(t, testConsumer(reader, dlq, handler, 3).Run(context.Background()))

	require.Len(t, handler.deleted, 1)
	assert.Equal(t, "post-9", handler.deleted[0].PostID)
	assert.Len(t, reader.committed, 1)
}

func TestRunRetriesTransientFailures(t *testing.T) {
	var (
		reader  = &fakeReader{msgs: []kafka.Message{createdMsg("post-1")}}
		dlq     = &fakeDLQ{}
		handler = &fakeHandler{failCreated: 2}
	)

	require.NoError(t, testConsumer(reader, dlq, handler, 5).Run(context.Background()))

	// Succeeded on the third attempt, so nothing was dead-lettered.
	require.Len(t, handler.created, 1)
	assert.Empty(t, dlq.written)
	assert.Len(t, reader.committed, 1)
}

func TestRunDeadLettersAfterExhaustion(t *testing.T) {
	var (
		reader  = &fakeReader{msgs: []kafka.Message{createdMsg("post-1")}}
		dlq     = &fakeDLQ{}
		handler = &fakeHandler{failCreated: 100}
	)

	require.NoError(t, testConsumer(reader, dlq, handler, 2).Run(context.Background()))

	assert.Empty(t, handler.created)
	require.Len(t, dlq.written, 1)
	assert.Equal(t, []byte("alice"), dlq.written[0].Key)

	var reason string
	for _, h := range dlq.written[0].Headers {
		if h.Key == "x-dead-letter-reason" {
			reason = string(h.Value)
		}
	}
	assert.Contains(t, reason, "followers_unavailable")

	// Dead-lettered messages still advance the offset.
	assert.Len(t, reader.committed, 1)
}

func TestRunDeadLettersPoisonMessages(t *testing.T) {
	var (
		reader = &fakeReader{msgs: []kafka.Message{
			{Key: []byte("alice"), Value: []byte(`not even json`)},
			createdMsg("post-2"),
		}}
		dlq     = &fakeDLQ{}
		handler = &fakeHandler{}
	)

	require.NoError(t, testConsumer(reader, dlq, handler, 3).Run(context.Background()))

	// Poison pill skipped straight to the DLQ, the next event still flowed.
	require.Len(t, dlq.written, 1)
	require.Len(t, handler.created, 1)
	assert.Equal(t, "post-2", handler.created[0].PostID)
	assert.Len(t, reader.committed, 2)
}

func TestRunStopsWithoutCommitOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var (
		reader  = &fakeReader{msgs: []kafka.Message{createdMsg("post-1")}}
		dlq     = &fakeDLQ{}
		handler = &cancelingHandler{cancel: cancel}
	)

	require.NoError(t, testConsumer(reader, dlq, handler, 3).Run(ctx))

	// The in-flight event is neither committed nor dead-lettered; it will
	// be redelivered on restart.
	assert.Empty(t, reader.committed)
	assert.Empty(t, dlq.written)
}

// Cancels the run context from inside the handler, simulating a shutdown
// arriving mid fan-out.
type cancelingHandler struct {
	cancel context.CancelFunc
}

func (h *cancelingHandler) Created(ctx context.Context, _ feedgen.PostEvent) error {
	h.cancel()
	return ctx.Err()
}

func (h *cancelingHandler) Deleted(context.Context, feedgen.PostEvent) error { return nil }
