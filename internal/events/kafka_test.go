package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   bool
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("broker unavailable")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestKafkaPublisherDeliversOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "wodgachi.events", quietLogger(), 8)

	evt := New(WorkoutSubmitted, "user-1", "0xabc", map[string]any{"workoutId": "hiit"})
	p.Publish(context.Background(), evt)
	require.NoError(t, p.Close())

	require.Len(t, w.msgs, 1)
	assert.True(t, w.closed)
	assert.Equal(t, []byte("user-1"), w.msgs[0].Key)

	var decoded Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, evt.ID, decoded.ID)
	assert.Equal(t, WorkoutSubmitted, decoded.Type)
	assert.Equal(t, "hiit", decoded.Payload["workoutId"])
}

func TestKafkaPublisherSurvivesWriteFailures(t *testing.T) {
	w := &fakeWriter{fail: true}
	p := newKafkaPublisher(w, "wodgachi.events", quietLogger(), 8)

	p.Publish(context.Background(), New(NFTMinted, "user-1", "", nil))
	require.NoError(t, p.Close())
	assert.Empty(t, w.msgs)

	// Publishing after close is a no-op.
	p.Publish(context.Background(), New(NFTMinted, "user-1", "", nil))
	assert.NoError(t, p.Close())
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Publish(context.Background(), New(UserRegistered, "u", "", nil))
	r.Publish(context.Background(), New(WorkoutSubmitted, "u", "", nil))
	assert.Len(t, r.Events(), 2)
	assert.Len(t, r.OfType(WorkoutSubmitted), 1)
}
