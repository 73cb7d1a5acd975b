package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentflow/logging"
)

func TestKafkaNotifier_Publishes(t *testing.T) {
	w := &fakeWriter{}
	n := NewKafkaNotifier(w, "rentflow.notifications")
	n.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	err := n.Notify(context.Background(), TemplateAgreementRequest, "lee@example.com", map[string]string{"userName": "Lee"})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	got := w.msgs[0]
	assert.Equal(t, "rentflow.notifications", got.Topic)
	assert.Equal(t, []byte("lee@example.com"), got.Key)

	var msg Message
	require.NoError(t, json.Unmarshal(got.Value, &msg))
	assert.Equal(t, TemplateAgreementRequest, msg.Template)
	assert.Equal(t, "New Agreement Request Alert!", msg.Subject)
	assert.Equal(t, "Lee", msg.Substitutions["userName"])
}

func TestDispatcher_SwallowsErrors(t *testing.T) {
	failing := NewKafkaNotifier(&fakeWriter{err: errors.New("broker down")}, "t")
	d := NewDispatcher(failing, logging.Nop())

	assert.NotPanics(t, func() {
		d.Send(context.Background(), TemplateAgreementApproved, "tina@example.com", nil)
	})

	var nilDispatcher *Dispatcher
	assert.NotPanics(t, func() {
		nilDispatcher.Send(context.Background(), TemplateAgreementApproved, "tina@example.com", nil)
	})
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(logging.Nop())
	assert.NoError(t, n.Notify(context.Background(), TemplatePaymentConfirmed, "tina@example.com", nil))
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }
