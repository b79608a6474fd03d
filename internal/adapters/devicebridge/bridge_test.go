package devicebridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

type fakeBroker struct {
	published    []published
	handlers     map[string]MessageHandler
	publishErr   error
	disconnected bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: map[string]MessageHandler{}}
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, published{topic, qos, retained, string(payload)})
	return nil
}

func (b *fakeBroker) Subscribe(topic string, qos byte, handler MessageHandler) error {
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBroker) Disconnect() { b.disconnected = true }

type heartbeat struct {
	accountID string
	connected bool
}

type fakeRecorder struct {
	beats []heartbeat
	err   error
}

func (r *fakeRecorder) RecordHeartbeat(ctx context.Context, accountID string, connected bool) error {
	r.beats = append(r.beats, heartbeat{accountID, connected})
	return r.err
}

func TestBridge_MirrorNextDosePublishesRetained(t *testing.T) {
	broker := newFakeBroker()
	b := NewBridge(broker, "/home/", nil, zap.NewNop())

	require.NoError(t, b.MirrorNextDose(context.Background(), "acc-1", "21:00"))

	require.Len(t, broker.published, 1)
	assert.Equal(t, "home/acc-1/next_dose", broker.published[0].topic)
	assert.True(t, broker.published[0].retained)
	assert.Equal(t, byte(1), broker.published[0].qos)
	assert.JSONEq(t, `{"time":"21:00"}`, broker.published[0].payload)
}

func TestBridge_MirrorReturnsBrokerError(t *testing.T) {
	broker := newFakeBroker()
	broker.publishErr = errors.New("not connected")
	b := NewBridge(broker, "", nil, zap.NewNop())

	assert.Error(t, b.MirrorNextDose(context.Background(), "acc-1", "08:00"))
	assert.Equal(t, "dosemate/acc-1/next_dose", b.NextDoseTopic("acc-1"))
}

func TestBridge_StatusMessagesBecomeHeartbeats(t *testing.T) {
	broker := newFakeBroker()
	rec := &fakeRecorder{}
	b := NewBridge(broker, "dosemate", rec, zap.NewNop())
	require.NoError(t, b.Start())

	handler, ok := broker.handlers["dosemate/+/status"]
	require.True(t, ok)

	require.NoError(t, handler("dosemate/acc-1/status", nil))
	require.NoError(t, handler("dosemate/acc-2/status", []byte(`{"connected":false}`)))

	assert.Equal(t, []heartbeat{{"acc-1", true}, {"acc-2", false}}, rec.beats)
}

func TestBridge_StatusRejectsBadInput(t *testing.T) {
	broker := newFakeBroker()
	rec := &fakeRecorder{}
	b := NewBridge(broker, "dosemate", rec, zap.NewNop())
	require.NoError(t, b.Start())
	handler := broker.handlers["dosemate/+/status"]

	assert.Error(t, handler("other/acc-1/status", nil))
	assert.Error(t, handler("dosemate/a/b/status", nil))
	assert.Error(t, handler("dosemate/acc-1/status", []byte("{not json")))
	assert.Empty(t, rec.beats)

	rec.err = errors.New("store down")
	assert.Error(t, handler("dosemate/acc-1/status", nil))
}

func TestBridge_StartWithoutRecorderSubscribesNothing(t *testing.T) {
	broker := newFakeBroker()
	b := NewBridge(broker, "dosemate", nil, zap.NewNop())

	require.NoError(t, b.Start())
	assert.Empty(t, broker.handlers)

	b.Close()
	assert.True(t, broker.disconnected)
}
