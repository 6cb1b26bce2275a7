package events

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMsg struct {
	topic, key, value string
}

func (m testMsg) Topic() string          { return m.topic }
func (m testMsg) Key() string            { return m.key }
func (m testMsg) Value() ([]byte, error) { return []byte(m.value), nil }

// toggleablePublisher fails every Publish while failing is true.
type toggleablePublisher struct {
	mu      sync.Mutex
	failing bool
	sent    []Message
}

func (t *toggleablePublisher) Publish(_ context.Context, msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failing {
		return errors.New("simulated transport failure")
	}
	t.sent = append(t.sent, msg)
	return nil
}
func (t *toggleablePublisher) Close() error { return nil }

func (t *toggleablePublisher) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func TestOutboxPublishOrBufferSendsDirectlyWhenUnderlyingSucceeds(t *testing.T) {
	dir := t.TempDir()
	underlying := &toggleablePublisher{}
	ob, err := NewOutbox(filepath.Join(dir, "outbox.log"), underlying)
	require.NoError(t, err)
	defer ob.Close()

	require.NoError(t, ob.PublishOrBuffer(context.Background(), testMsg{topic: "t", key: "k", value: "v"}))
	assert.Equal(t, 1, underlying.sentCount())
}

func TestOutboxBuffersOnFailureAndReplaysLater(t *testing.T) {
	dir := t.TempDir()
	underlying := &toggleablePublisher{failing: true}
	ob, err := NewOutbox(filepath.Join(dir, "outbox.log"), underlying)
	require.NoError(t, err)
	defer ob.Close()

	require.NoError(t, ob.PublishOrBuffer(context.Background(), testMsg{topic: "t", key: "k1", value: "v1"}))
	require.NoError(t, ob.PublishOrBuffer(context.Background(), testMsg{topic: "t", key: "k2", value: "v2"}))
	assert.Equal(t, 0, underlying.sentCount(), "failed publishes must not reach the underlying transport")

	underlying.mu.Lock()
	underlying.failing = false
	underlying.mu.Unlock()

	require.NoError(t, ob.Replay(context.Background()))
	assert.Equal(t, 2, underlying.sentCount())

	// a second replay after a successful one finds nothing left to send
	require.NoError(t, ob.Replay(context.Background()))
	assert.Equal(t, 2, underlying.sentCount())
}

func TestOutboxReplayLeavesBufferIntactOnPartialFailure(t *testing.T) {
	dir := t.TempDir()
	underlying := &toggleablePublisher{failing: true}
	ob, err := NewOutbox(filepath.Join(dir, "outbox.log"), underlying)
	require.NoError(t, err)
	defer ob.Close()

	require.NoError(t, ob.PublishOrBuffer(context.Background(), testMsg{topic: "t", key: "k1", value: "v1"}))

	err = ob.Replay(context.Background())
	require.Error(t, err, "replay must fail while the underlying transport keeps failing")

	underlying.mu.Lock()
	underlying.failing = false
	underlying.mu.Unlock()

	require.NoError(t, ob.Replay(context.Background()), "the buffered entry must still be there to retry")
	assert.Equal(t, 1, underlying.sentCount())
}

func TestOutboxImplementsPublisherDirectly(t *testing.T) {
	dir := t.TempDir()
	underlying := &toggleablePublisher{}
	ob, err := NewOutbox(filepath.Join(dir, "outbox.log"), underlying)
	require.NoError(t, err)
	defer ob.Close()

	var p Publisher = ob
	require.NoError(t, p.Publish(context.Background(), testMsg{topic: "t", key: "k", value: "v"}))
	assert.Equal(t, 1, underlying.sentCount())
}
