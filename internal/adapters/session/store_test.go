package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/core"
)

func TestCreateAndGet(t *testing.T) {
	store := NewStore(time.Hour, time.Minute, zap.NewNop())

	sess := store.Create()
	require.NotEmpty(t, sess.ID)

	got, ok := store.Get(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, store.Count())
}

func TestSessionStateIsShared(t *testing.T) {
	store := NewStore(time.Hour, time.Minute, zap.NewNop())
	sess := store.Create()

	sess.SetSignalData(core.SignalProcessingData{PH: 6.5, GasLevel: 40, StorageTime: 12})

	got, ok := store.Get(sess.ID)
	require.True(t, ok)
	assert.True(t, got.HasSignalData())
}

func TestDelete(t *testing.T) {
	store := NewStore(time.Hour, time.Minute, zap.NewNop())
	sess := store.Create()

	store.Delete(sess.ID)

	_, ok := store.Get(sess.ID)
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	store := NewStore(20*time.Millisecond, time.Hour, zap.NewNop())
	sess := store.Create()

	time.Sleep(40 * time.Millisecond)

	_, ok := store.Get(sess.ID)
	assert.False(t, ok)
}

func TestUnknownID(t *testing.T) {
	store := NewStore(time.Hour, time.Minute, zap.NewNop())
	_, ok := store.Get("missing")
	assert.False(t, ok)
}
