package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contextwizard/wizardd/internal/store"
	"github.com/contextwizard/wizardd/internal/usecase/registry"
)

// Scenario: no command arrives; a sweep past the deadline deletes the remote
// comment and the record.
func TestSweepOnce_RetiresLapsedAnnotations(t *testing.T) {
	h := newHarness(t)
	code := h.register(t)

	// Virtual clock one minute past the default 120s window.
	future := time.Now().Add(registry.DefaultTTL + time.Minute)
	sweeper := registry.NewSweeper(h.store, h.registry, zap.NewNop(),
		registry.WithSweepClock(func() time.Time { return future }))

	require.NoError(t, sweeper.SweepOnce(context.Background()))

	_, err := h.store.Get(context.Background(), code)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 1, h.comments.deleteCount(annotationCommentID))
}

func TestSweepOnce_NothingExpired(t *testing.T) {
	h := newHarness(t)
	h.register(t)

	sweeper := registry.NewSweeper(h.store, h.registry, zap.NewNop())

	require.NoError(t, sweeper.SweepOnce(context.Background()))
	assert.Empty(t, h.comments.deleted)
}

func TestSweepOnce_SkipsRecordResolvedMidSweep(t *testing.T) {
	h := newHarness(t)
	code := h.register(t)

	// Resolve the record before the sweeper gets to act on its listing.
	// The sweeper's store delete observes NotFound and moves on.
	future := time.Now().Add(registry.DefaultTTL + time.Minute)
	sweeper := registry.NewSweeper(h.store, h.registry, zap.NewNop(),
		registry.WithSweepClock(func() time.Time { return future }))

	require.NoError(t, h.store.Delete(context.Background(), code))
	require.NoError(t, sweeper.SweepOnce(context.Background()))

	assert.Empty(t, h.comments.deleted)
}

func TestSweepOnce_CredentialFailureLeavesRecordForNextTick(t *testing.T) {
	h := newHarness(t)
	code := h.register(t)
	h.creds.err = assert.AnError

	future := time.Now().Add(registry.DefaultTTL + time.Minute)
	sweeper := registry.NewSweeper(h.store, h.registry, zap.NewNop(),
		registry.WithSweepClock(func() time.Time { return future }))

	// SweepOnce itself succeeds; the per-record failure is logged and the
	// record stays pending for the next tick.
	require.NoError(t, sweeper.SweepOnce(context.Background()))

	_, err := h.store.Get(context.Background(), code)
	assert.NoError(t, err)
}

func TestSweeperRun_StopsOnContextCancel(t *testing.T) {
	h := newHarness(t)

	sweeper := registry.NewSweeper(h.store, h.registry, zap.NewNop(),
		registry.WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}
