package phonecall_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/phonecall-sagas/internal/phonecall"
	"github.com/jcmexdev/phonecall-sagas/internal/phonecall/sagastore/memory"
	"github.com/jcmexdev/phonecall-sagas/internal/statemachine"
)

// countingRepo wraps the in-memory repository to count transaction upserts,
// so tests can assert the exactly-one-upsert-per-transition property.
type countingRepo struct {
	*memory.Repository
	transactionSaves int
	lastSavedState   phonecall.State
}

func (c *countingRepo) SaveTransaction(ctx context.Context, tx *phonecall.Transaction) error {
	c.transactionSaves++
	c.lastSavedState = tx.State
	return c.Repository.SaveTransaction(ctx, tx)
}

func newSaga(t *testing.T, repo phonecall.Repository) *phonecall.Saga {
	t.Helper()
	saga, err := phonecall.New(context.Background(), repo, phonecall.StartCallParams{
		CallerName:   "Ada",
		CallerNumber: "+1-555-0199",
	})
	require.NoError(t, err)
	return saga
}

func TestNewSagaPersistsBothRecords(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	saga := newSaga(t, repo)

	tx, err := repo.FindTransaction(ctx, saga.ID())
	require.NoError(t, err)
	assert.Equal(t, phonecall.InitialState, tx.State)

	model, err := repo.FindModel(ctx, saga.ID())
	require.NoError(t, err)
	assert.Equal(t, saga.ID(), model.CorrelationID)
	assert.Equal(t, "+1-555-0199", model.CallerNumber)
	assert.Empty(t, model.ReceiverNumber)
}

func TestFullCallLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	saga := newSaga(t, repo)

	require.NoError(t, saga.Dial(ctx, "+1-555-0100"))
	assert.Equal(t, phonecall.StateRinging, saga.State())
	assert.Equal(t, "+1-555-0100", saga.Model().ReceiverNumber)

	require.NoError(t, saga.Connected(ctx))
	assert.Equal(t, phonecall.StateConnected, saga.State())

	require.NoError(t, saga.Hold(ctx))
	assert.Equal(t, phonecall.StateOnHold, saga.State())

	require.NoError(t, saga.Resume(ctx))
	assert.Equal(t, phonecall.StateConnected, saga.State())

	require.NoError(t, saga.Smash(ctx))
	assert.Equal(t, phonecall.StatePhoneDestroyed, saga.State())

	// Terminal: every further trigger is rejected.
	var unpermitted *statemachine.UnpermittedTriggerError
	require.ErrorAs(t, saga.Connected(ctx), &unpermitted)
	require.ErrorAs(t, saga.Dial(ctx, "+1-555-0101"), &unpermitted)
	assert.Equal(t, phonecall.StatePhoneDestroyed, saga.State())
}

func TestDialTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	saga := newSaga(t, memory.New())

	require.NoError(t, saga.Dial(ctx, "+1-555-0100"))

	// Duplicate event delivery: the table rejects the redelivered dial
	// instead of silently re-executing it.
	var unpermitted *statemachine.UnpermittedTriggerError
	require.ErrorAs(t, saga.Dial(ctx, "+1-555-0100"), &unpermitted)
	assert.Equal(t, phonecall.StateRinging, saga.State())
	assert.Equal(t, "+1-555-0100", saga.Model().ReceiverNumber)
}

func TestEachTransitionUpsertsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{Repository: memory.New()}
	saga := newSaga(t, repo)
	require.Equal(t, 1, repo.transactionSaves, "creation persists the initial record once")

	steps := []struct {
		fire func() error
		want phonecall.State
	}{
		{func() error { return saga.Dial(ctx, "+1-555-0100") }, phonecall.StateRinging},
		{func() error { return saga.Connected(ctx) }, phonecall.StateConnected},
		{func() error { return saga.Hold(ctx) }, phonecall.StateOnHold},
		{func() error { return saga.Resume(ctx) }, phonecall.StateConnected},
		{func() error { return saga.Smash(ctx) }, phonecall.StatePhoneDestroyed},
	}
	for i, step := range steps {
		require.NoError(t, step.fire())
		assert.Equal(t, i+2, repo.transactionSaves)
		assert.Equal(t, step.want, repo.lastSavedState, "upsert carries the destination state")
	}
}

func TestRehydrateAfterCreateMatchesFreshInstance(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	created := newSaga(t, repo)

	loaded, err := phonecall.Load(ctx, repo, created.ID())
	require.NoError(t, err)
	assert.Equal(t, phonecall.InitialState, loaded.State())
	assert.Equal(t, created.Model().CallerNumber, loaded.Model().CallerNumber)
	assert.Empty(t, loaded.Model().ReceiverNumber)
}

func TestRehydrateRestoresStateAndModel(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	saga := newSaga(t, repo)
	require.NoError(t, saga.Dial(ctx, "+1-555-0100"))
	require.NoError(t, saga.Connected(ctx))

	// Simulate a restart: a new in-memory instance built purely from the
	// repository.
	loaded, err := phonecall.Load(ctx, repo, saga.ID())
	require.NoError(t, err)
	assert.Equal(t, phonecall.StateConnected, loaded.State())
	assert.Equal(t, "+1-555-0100", loaded.Model().ReceiverNumber)

	// The recovered instance fires exactly like the original would.
	require.NoError(t, loaded.Hold(ctx))
	assert.Equal(t, phonecall.StateOnHold, loaded.State())
}

func TestLoadUnknownIDFails(t *testing.T) {
	_, err := phonecall.Load(context.Background(), memory.New(), [16]byte{1})
	require.ErrorIs(t, err, phonecall.ErrNotFound)
}

func TestLoadPartialPersistenceFails(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	// A transaction record without its model is data corruption and must
	// surface, not be silently defaulted.
	tx := &phonecall.Transaction{ID: [16]byte{2}, State: phonecall.StateRinging}
	require.NoError(t, repo.SaveTransaction(ctx, tx))

	_, err := phonecall.Load(ctx, repo, tx.ID)
	require.ErrorIs(t, err, phonecall.ErrNotFound)
}

func TestOnHoldInheritsConnectedTriggers(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{Repository: memory.New()}
	saga := newSaga(t, repo)
	require.NoError(t, saga.Dial(ctx, "+1-555-0100"))
	require.NoError(t, saga.Connected(ctx))
	require.NoError(t, saga.Hold(ctx))

	// mute/setVolume are declared on Connected only; OnHold inherits them.
	require.NoError(t, saga.Mute(ctx))
	assert.True(t, saga.Model().Muted)
	require.NoError(t, saga.SetVolume(ctx, 7))
	assert.Equal(t, 7, saga.Model().Volume)
	assert.Equal(t, phonecall.StateOnHold, saga.State())

	// leftMessage is permitted on Connected; firing it from OnHold
	// transitions exactly as if fired from Connected.
	saves := repo.transactionSaves
	require.NoError(t, saga.LeftMessage(ctx))
	assert.Equal(t, phonecall.StateOffHook, saga.State())
	assert.Equal(t, saves+1, repo.transactionSaves)
}

func TestInternalTriggersDoNotUpsertTransaction(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{Repository: memory.New()}
	saga := newSaga(t, repo)
	require.NoError(t, saga.Dial(ctx, "+1-555-0100"))
	require.NoError(t, saga.Connected(ctx))

	saves := repo.transactionSaves
	require.NoError(t, saga.Mute(ctx))
	require.NoError(t, saga.Unmute(ctx))
	require.NoError(t, saga.SetVolume(ctx, 11))
	assert.Equal(t, saves, repo.transactionSaves, "internal transitions persist the model only")

	model, err := repo.FindModel(ctx, saga.ID())
	require.NoError(t, err)
	assert.False(t, model.Muted)
	assert.Equal(t, 11, model.Volume)
}

func TestLeftMessageFlagsMissedCall(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	saga := newSaga(t, repo)
	require.NoError(t, saga.Dial(ctx, "+1-555-0100"))
	require.NoError(t, saga.Connected(ctx))
	require.NoError(t, saga.LeftMessage(ctx))

	assert.Equal(t, phonecall.StateOffHook, saga.State())
	model, err := repo.FindModel(ctx, saga.ID())
	require.NoError(t, err)
	assert.True(t, model.IsMissedCall)
}

func TestCallDurationAccumulatesAcrossHold(t *testing.T) {
	ctx := context.Background()
	saga := newSaga(t, memory.New())
	require.NoError(t, saga.Dial(ctx, "+1-555-0100"))
	require.NoError(t, saga.Connected(ctx))
	require.NoError(t, saga.Hold(ctx))

	afterHold := saga.Model().CallDuration
	assert.GreaterOrEqual(t, afterHold, time.Duration(0))
	assert.True(t, saga.Model().CallStartedAt.IsZero(), "timer stops while on hold")

	require.NoError(t, saga.Resume(ctx))
	assert.False(t, saga.Model().CallStartedAt.IsZero())

	require.NoError(t, saga.Smash(ctx))
	assert.GreaterOrEqual(t, saga.Model().CallDuration, afterHold)
}

func TestParseTrigger(t *testing.T) {
	trigger, err := phonecall.ParseTrigger("placedOnHold")
	require.NoError(t, err)
	assert.Equal(t, phonecall.TriggerPlacedOnHold, trigger)

	_, err = phonecall.ParseTrigger("explode")
	require.Error(t, err)
}
