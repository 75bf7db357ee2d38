package approval_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trevorWieland/rentl-sub001/internal/approval"
	"github.com/trevorWieland/rentl-sub001/internal/model"
)

func newStore(t *testing.T) *approval.FSStore {
	t.Helper()
	store, err := approval.NewFSStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func sampleDecision(runID uuid.UUID) approval.PendingDecision {
	return approval.PendingDecision{
		ID:            uuid.New(),
		RunID:         runID,
		Phase:         model.PhaseEdit,
		Operation:     "overwrite_translation",
		LineID:        "l42",
		CurrentValue:  "Good morning.",
		CurrentOrigin: model.OriginHuman,
		ProposedValue: "Morning.",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestFSStoreCreateGet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	d := sampleDecision(uuid.New())
	require.NoError(t, store.Create(ctx, d))

	got, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, d.RunID, got.RunID)
	assert.Equal(t, model.PhaseEdit, got.Phase)
	assert.Equal(t, "overwrite_translation", got.Operation)
	assert.Equal(t, model.OriginHuman, got.CurrentOrigin)
	assert.False(t, got.Resolved())

	_, err = store.Get(ctx, uuid.New())
	require.ErrorIs(t, err, approval.ErrNotFound)
}

func TestFSStoreCreateDuplicate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	d := sampleDecision(uuid.New())
	require.NoError(t, store.Create(ctx, d))
	require.ErrorIs(t, store.Create(ctx, d), approval.ErrExists)
}

func TestFSStoreResolve(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	d := sampleDecision(uuid.New())
	require.NoError(t, store.Create(ctx, d))

	resolved, err := store.Resolve(ctx, d.ID, approval.ResolutionApproved, "ayumi", "keep the shorter reading")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved())
	assert.Equal(t, approval.ResolutionApproved, resolved.Resolution)
	assert.Equal(t, "ayumi", resolved.ResolvedBy)
	assert.Equal(t, "keep the shorter reading", resolved.Note)

	_, err = store.Resolve(ctx, d.ID, approval.ResolutionRejected, "ayumi", "")
	require.ErrorIs(t, err, approval.ErrResolved)
}

func TestFSStoreResolveUnknownResolution(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	d := sampleDecision(uuid.New())
	require.NoError(t, store.Create(ctx, d))

	_, err := store.Resolve(ctx, d.ID, approval.Resolution("maybe"), "ayumi", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown resolution")
}

func TestFSStoreListPending(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	runA, runB := uuid.New(), uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := sampleDecision(runA)
	first.CreatedAt = base
	second := sampleDecision(runB)
	second.CreatedAt = base.Add(time.Minute)
	third := sampleDecision(runA)
	third.CreatedAt = base.Add(2 * time.Minute)

	for _, d := range []approval.PendingDecision{second, third, first} {
		require.NoError(t, store.Create(ctx, d))
	}
	_, err := store.Resolve(ctx, third.ID, approval.ResolutionRejected, "ayumi", "")
	require.NoError(t, err)

	all, err := store.ListPending(ctx, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID, "oldest decision first")
	assert.Equal(t, second.ID, all[1].ID)

	onlyA, err := store.ListPending(ctx, runA)
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	assert.Equal(t, first.ID, onlyA[0].ID)
}

func TestFSStoreAwait(t *testing.T) {
	store := newStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := sampleDecision(uuid.New())
	require.NoError(t, store.Create(ctx, d))

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, err := store.Resolve(context.Background(), d.ID, approval.ResolutionApproved, "ayumi", "")
		assert.NoError(t, err)
	}()

	resolved, err := store.Await(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.ResolutionApproved, resolved.Resolution)
	assert.Equal(t, "ayumi", resolved.ResolvedBy)
}

func TestFSStoreAwaitContextEnds(t *testing.T) {
	store := newStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	d := sampleDecision(uuid.New())
	require.NoError(t, store.Create(ctx, d))

	_, err := store.Await(ctx, d.ID)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFSStoreAwaitUnknownDecision(t *testing.T) {
	store := newStore(t)
	_, err := store.Await(context.Background(), uuid.New())
	require.ErrorIs(t, err, approval.ErrNotFound)
}
