package tm_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/tm"
)

func openStore(t *testing.T) *tm.Store {
	t.Helper()
	store, err := tm.Open(filepath.Join(t.TempDir(), "tm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func agentEntry(source, target string) tm.Entry {
	return tm.Entry{
		SourceLang: "ja",
		TargetLang: "en",
		SourceText: source,
		TargetText: target,
		Origin:     model.AgentOrigin("translate", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func TestPutAndLookup(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Put(ctx, agentEntry("おはよう", "Morning.")))

	got, ok, err := store.Lookup(ctx, "ja", "en", "おはよう")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Morning.", got.TargetText)
	assert.Equal(t, 1, got.UseCount)

	// A second lookup bumps the use count again.
	got, ok, err = store.Lookup(ctx, "ja", "en", "おはよう")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, got.UseCount)
}

func TestLookupMiss(t *testing.T) {
	store := openStore(t)

	got, ok, err := store.Lookup(context.Background(), "ja", "en", "knock knock")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestLookupNormalizes(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Put(ctx, agentEntry("  おはよう  ", "Morning.")))

	// Surrounding whitespace never misses the slot.
	_, ok, err := store.Lookup(ctx, "ja", "en", "おはよう")
	require.NoError(t, err)
	assert.True(t, ok)

	// Different language pair is a different slot.
	_, ok, err = store.Lookup(ctx, "ja", "de", "おはよう")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutReplacesAgentEntry(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Put(ctx, agentEntry("ただいま", "I'm back.")))
	require.NoError(t, store.Put(ctx, agentEntry("ただいま", "I'm home.")))

	got, ok, err := store.Lookup(ctx, "ja", "en", "ただいま")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "I'm home.", got.TargetText)
}

func TestPutProtectsHumanEntry(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	human := agentEntry("ごめん", "Sorry.")
	human.Origin = model.OriginHuman
	require.NoError(t, store.Put(ctx, human))

	// Agent output cannot displace the human translation.
	err := store.Put(ctx, agentEntry("ごめん", "My apologies."))
	require.ErrorIs(t, err, tm.ErrProtected)

	got, _, err := store.Lookup(ctx, "ja", "en", "ごめん")
	require.NoError(t, err)
	assert.Equal(t, "Sorry.", got.TargetText)

	// A human revision may.
	revised := human
	revised.TargetText = "I'm sorry."
	require.NoError(t, store.Put(ctx, revised))

	got, _, err = store.Lookup(ctx, "ja", "en", "ごめん")
	require.NoError(t, err)
	assert.Equal(t, "I'm sorry.", got.TargetText)
}

func TestPutRejectsEmptySegments(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	err := store.Put(ctx, agentEntry("   ", "Something."))
	require.Error(t, err)
	err = store.Put(ctx, agentEntry("なに", ""))
	require.Error(t, err)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Put(ctx, agentEntry("さよなら", "Goodbye.")))
	require.NoError(t, store.Delete(ctx, tm.Key("ja", "en", "さよなら")))

	_, ok, err := store.Lookup(ctx, "ja", "en", "さよなら")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting a missing key is a no-op.
	require.NoError(t, store.Delete(ctx, tm.Key("ja", "en", "さよなら")))
}

func TestListOrdersByRecentUse(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Put(ctx, agentEntry("ひとつ", "One.")))
	require.NoError(t, store.Put(ctx, agentEntry("ふたつ", "Two.")))

	// Touch the first entry so it becomes the most recently used.
	time.Sleep(5 * time.Millisecond)
	_, _, err := store.Lookup(ctx, "ja", "en", "ひとつ")
	require.NoError(t, err)

	entries, err := store.List(ctx, "ja", "en")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "One.", entries[0].TargetText)

	// Filter by a pair with no entries.
	entries, err = store.List(ctx, "en", "ja")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	human := agentEntry("はい", "Yes.")
	human.Origin = model.OriginHuman
	require.NoError(t, store.Put(ctx, human))
	require.NoError(t, store.Put(ctx, agentEntry("いいえ", "No.")))

	for range 3 {
		_, _, err := store.Lookup(ctx, "ja", "en", "はい")
		require.NoError(t, err)
	}

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.HumanEntries)
	assert.Equal(t, 3, stats.TotalUses)
}

func TestKeyStability(t *testing.T) {
	k1 := tm.Key("ja", "en", "おはよう")
	k2 := tm.Key("ja", "en", " おはよう ")
	k3 := tm.Key("ja", "en", "こんばんは")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 64)
}
