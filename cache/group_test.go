package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/rpcrelay/upstream"
)

func newTestGroup(t *testing.T, cfg GroupConfig, tiers ...Tier) *Group {
	t.Helper()
	g, err := NewGroup(tiers, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestNewGroup_Validation(t *testing.T) {
	_, err := NewGroup(nil, GroupConfig{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNilBackend)

	_, err = NewGroup([]Tier{{Name: "nil"}}, GroupConfig{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNilBackend)
}

func TestGroup_OrdersFastFirst(t *testing.T) {
	slow := newMockBackend()
	fast := newMockBackend()
	g := newTestGroup(t, GroupConfig{},
		Tier{Name: "slow", Backend: slow, Read: true, Write: true, Speed: SpeedSlow},
		Tier{Name: "fast", Backend: fast, Read: true, Write: true, Speed: SpeedFast},
	)

	tiers := g.Tiers()
	require.Len(t, tiers, 2)
	assert.Equal(t, "fast", tiers[0].Name)
	assert.Equal(t, "slow", tiers[1].Name)

	fast.values["k"] = []byte("fast")
	slow.values["k"] = []byte("slow")
	v, ok := g.Get(context.Background(), "k")
	assert.True(t, ok)
	assert.Equal(t, "fast", string(v))
	assert.Equal(t, 0, slow.gets, "slow tier must not be read after a fast hit")
}

func TestGroup_SetFansOutToWriteTiers(t *testing.T) {
	a, b, readOnly := newMockBackend(), newMockBackend(), newMockBackend()
	g := newTestGroup(t, GroupConfig{},
		Tier{Name: "a", Backend: a, Read: true, Write: true, Speed: SpeedFast},
		Tier{Name: "b", Backend: b, Read: true, Write: true, Speed: SpeedSlow},
		Tier{Name: "ro", Backend: readOnly, Read: true, Speed: SpeedSlow},
	)
	ctx := context.Background()

	require.NoError(t, g.Set(ctx, "k", []byte("v"), upstream.Seconds(30)))
	for name, m := range map[string]*mockBackend{"a": a, "b": b} {
		v, ttl, ok := m.value("k")
		assert.True(t, ok, name)
		assert.Equal(t, "v", string(v), name)
		assert.Equal(t, 30*time.Second, ttl, name)
	}
	_, _, ok := readOnly.value("k")
	assert.False(t, ok, "read-only tier must not be written")

	require.NoError(t, g.Set(ctx, "forever", []byte("v"), upstream.NoExpire))
	_, ttl, ok := a.value("forever")
	assert.True(t, ok)
	assert.Equal(t, time.Duration(0), ttl)

	require.NoError(t, g.Set(ctx, "skip", []byte("v"), upstream.NoCache))
	require.NoError(t, g.Set(ctx, "skip2", []byte("v"), upstream.NoExpireIfIrreversible))
	_, _, ok = a.value("skip")
	assert.False(t, ok)
	_, _, ok = a.value("skip2")
	assert.False(t, ok)
}

func TestGroup_SetReportsTierFailure(t *testing.T) {
	bad := newMockBackend()
	bad.setErr = errors.New("boom")
	g := newTestGroup(t, GroupConfig{},
		Tier{Name: "good", Backend: newMockBackend(), Read: true, Write: true},
		Tier{Name: "bad", Backend: bad, Read: true, Write: true, Speed: SpeedSlow},
	)

	err := g.Set(context.Background(), "k", []byte("v"), upstream.Seconds(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)

	assert.ErrorIs(t, g.Set(context.Background(), "", []byte("v"), upstream.Seconds(1)), ErrInvalidKey)
}

func TestGroup_MultiGetQueriesOnlyUnresolvedKeys(t *testing.T) {
	fast, slow := newMockBackend(), newMockBackend()
	g := newTestGroup(t, GroupConfig{},
		Tier{Name: "fast", Backend: fast, Read: true, Write: true, Speed: SpeedFast},
		Tier{Name: "slow", Backend: slow, Read: true, Write: true, Speed: SpeedSlow},
	)

	fast.values["a"] = []byte("A")
	slow.values["b"] = []byte("B")

	got := g.MultiGet(context.Background(), []string{"a", "b", "c"})
	require.Len(t, got, 3)
	assert.Equal(t, "A", string(got[0]))
	assert.Equal(t, "B", string(got[1]))
	assert.Nil(t, got[2])

	require.Len(t, slow.multiGet, 1)
	assert.Equal(t, []string{"b", "c"}, slow.multiGet[0])
}

func TestGroup_MultiGetStopsWhenResolved(t *testing.T) {
	fast, slow := newMockBackend(), newMockBackend()
	g := newTestGroup(t, GroupConfig{},
		Tier{Name: "fast", Backend: fast, Read: true, Write: true, Speed: SpeedFast},
		Tier{Name: "slow", Backend: slow, Read: true, Write: true, Speed: SpeedSlow},
	)
	fast.values["a"] = []byte("A")

	got := g.MultiGet(context.Background(), []string{"a"})
	assert.Equal(t, "A", string(got[0]))
	assert.Empty(t, slow.multiGet)
}

func TestGroup_MultiSetGroupsByTTL(t *testing.T) {
	m := newMockBackend()
	g := newTestGroup(t, GroupConfig{}, Tier{Name: "m", Backend: m, Read: true, Write: true})

	err := g.MultiSet(context.Background(), []Item{
		{Key: "a", Value: []byte("1"), TTL: upstream.Seconds(5)},
		{Key: "b", Value: []byte("2"), TTL: upstream.Seconds(5)},
		{Key: "c", Value: []byte("3"), TTL: upstream.NoExpire},
		{Key: "d", Value: []byte("4"), TTL: upstream.NoCache},
	})
	require.NoError(t, err)

	_, ttl, ok := m.value("a")
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, ttl)
	_, ttl, ok = m.value("c")
	assert.True(t, ok)
	assert.Equal(t, time.Duration(0), ttl)
	_, _, ok = m.value("d")
	assert.False(t, ok)
}

func TestGroup_Backfill(t *testing.T) {
	fast, slow := newMockBackend(), newMockBackend()
	g := newTestGroup(t, GroupConfig{Backfill: true, BackfillTTL: 7 * time.Second},
		Tier{Name: "fast", Backend: fast, Read: true, Write: true, Speed: SpeedFast},
		Tier{Name: "slow", Backend: slow, Read: true, Write: true, Speed: SpeedSlow},
	)
	slow.values["k"] = []byte("v")

	_, ok := g.Get(context.Background(), "k")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ttl, ok := fast.value("k")
		return ok && ttl == 7*time.Second
	}, time.Second, 5*time.Millisecond)
}

func TestGroup_NoBackfillByDefault(t *testing.T) {
	fast, slow := newMockBackend(), newMockBackend()
	g, err := NewGroup([]Tier{
		{Name: "fast", Backend: fast, Read: true, Write: true, Speed: SpeedFast},
		{Name: "slow", Backend: slow, Read: true, Write: true, Speed: SpeedSlow},
	}, GroupConfig{}, zerolog.Nop())
	require.NoError(t, err)
	slow.values["k"] = []byte("v")

	_, ok := g.Get(context.Background(), "k")
	require.True(t, ok)

	// Close drains the background writer, so any backfill would be visible.
	require.NoError(t, g.Close())
	_, _, ok = fast.value("k")
	assert.False(t, ok)
}

func TestGroup_LastIrreversibleBlockIsMonotonic(t *testing.T) {
	g := newTestGroup(t, GroupConfig{}, Tier{Name: "m", Backend: newMockBackend(), Read: true, Write: true})

	assert.True(t, g.SetLastIrreversibleBlock(100))
	assert.False(t, g.SetLastIrreversibleBlock(50))
	assert.False(t, g.SetLastIrreversibleBlock(100))
	assert.Equal(t, uint64(100), g.LastIrreversibleBlock())
}

func TestGroup_CloseClosesTiers(t *testing.T) {
	a, b := newMockBackend(), newMockBackend()
	g, err := NewGroup([]Tier{{Name: "a", Backend: a, Read: true}, {Name: "b", Backend: b, Write: true}}, GroupConfig{}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
