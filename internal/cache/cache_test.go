package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_NormalizesCaseAndWhitespace(t *testing.T) {
	base := Key("tôi mơ thấy rắn", "mystical")
	assert.Equal(t, base, Key("  Tôi Mơ Thấy Rắn  ", "mystical"))
	assert.Len(t, base, 16)
}

func TestKey_ModeChangesKey(t *testing.T) {
	assert.NotEqual(t,
		Key("tôi mơ thấy rắn", "mystical"),
		Key("tôi mơ thấy rắn", "psychological"))
}

func TestCache_GetSet(t *testing.T) {
	c := New[string](time.Hour, 10)
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", "alpha")
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", got)
}

func TestCache_TTLExpiry(t *testing.T) {
	now := time.Now()
	c := New[string](time.Minute, 10)
	c.now = func() time.Time { return now }

	c.Set("a", "alpha")
	_, ok := c.Get("a")
	require.True(t, ok)

	now = now.Add(61 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)

	// Expired entry is removed on access.
	assert.Equal(t, 0, c.Len())
}

func TestCache_EvictsLRUAtCapacity(t *testing.T) {
	c := New[int](time.Hour, 3)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	// Touch k0 so k1 becomes the eviction candidate.
	_, ok := c.Get("k0")
	require.True(t, ok)

	c.Set("k3", 3)
	assert.Equal(t, 3, c.Len())

	_, ok = c.Get("k1")
	assert.False(t, ok)
	for _, key := range []string{"k0", "k2", "k3"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "key %s should survive eviction", key)
	}
}

func TestCache_SetExistingRefreshesTTL(t *testing.T) {
	now := time.Now()
	c := New[string](time.Minute, 10)
	c.now = func() time.Time { return now }

	c.Set("a", "alpha")
	now = now.Add(50 * time.Second)
	c.Set("a", "beta")
	now = now.Add(30 * time.Second)

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "beta", got)
	assert.Equal(t, 1, c.Len())
}
