package memcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
)

func TestCache_SetGetDelete(t *testing.T) {
	c := New(0, 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "user:1", []byte("alice"), 0))

	v, found, err := c.Get(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("alice"), v)

	has, err := c.Has(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, c.Delete(ctx, "user:1"))
	_, found, err = c.Get(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_StoresCopies(t *testing.T) {
	c := New(0, 0)
	ctx := context.Background()
	value := []byte("alice")

	require.NoError(t, c.Set(ctx, "user:1", value, 0))
	value[0] = 'X'

	got, _, _ := c.Get(ctx, "user:1")
	got[1] = 'Y'

	again, _, _ := c.Get(ctx, "user:1")
	assert.Equal(t, []byte("alice"), again)
}

func TestCache_Expiry(t *testing.T) {
	c := New(time.Minute, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), 10*time.Millisecond))
	assert.Eventually(t, func() bool {
		has, _ := c.Has(ctx, "short")
		return !has
	}, time.Second, 5*time.Millisecond)
}

func TestCache_Multiple(t *testing.T) {
	c := New(0, 0)
	ctx := context.Background()

	require.NoError(t, c.SetMultiple(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, 0))

	got, err := c.GetMultiple(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, got)

	require.NoError(t, c.DeleteMultiple(ctx, []string{"a", "missing"}))
	got, err = c.GetMultiple(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"b": []byte("2")}, got)

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.ItemCount())
}

func TestCache_RejectsEmptyKeys(t *testing.T) {
	c := New(0, 0)
	ctx := context.Background()

	_, _, err := c.Get(ctx, "")
	assert.ErrorIs(t, err, sentinel.ErrInvalidArgument)
	assert.ErrorIs(t, c.Set(ctx, "", nil, 0), sentinel.ErrInvalidArgument)
	assert.ErrorIs(t, c.SetMultiple(ctx, map[string][]byte{"": nil}, 0), sentinel.ErrInvalidArgument)
	_, err = c.GetMultiple(ctx, []string{"ok", ""})
	assert.ErrorIs(t, err, sentinel.ErrInvalidArgument)
}
