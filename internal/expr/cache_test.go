package expr

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheReturnsSharedTree(t *testing.T) {
	c, err := NewCache(2)
	require.NoError(t, err)

	first, err := c.Parse("a = 1")
	require.NoError(t, err)
	second, err := c.Parse("a = 1")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Len())
}

func TestCacheEvicts(t *testing.T) {
	c, err := NewCache(2)
	require.NoError(t, err)
	for _, s := range []string{"a = 1", "b = 2", "c = 3"} {
		_, err := c.Parse(s)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCacheSkipsFailures(t *testing.T) {
	c, err := NewCache(0)
	require.NoError(t, err)
	_, err = c.Parse("a =")
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCacheConcurrentUse(t *testing.T) {
	c, err := NewCache(8)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := ParseBind(c, "id = ?", i)
			assert.NoError(t, err)
			assert.NotNil(t, e)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}
