package invite

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	g, err := New(DefaultLength)
	require.NoError(t, err)

	code := g.Code()
	assert.Len(t, code, DefaultLength)
	for _, c := range code {
		assert.True(t, strings.ContainsRune(Alphabet, c), "unexpected character %q", c)
	}
}

func TestNewProducesDistinctCodes(t *testing.T) {
	t.Parallel()

	a, err := New(DefaultLength)
	require.NoError(t, err)
	b, err := New(DefaultLength)
	require.NoError(t, err)
	assert.NotEqual(t, a.Code(), b.Code())
}

func TestNewInvalidLength(t *testing.T) {
	t.Parallel()

	_, err := New(0)
	require.Error(t, err)
}

func TestCheck(t *testing.T) {
	t.Parallel()

	g, err := Fixed("AB12CD34")
	require.NoError(t, err)

	assert.True(t, g.Check("AB12CD34"))
	assert.False(t, g.Check("ab12cd34"), "comparison must be case sensitive")
	assert.False(t, g.Check("AB12CD3"))
	assert.False(t, g.Check("AB12CD345"))
	assert.False(t, g.Check(""))
}

func TestFixedRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := Fixed("")
	require.Error(t, err)
}

func TestCheckConcurrent(t *testing.T) {
	t.Parallel()

	g, err := New(DefaultLength)
	require.NoError(t, err)
	code := g.Code()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, g.Check(code))
		}()
	}
	wg.Wait()
}
