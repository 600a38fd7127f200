package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_UniqueUnderConcurrency(t *testing.T) {
	g, err := New(7)
	require.NoError(t, err)

	const workers, perWorker = 8, 500
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				ids = append(ids, g.NextID())
			}
			mu.Lock()
			for _, id := range ids {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestGenerator_Increasing(t *testing.T) {
	g, err := New(1)
	require.NoError(t, err)

	a := g.NextInt64()
	b := g.NextInt64()
	assert.Greater(t, b, a)
}

func TestNew_InvalidNode(t *testing.T) {
	_, err := New(5000)
	assert.Error(t, err)
}
