package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetOrCreate_Memoizes(t *testing.T) {
	c := NewCache()
	calls := 0
	factory := func() (any, error) {
		calls++
		return &CannyDetector{Low: calls}, nil
	}

	first, err := c.GetOrCreate(KindEdgeDetector, "canny", factory)
	require.NoError(t, err)
	second, err := c.GetOrCreate(KindEdgeDetector, "canny", factory)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())
}

func TestCache_DistinctKeys(t *testing.T) {
	c := NewCache()
	newValue := func(v string) func() (any, error) {
		return func() (any, error) { return &v, nil }
	}

	a, err := c.GetOrCreate(KindGenerator, GeneratorKey("base", "canny"), newValue("a"))
	require.NoError(t, err)
	b, err := c.GetOrCreate(KindGenerator, GeneratorKey("base", "tile"), newValue("b"))
	require.NoError(t, err)
	// Same key string under another kind is a separate entry.
	s, err := c.GetOrCreate(KindSegmenter, GeneratorKey("base", "canny"), newValue("s"))
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.NotSame(t, a, s)
	assert.Equal(t, 3, c.Len())
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	c := NewCache()
	missing := &MissingDependencyError{Dependency: "./weights.safetensors", Reason: "model checkpoint not found"}

	_, err := c.GetOrCreate(KindGenerator, "k", func() (any, error) { return nil, missing })
	require.Error(t, err)

	var mde *MissingDependencyError
	require.True(t, errors.As(err, &mde))
	assert.Equal(t, "./weights.safetensors", mde.Dependency)
	assert.Contains(t, err.Error(), `create generator "k"`)
	assert.Equal(t, 0, c.Len())

	v, err := c.GetOrCreate(KindGenerator, "k", func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCache_PanickingFactoryReleasesWaiters(t *testing.T) {
	c := NewCache()
	started := make(chan struct{})

	waiter := make(chan error, 1)
	go func() {
		<-started
		_, err := c.GetOrCreate(KindSegmenter, "flood", func() (any, error) { return "rebuilt", nil })
		waiter <- err
	}()

	assert.PanicsWithValue(t, "model file is corrupt", func() {
		_, _ = c.GetOrCreate(KindSegmenter, "flood", func() (any, error) {
			close(started)
			time.Sleep(20 * time.Millisecond)
			panic("model file is corrupt")
		})
	})

	select {
	case err := <-waiter:
		// The waiter either saw the failed construction or built its own.
		if err != nil {
			assert.Contains(t, err.Error(), "factory panicked")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter still blocked after the factory panicked")
	}

	v, err := c.GetOrCreate(KindSegmenter, "flood", func() (any, error) { return "rebuilt", nil })
	require.NoError(t, err)
	assert.Equal(t, "rebuilt", v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_ConcurrentCallersShareConstruction(t *testing.T) {
	c := NewCache()
	var calls int32
	release := make(chan struct{})

	factory := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return new(int), nil
	}

	const workers = 16
	results := make([]any, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCreate(KindSegmenter, "flood", factory)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i := 1; i < workers; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestGet_Typed(t *testing.T) {
	c := NewCache()

	seg, err := Get(c, KindSegmenter, "flood", func() (Segmenter, error) {
		return NewFloodSegmenter(0, 0), nil
	})
	require.NoError(t, err)
	assert.IsType(t, &FloodSegmenter{}, seg)

	_, err = Get(c, KindSegmenter, "flood", func() (EdgeDetector, error) {
		return nil, fmt.Errorf("unused")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has type")
}
