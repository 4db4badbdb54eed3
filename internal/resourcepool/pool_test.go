package resourcepool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTakePutRoundTrip(t *testing.T) {
	p := New([]int{0, 1, 2})
	require.Equal(t, 3, p.Len())

	ctx := context.Background()
	v, err := p.Take(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, p.Len())

	p.Put(v)
	assert.Equal(t, 3, p.Len())
}

func TestTakeBlocksUntilPut(t *testing.T) {
	p := New([]int{})

	done := make(chan int, 1)
	go func() {
		v, err := p.Take(context.Background())
		require.NoError(t, err)
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Take returned before Put")
	default:
	}

	p.Put(42)

	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Take never woke up after Put")
	}
}

func TestTakeRespectsContextCancellation(t *testing.T) {
	p := New([]int{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Take(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAllSlotsLeasableAcrossManyFailures(t *testing.T) {
	const n = 16
	slots := make([]int, n)
	for i := range slots {
		slots[i] = i
	}
	p := New(slots)

	var wg sync.WaitGroup
	for i := 0; i < n*4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := p.Take(context.Background())
			if err != nil {
				return
			}
			p.Put(v)
		}()
	}
	wg.Wait()

	assert.Equal(t, n, p.Len())
}
