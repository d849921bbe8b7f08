package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockTableExclusive(t *testing.T) {
	lt := newLockTable()
	ctx := context.Background()

	release, err := lt.acquire(ctx, "account:1001-1", 0)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := lt.acquire(ctx, "account:1001-1", 0)
		if err == nil {
			close(acquired)
			r()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire must wait for release")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire did not proceed after release")
	}
}

func TestLockTableTimeout(t *testing.T) {
	lt := newLockTable()
	release, err := lt.acquire(context.Background(), "k", 0)
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = lt.acquire(context.Background(), "k", 30*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestLockTableDisjointKeysDoNotBlock(t *testing.T) {
	lt := newLockTable()
	r1, err := lt.acquire(context.Background(), "a", 0)
	require.NoError(t, err)
	r2, err := lt.acquire(context.Background(), "b", 10*time.Millisecond)
	require.NoError(t, err)
	r1()
	r2()
}

func TestLockTableCleansUpEntries(t *testing.T) {
	lt := newLockTable()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := lt.acquire(context.Background(), "hot", 0)
			if err != nil {
				return
			}
			r()
			r() // 重複 release 不可重複解鎖
		}()
	}
	wg.Wait()
	assert.Zero(t, lt.size())
}
