package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDeterministicClock_StartsAtStart(t *testing.T) {
	clock := NewDeterministicClock(epoch, time.Second)
	assert.Equal(t, epoch, clock.Current())
	assert.Equal(t, epoch, clock.Now())
}

func TestDeterministicClock_Steps(t *testing.T) {
	clock := NewDeterministicClock(epoch, time.Second)

	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch.Add(time.Second), clock.Now())
	assert.Equal(t, epoch.Add(2*time.Second), clock.Now())
	assert.Equal(t, epoch.Add(3*time.Second), clock.Current())
}

func TestDeterministicClock_ZeroStepIsFrozen(t *testing.T) {
	clock := NewDeterministicClock(epoch, 0)
	for i := 0; i < 5; i++ {
		assert.Equal(t, epoch, clock.Now())
	}
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock(epoch, time.Minute)
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, epoch, clock.Now())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock(epoch, time.Millisecond)
	const numGoroutines = 50
	const callsPerGoroutine = 20

	var mu sync.Mutex
	seen := make(map[time.Time]bool)
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				now := clock.Now()
				mu.Lock()
				require.False(t, seen[now], "duplicate time %v", now)
				seen[now] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, numGoroutines*callsPerGoroutine)
	assert.Equal(t, epoch.Add(numGoroutines*callsPerGoroutine*time.Millisecond), clock.Current())
}
