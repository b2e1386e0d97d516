package messaging

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonotonicClock_Now(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		walls []time.Time
		want  []time.Time
	}{
		{
			name:  "advancing wall clock is used as is",
			walls: []time.Time{base, base.Add(5 * time.Millisecond)},
			want:  []time.Time{base, base.Add(5 * time.Millisecond)},
		},
		{
			name:  "stalled wall clock still advances",
			walls: []time.Time{base, base, base},
			want:  []time.Time{base, base.Add(time.Millisecond), base.Add(2 * time.Millisecond)},
		},
		{
			name:  "wall clock stepping back is ignored",
			walls: []time.Time{base, base.Add(-time.Second)},
			want:  []time.Time{base, base.Add(time.Millisecond)},
		},
		{
			name:  "sub-millisecond precision is dropped",
			walls: []time.Time{base.Add(1500 * time.Microsecond)},
			want:  []time.Time{base.Add(time.Millisecond)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := 0
			clock := NewMonotonicClockFrom(func() time.Time {
				w := tt.walls[i]
				i++
				return w
			})
			for _, want := range tt.want {
				assert.Equal(t, want, clock.Now())
			}
		})
	}
}

func TestMonotonicClock_ConcurrentCallsNeverRepeat(t *testing.T) {
	clock := NewMonotonicClockFrom(func() time.Time {
		return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	})

	const n = 200
	results := make(chan time.Time, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- clock.Now()
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[time.Time]bool, n)
	for ts := range results {
		require.False(t, seen[ts], "timestamp %s handed out twice", ts)
		seen[ts] = true
	}
	assert.Len(t, seen, n)
}
