package loop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPostRunsInOrder(t *testing.T) {
	l := New()
	var got []int
	for i := 0; i < 10; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	l.Flush()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestTasksMayPostTasks(t *testing.T) {
	l := New()
	var order []string
	l.Post(func() {
		order = append(order, "outer")
		l.Post(func() { order = append(order, "inner") })
	})
	l.Flush()
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestRunDrainsOnCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var ran int
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	for i := 0; i < 5; i++ {
		l.Post(func() {
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, ran)
}

func TestTimerFires(t *testing.T) {
	l := New()
	fired := false
	tm := l.NewTimer(func() { fired = true })
	tm.Arm(20 * time.Millisecond)
	assert.True(t, tm.Armed())

	time.Sleep(60 * time.Millisecond)
	l.Flush()
	assert.True(t, fired)
	assert.False(t, tm.Armed())
}

func TestTimerDisarmBeatsExpiry(t *testing.T) {
	l := New()
	fired := false
	tm := l.NewTimer(func() { fired = true })
	tm.Arm(10 * time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	// The expiration task is already queued; disarming now must still
	// win because the task re-checks the generation on the loop.
	tm.Disarm()
	l.Flush()
	assert.False(t, fired)
}

func TestTimerRearmReplacesSchedule(t *testing.T) {
	l := New()
	var fires int
	tm := l.NewTimer(func() { fires++ })
	tm.Arm(10 * time.Millisecond)
	tm.Arm(30 * time.Millisecond)

	time.Sleep(70 * time.Millisecond)
	l.Flush()
	assert.Equal(t, 1, fires, "re-arming must supersede the old schedule")
}
