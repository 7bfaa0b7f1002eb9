// internal/eventloop/loop_test.go
package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLoop_FIFOAndNestedPosts(t *testing.T) {
	l := New(zaptest.NewLogger(t))
	var got []string

	l.Post(func() {
		got = append(got, "a")
		l.Post(func() { got = append(got, "c") })
	})
	l.Post(func() { got = append(got, "b") })

	assert.Equal(t, 3, l.Drain())
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Zero(t, l.Pending())
}

func TestLoop_Cancel(t *testing.T) {
	l := New(nil)
	ran := false
	task := l.Post(func() { ran = true })
	task.Cancel()

	l.Drain()
	assert.False(t, ran)
	assert.True(t, task.Canceled())

	var nilTask *Task
	assert.NotPanics(t, func() { nilTask.Cancel() })
	assert.False(t, nilTask.Canceled())
}

func TestLoop_StepRunsOneTask(t *testing.T) {
	l := New(nil)
	count := 0
	l.Post(func() { count++ })
	l.Post(func() { count++ })

	require.True(t, l.Step())
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, l.Pending())
	require.True(t, l.Step())
	assert.False(t, l.Step())
}

func TestLoop_PanicIsContained(t *testing.T) {
	l := New(zaptest.NewLogger(t))
	after := false
	l.PostNamed("boom", func() { panic("boom") })
	l.Post(func() { after = true })

	assert.NotPanics(t, func() { l.Drain() })
	assert.True(t, after)
}

func TestLoop_DrainIsBounded(t *testing.T) {
	l := New(nil)
	var again func()
	again = func() { l.Post(again) }
	l.Post(again)

	assert.Equal(t, maxDrainTasks, l.Drain())
	assert.Equal(t, 1, l.Pending())
}

func TestLoop_Run(t *testing.T) {
	l := New(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var wg sync.WaitGroup
	results := make(chan int, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Post(func() { results <- i })
		}(i)
	}
	wg.Wait()

	seen := 0
	timeout := time.After(2 * time.Second)
	for seen < 20 {
		select {
		case <-results:
			seen++
		case <-timeout:
			t.Fatalf("only %d of 20 tasks ran", seen)
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLoop_RunTwiceFails(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Post(func() { close(started) })
		_ = l.Run(ctx)
	}()
	<-started

	err := l.Run(context.Background())
	assert.Error(t, err)

	cancel()
	<-done
}
