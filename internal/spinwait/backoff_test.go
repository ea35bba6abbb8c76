package spinwait

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitReturnsAfterSet(t *testing.T) {
	var f Flag
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		f.Set()
	}()

	done := make(chan struct{})
	go func() {
		Wait(&f, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Set")
	}
	wg.Wait()
	assert.True(t, f.IsSet())
}

func TestWaitAbortsEarly(t *testing.T) {
	var f Flag
	aborted := false
	abort := func() bool {
		if !aborted {
			aborted = true
		}
		return aborted
	}

	done := make(chan struct{})
	go func() {
		Wait(&f, abort)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not honor abort")
	}
	assert.False(t, f.IsSet())
}

func TestResetAllowsReuse(t *testing.T) {
	var f Flag
	f.Set()
	assert.True(t, f.IsSet())
	f.Reset()
	assert.False(t, f.IsSet())
}
