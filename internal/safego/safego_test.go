package safego

import (
	"testing"
	"time"
)

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("goroutine did not complete within timeout")
	}
}

func TestGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})
	Go("test", func() { close(done) })
	waitFor(t, done)
}

func TestGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})

	// Must not crash the test process.
	Go("panicky", func() {
		defer close(done)
		panic("intentional panic in test")
	})
	waitFor(t, done)

	// The process is still healthy enough to launch more work.
	again := make(chan struct{})
	Go("after-panic", func() { close(again) })
	waitFor(t, again)
}
