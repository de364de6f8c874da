package safego

import (
	"sync"
	"testing"
	"time"
)

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("goroutine did not complete within timeout")
	}
}

func TestGo_RunsFunction(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	Go("test", func() { defer wg.Done() })
	waitOrFail(t, &wg)
}

func TestGo_RecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	Go("panicky", func() {
		defer wg.Done()
		panic("intentional panic in test")
	})
	waitOrFail(t, &wg)
}

func TestRun(t *testing.T) {
	if !Run("ok", func() {}) {
		t.Error("Run() = false for a clean function")
	}
	if Run("boom", func() { panic("boom") }) {
		t.Error("Run() = true for a panicking function")
	}
}
