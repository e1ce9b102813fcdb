package syncx

import (
	"sync"
	"testing"
)

func TestGuardGetSet(t *testing.T) {
	g := NewGuard(0.75)

	if got := g.Get(); got != 0.75 {
		t.Errorf("Get() = %v, want 0.75", got)
	}

	g.Set(0.5)
	if got := g.Get(); got != 0.5 {
		t.Errorf("Get() after Set = %v, want 0.5", got)
	}
}

func TestGuardGetReturnsCopy(t *testing.T) {
	type tuning struct{ strength float64 }
	g := NewGuard(tuning{strength: 1.0})

	snapshot := g.Get()
	snapshot.strength = 0.1

	if got := g.Get().strength; got != 1.0 {
		t.Errorf("strength = %v after mutating a snapshot, want 1.0", got)
	}
}

func TestGuardConcurrentReadersAndWriter(t *testing.T) {
	g := NewGuard(0.0)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		v := float64(i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			g.Set(v)
		}()
		go func() {
			defer wg.Done()
			if got := g.Get(); got < 0 || got > 49 {
				t.Errorf("Get() = %v, outside any value ever set", got)
			}
		}()
	}
	wg.Wait()
}
