package lock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAcquire_UncontendedKey(t *testing.T) {
	m := NewManager()

	h := m.Acquire("username:alice")
	assert.NotNil(t, h)
	h.Release()

	// Key is reclaimed once the queue drains
	m.mu.Lock()
	assert.Empty(t, m.keys)
	m.mu.Unlock()
}

func TestAcquire_DifferentKeysDoNotContend(t *testing.T) {
	m := NewManager()

	h1 := m.Acquire("username:alice")
	done := make(chan struct{})
	go func() {
		h2 := m.Acquire("username:bob")
		h2.Release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("acquisition of an unrelated key blocked")
	}
	h1.Release()
}

func TestAcquire_SerializesSameKey(t *testing.T) {
	m := NewManager()

	var inSection int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := m.Acquire("email:a@example.com")
			defer h.Release()

			n := atomic.AddInt32(&inSection, 1)
			assert.Equal(t, int32(1), n)
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inSection, -1)
		}()
	}
	wg.Wait()
}

func TestAcquire_WaitersServedInArrivalOrder(t *testing.T) {
	m := NewManager()

	h := m.Acquire("k")

	var mu sync.Mutex
	var order []int
	started := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			<-started
			// Stagger arrival so queue order is deterministic
			time.Sleep(time.Duration(i*20) * time.Millisecond)
			hi := m.Acquire("k")
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			hi.Release()
		}()
	}

	close(started)
	// Let every waiter enqueue before the first release
	time.Sleep(200 * time.Millisecond)
	h.Release()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestAcquireMany_CanonicalOrderPreventsDeadlock(t *testing.T) {
	m := NewManager()

	// Two flows lock the same pair in opposite caller order, repeatedly.
	// Without canonical ordering this deadlocks almost immediately.
	var wg sync.WaitGroup
	run := func(keys ...string) {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			handles := m.AcquireMany(keys...)
			ReleaseAll(handles)
		}
	}
	wg.Add(2)
	go run("username:alice", "email:alice@example.com")
	go run("email:alice@example.com", "username:alice")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("opposite-order acquisition deadlocked")
	}
}

func TestAcquireMany_DeduplicatesKeys(t *testing.T) {
	m := NewManager()

	handles := m.AcquireMany("k", "k", "k")
	assert.Len(t, handles, 1)
	ReleaseAll(handles)
}

func TestRelease_TwicePanics(t *testing.T) {
	m := NewManager()

	h := m.Acquire("k")
	h.Release()

	assert.Panics(t, func() {
		h.Release()
	})
}

func TestRelease_WakesExactlyOneWaiter(t *testing.T) {
	m := NewManager()

	h := m.Acquire("k")

	acquired := make(chan int, 2)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			hi := m.Acquire("k")
			acquired <- i
			time.Sleep(50 * time.Millisecond)
			hi.Release()
		}()
	}

	time.Sleep(50 * time.Millisecond)
	h.Release()

	<-acquired
	select {
	case <-acquired:
		t.Fatal("second waiter acquired while first still held the key")
	case <-time.After(20 * time.Millisecond):
	}

	// Second waiter gets its turn after the first releases
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second waiter never acquired")
	}
}
