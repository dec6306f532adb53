package frontier

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEnqueueDedup(t *testing.T) {
	f := New(3)

	if !f.Enqueue("https://ex.com/a", 0) {
		t.Fatal("first enqueue should succeed")
	}
	if f.Enqueue("https://ex.com/a", 0) {
		t.Error("second enqueue of the same URL should be a no-op")
	}
	if f.PendingCount() != 1 {
		t.Errorf("pending = %d, want 1", f.PendingCount())
	}
}

func TestEnqueueDepthBound(t *testing.T) {
	f := New(2)

	if f.Enqueue("https://ex.com/deep", 3) {
		t.Error("enqueue beyond maxDepth should be rejected")
	}
	if f.Enqueue("https://ex.com/edge", 2) != true {
		t.Error("enqueue at maxDepth should be accepted")
	}
}

func TestEnqueueFailedURLRejected(t *testing.T) {
	f := New(3)
	f.Enqueue("https://ex.com/a", 0)
	e, _ := f.Dequeue()
	f.Fail(e.URL)
	f.Done()

	if f.Enqueue("https://ex.com/a", 1) {
		t.Error("enqueue of a failed URL should be a no-op")
	}
	if f.Visited("https://ex.com/a") {
		t.Error("failed URL should have left the visited set")
	}
}

func TestDequeueDrain(t *testing.T) {
	f := New(1)
	f.Enqueue("https://ex.com/", 0)

	e, ok := f.Dequeue()
	if !ok || e.URL != "https://ex.com/" || e.Depth != 0 {
		t.Fatalf("Dequeue = (%+v, %v), want seed entry", e, ok)
	}

	// A second consumer must block while the entry is in flight, then
	// observe the drain once Done is called with nothing pending.
	got := make(chan bool, 1)
	go func() {
		_, ok := f.Dequeue()
		got <- ok
	}()

	select {
	case <-got:
		t.Fatal("Dequeue returned while an entry was still in flight")
	case <-time.After(20 * time.Millisecond):
	}

	f.Done()

	select {
	case ok := <-got:
		if ok {
			t.Error("expected drained signal (ok=false)")
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not observe drain")
	}
}

func TestRequeueKeepsBarrierClosed(t *testing.T) {
	f := New(1)
	f.Enqueue("https://ex.com/", 0)

	e, _ := f.Dequeue()
	if !f.Requeue(Entry{URL: e.URL, Depth: e.Depth, Attempt: e.Attempt + 1}) {
		t.Fatal("Requeue on an open frontier should succeed")
	}
	f.Done()

	e2, ok := f.Dequeue()
	if !ok {
		t.Fatal("frontier drained although a retry was requeued")
	}
	if e2.Attempt != 1 {
		t.Errorf("Attempt = %d, want 1", e2.Attempt)
	}
	f.Done()

	if _, ok := f.Dequeue(); ok {
		t.Error("expected drain after retry completed")
	}
}

func TestConcurrentDiscoveryExactlyOneProcessing(t *testing.T) {
	f := New(2)
	const url = "https://ex.com/child"

	var accepted int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.Enqueue(url, 1) {
				atomic.AddInt32(&accepted, 1)
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("accepted = %d concurrent enqueues, want exactly 1", accepted)
	}
	if f.PendingCount() != 1 {
		t.Errorf("pending = %d, want 1", f.PendingCount())
	}
}

func TestWorkersDrainCooperatively(t *testing.T) {
	f := New(5)
	f.Enqueue("https://ex.com/0", 0)

	var processed int32
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				e, ok := f.Dequeue()
				if !ok {
					return
				}
				atomic.AddInt32(&processed, 1)
				// Each page up to depth 2 links to two children.
				if e.Depth < 2 {
					for i := 0; i < 2; i++ {
						f.Enqueue(fmt.Sprintf("%s/%d", e.URL, i), e.Depth+1)
					}
				}
				f.Done()
			}
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not drain")
	}

	// Full binary tree of depth 2: 1 + 2 + 4 pages.
	if processed != 7 {
		t.Errorf("processed = %d, want 7", processed)
	}
}

func TestCloseUnblocksWaiters(t *testing.T) {
	f := New(1)
	f.Enqueue("https://ex.com/", 0)
	f.Dequeue() // leaves one entry in flight so waiters block

	got := make(chan bool, 1)
	go func() {
		_, ok := f.Dequeue()
		got <- ok
	}()

	f.Close()

	select {
	case ok := <-got:
		if ok {
			t.Error("Dequeue after Close should report ok=false")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock waiting worker")
	}

	if f.Enqueue("https://ex.com/late", 0) {
		t.Error("Enqueue after Close should be a no-op")
	}
}

func TestRequeueAfterCloseRefused(t *testing.T) {
	f := New(1)
	f.Enqueue("https://ex.com/", 0)
	e, _ := f.Dequeue()

	f.Close()

	if f.Requeue(Entry{URL: e.URL, Depth: e.Depth, Attempt: e.Attempt + 1}) {
		t.Error("Requeue after Close should report false")
	}
	if f.PendingCount() != 0 {
		t.Errorf("pending = %d after refused requeue, want 0", f.PendingCount())
	}

	// The caller is told the entry was dropped and can record the failure.
	f.Fail(e.URL)
	f.Done()
	if failed := f.FailedURLs(); len(failed) != 1 || failed[0] != e.URL {
		t.Errorf("FailedURLs = %v, want [%s]", failed, e.URL)
	}
}

func TestFailedURLs(t *testing.T) {
	f := New(1)
	f.Enqueue("https://ex.com/a", 0)
	f.Enqueue("https://ex.com/b", 0)

	e, _ := f.Dequeue()
	f.Fail(e.URL)
	f.Done()
	e2, _ := f.Dequeue()
	f.Done()

	failed := f.FailedURLs()
	sort.Strings(failed)
	if len(failed) != 1 || failed[0] != e.URL {
		t.Errorf("FailedURLs = %v, want [%s]", failed, e.URL)
	}
	if !f.Visited(e2.URL) {
		t.Errorf("%s should remain visited", e2.URL)
	}
}
