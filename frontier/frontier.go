// Package frontier implements the crawl work queue: a depth-bounded FIFO of
// (URL, depth) entries with enqueue-time deduplication and drain detection.
//
// Deduplication is a reservation: a URL joins the visited set the moment it is
// enqueued, so two workers discovering the same child concurrently produce a
// single entry. A URL whose processing permanently fails is moved from the
// visited set to the failed set, keeping the two disjoint.
package frontier

import "sync"

// Entry is one unit of crawl work. Immutable once created.
type Entry struct {
	URL     string
	Depth   int
	Attempt int // retry counter, zero on first enqueue
}

// Frontier is safe for concurrent use by any number of producers and
// consumers.
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	maxDepth int
	pending  []Entry
	visited  map[string]struct{}
	failed   map[string]struct{}
	inFlight int
	closed   bool
}

// New creates an empty frontier bounded at maxDepth.
func New(maxDepth int) *Frontier {
	f := &Frontier{
		maxDepth: maxDepth,
		visited:  make(map[string]struct{}),
		failed:   make(map[string]struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Enqueue adds (url, depth) to the pending queue and reserves the URL in the
// visited set. It returns false without queueing if the URL was already
// enqueued or failed, if the depth exceeds the bound, or if the frontier has
// been closed.
func (f *Frontier) Enqueue(url string, depth int) bool {
	if depth > f.maxDepth {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	if _, ok := f.visited[url]; ok {
		return false
	}
	if _, ok := f.failed[url]; ok {
		return false
	}

	f.visited[url] = struct{}{}
	f.pending = append(f.pending, Entry{URL: url, Depth: depth})
	f.cond.Signal()
	return true
}

// Requeue puts a previously dequeued entry back for a retry. It bypasses
// deduplication, since the URL is already reserved in the visited set, and
// keeps the original depth. Call it before Done so the drain barrier never
// observes an empty queue while a retry is pending. It returns false when
// the frontier has been closed and the entry was not queued; the caller must
// then account for the URL itself.
func (f *Frontier) Requeue(e Entry) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	f.pending = append(f.pending, e)
	f.cond.Signal()
	return true
}

// Dequeue blocks until an entry is available, returning it with ok=true, or
// until the frontier is drained (nothing pending and nothing in flight) or
// closed, returning ok=false. Dequeued entries count as in-flight until the
// worker calls Done.
func (f *Frontier) Dequeue() (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.pending) == 0 && f.inFlight > 0 && !f.closed {
		f.cond.Wait()
	}

	if len(f.pending) == 0 || f.closed {
		// Drained or shut down: wake the other blocked workers too.
		f.cond.Broadcast()
		return Entry{}, false
	}

	e := f.pending[0]
	f.pending = f.pending[1:]
	f.inFlight++
	return e, true
}

// Done marks a dequeued entry as finished. When the last in-flight entry
// finishes with nothing pending, all blocked workers are released: the
// frontier is drained.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inFlight--
	if f.inFlight == 0 && len(f.pending) == 0 {
		f.cond.Broadcast()
	}
}

// Fail records that the URL's processing exhausted its retries, moving it
// from the visited set to the failed set.
func (f *Frontier) Fail(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.visited, url)
	f.failed[url] = struct{}{}
}

// Close unblocks all waiting workers. Subsequent Enqueue/Requeue calls are
// no-ops. Used for external cancellation; a normal crawl ends by draining.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.cond.Broadcast()
}

// Visited reports whether the URL has been enqueued (and not failed).
func (f *Frontier) Visited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[url]
	return ok
}

// VisitedCount returns the number of URLs ever reserved and not failed.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// FailedURLs returns the URLs that exhausted their retries.
func (f *Frontier) FailedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	urls := make([]string, 0, len(f.failed))
	for u := range f.failed {
		urls = append(urls, u)
	}
	return urls
}

// PendingCount returns the number of entries waiting to be dequeued.
func (f *Frontier) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
