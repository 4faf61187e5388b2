// Package storageproxy implements C8: a local staging area that accepts
// uploads immediately and relays them to an upstream storage server in
// the background, tolerant of that server being unreachable for a while
// (§4.7). Grounded on
// _examples/original_source/storage_proxy/media_storage_proxy/*.go's
// accept/queue/worker split, reworked onto this module's record/wire
// types and an apiclient.Client for the actual relay call.
package storageproxy

import "github.com/marmos91/mediastorage/pkg/wire"

// Entry is one in-flight relay job: the upstream target and the staged
// content/meta file pair backing it (§4.7.1 step 6).
type Entry struct {
	Target      wire.ServerRef
	ContentPath string
	MetaPath    string
}

// Queue is a bounded, channel-backed work queue feeding the worker pool
// (§5: "a bounded work queue feeds N workers").
type Queue struct {
	ch chan Entry
}

// NewQueue returns a Queue with the given capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan Entry, capacity)}
}

// Enqueue adds e to the queue, blocking if it is full.
func (q *Queue) Enqueue(e Entry) {
	q.ch <- e
}

// TryEnqueue adds e to the queue without blocking, reporting whether
// there was room. Workers use this to re-enqueue an entry after a
// transient failure without risking a deadlock against their own queue.
func (q *Queue) TryEnqueue(e Entry) bool {
	select {
	case q.ch <- e:
		return true
	default:
		return false
	}
}

// Dequeue blocks until an entry is available or stopCh closes, in which
// case ok is false.
func (q *Queue) Dequeue(stopCh <-chan struct{}) (Entry, bool) {
	select {
	case e := <-q.ch:
		return e, true
	case <-stopCh:
		return Entry{}, false
	}
}

// Depth returns the number of entries currently queued, for metrics
// reporting.
func (q *Queue) Depth() int {
	return len(q.ch)
}
