package store

import "sync"

// snapshotNotifier fans a newly-committed Snapshot out to subscribers,
// adapted from the teacher's events.Broker (pkg/events): a single writer
// publishes, each subscriber gets its own buffered channel, and a full
// subscriber channel has its oldest pending snapshot dropped rather than
// blocking the committing goroutine. Subscribers only ever care about the
// latest snapshot, so coalescing stale updates is correct, not lossy
// (spec §4.5's mempool loop only ever reads the newest snapshot).
type snapshotNotifier struct {
	mu          sync.Mutex
	subscribers map[chan *Snapshot]bool
}

func newSnapshotNotifier() *snapshotNotifier {
	return &snapshotNotifier{subscribers: make(map[chan *Snapshot]bool)}
}

// Subscribe returns a channel that receives every future committed
// Snapshot, buffered so a slow consumer coalesces rather than blocking
// commits.
func (n *snapshotNotifier) Subscribe() <-chan *Snapshot {
	ch := make(chan *Snapshot, 1)
	n.mu.Lock()
	n.subscribers[ch] = true
	n.mu.Unlock()
	return ch
}

// Unsubscribe stops delivery to a channel returned by Subscribe and closes
// it.
func (n *snapshotNotifier) Unsubscribe(ch <-chan *Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for c := range n.subscribers {
		if c == ch {
			delete(n.subscribers, c)
			close(c)
			return
		}
	}
}

// publish delivers snap to every subscriber, dropping a stale pending
// snapshot in favor of the new one rather than blocking.
func (n *snapshotNotifier) publish(snap *Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
