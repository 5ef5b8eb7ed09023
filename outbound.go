package pathfinder

import (
	"sync"

	"github.com/gonzalop/pathfinder/internal/proto"
)

// outboundQueue is one session's per-connection outbound frame queue
// (spec.md §4.3: "the session must tolerate partial writes and
// backpressure by maintaining an outbound queue per connection"). push
// never blocks — the domain's single task calls it (indirectly, via a
// NotifySink) and must never stall waiting for a slow peer to drain its
// socket.
type outboundQueue struct {
	mu     sync.Mutex
	items  []*proto.Frame
	notify chan struct{}
}

func newOutboundQueue() *outboundQueue {
	return &outboundQueue{notify: make(chan struct{}, 1)}
}

func (q *outboundQueue) push(f *proto.Frame) {
	q.mu.Lock()
	q.items = append(q.items, f)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// drain returns and clears everything queued so far.
func (q *outboundQueue) drain() []*proto.Frame {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

// empty reports whether every pushed frame has already been drained.
func (q *outboundQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}
