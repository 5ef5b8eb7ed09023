package pathfinder

import (
	"container/heap"
	"time"
)

// orphanEntry is one pending orphan-expiry deadline. Grounded on spec.md
// §9's explicit suggestion: "a min-heap (or wheel) of orphan deadlines
// keyed by (deadline, service_id) to serve timer firing in O(log n)."
// No library in the example corpus offers a priority queue suited to
// this; container/heap is the standard-library idiom for exactly this
// shape and needs no third-party replacement (see DESIGN.md).
type orphanEntry struct {
	serviceID ServiceID
	deadline  time.Time
	index     int
}

type orphanHeap []*orphanEntry

func (h orphanHeap) Len() int            { return len(h) }
func (h orphanHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h orphanHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}

func (h *orphanHeap) Push(x any) {
	e := x.(*orphanEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *orphanHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// addOrphan arms a deadline for svc (already marked orphaned) and
// rearms the domain's single timer if this is the earliest pending
// deadline.
func (d *Domain) addOrphan(svc *Service) {
	e := &orphanEntry{serviceID: svc.ID, deadline: svc.deadline()}
	heap.Push(&d.orphans, e)
	d.orphanIndex[svc.ID] = e
	d.rearmTimer()
}

// removeOrphan cancels a pending deadline, used when a service is
// re-adopted before its TTL elapses.
func (d *Domain) removeOrphan(id ServiceID) {
	e, ok := d.orphanIndex[id]
	if !ok {
		return
	}
	heap.Remove(&d.orphans, e.index)
	delete(d.orphanIndex, id)
	d.rearmTimer()
}

func (d *Domain) rearmTimer() {
	if len(d.orphans) == 0 {
		if d.timer != nil {
			d.timer.Stop()
		}
		return
	}
	wait := time.Until(d.orphans[0].deadline)
	if wait < 0 {
		wait = 0
	}
	if d.timer == nil {
		d.timer = time.NewTimer(wait)
		return
	}
	if !d.timer.Stop() {
		select {
		case <-d.timer.C:
		default:
		}
	}
	d.timer.Reset(wait)
}

// handleOrphanTimeout finalizes every orphan whose deadline has passed
// as of now, deleting the service and emitting disappeared to every
// subscriber that had it cached (spec.md §4.2, outcome 2).
func (d *Domain) handleOrphanTimeout(now time.Time) {
	for len(d.orphans) > 0 && !d.orphans[0].deadline.After(now) {
		e := heap.Pop(&d.orphans).(*orphanEntry)
		delete(d.orphanIndex, e.serviceID)

		svc, exists := d.services[e.serviceID]
		if !exists || !svc.IsOrphan() {
			continue
		}
		delete(d.services, svc.ID)
		d.acct.Release(ResourceServices, svc.OwnerUser, 1)
		d.notifyRemoval(svc)
	}
	d.rearmTimer()
}
