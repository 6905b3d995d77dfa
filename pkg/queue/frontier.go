package queue

import (
	"container/heap"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-harvester/pkg/models"
)

// entry is one heap slot. seq breaks ties between equal depths so
// entries of the same depth come out in the order they were pushed.
type entry struct {
	item  models.WorkItem
	seq   uint64
	index int
}

// entryHeap implements heap.Interface, ordered by (depth, seq)
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].item.Depth != h[j].item.Depth {
		return h[i].item.Depth < h[j].item.Depth
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Frontier is the crawl queue: breadth-first by depth, FIFO within a depth.
//
// It also tracks in-flight work. Every entry handed out by Pop must be
// acknowledged with Done; once the heap is empty and nothing is in flight
// the frontier closes itself and blocked Pop calls return false.
type Frontier struct {
	h        entryHeap
	mu       sync.Mutex
	cond     *sync.Cond
	nextSeq  uint64
	inFlight int
	closed   bool
	log      *logrus.Entry
}

// NewFrontier creates an empty, open frontier
func NewFrontier(log *logrus.Entry) *Frontier {
	f := &Frontier{log: log}
	f.cond = sync.NewCond(&f.mu)
	heap.Init(&f.h)
	return f
}

// Push enqueues item. It returns false if the frontier is already closed.
func (f *Frontier) Push(item models.WorkItem) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		f.log.WithField("url", item.URL).Debug("Push on closed frontier ignored")
		return false
	}
	heap.Push(&f.h, &entry{item: item, seq: f.nextSeq})
	f.nextSeq++
	f.cond.Signal()
	return true
}

// Pop blocks until an entry is available or the frontier closes.
// A successful Pop counts as in flight until Done is called.
func (f *Frontier) Pop() (models.WorkItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.h) == 0 {
		if f.closed {
			return models.WorkItem{}, false
		}
		f.cond.Wait()
	}
	return f.popLocked(), true
}

// TryPop is the non-blocking form of Pop
func (f *Frontier) TryPop() (models.WorkItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.h) == 0 || f.closed {
		return models.WorkItem{}, false
	}
	return f.popLocked(), true
}

func (f *Frontier) popLocked() models.WorkItem {
	e := heap.Pop(&f.h).(*entry)
	f.inFlight++
	return e.item
}

// Done acknowledges one popped entry. Entries pushed while processing it
// must be pushed before Done so the frontier does not close early.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight == 0 {
		f.log.Error("Frontier.Done called with nothing in flight")
		return
	}
	f.inFlight--
	if f.inFlight == 0 && len(f.h) == 0 && !f.closed {
		f.log.Debug("Frontier exhausted, closing")
		f.closed = true
		f.cond.Broadcast()
	}
}

// Close stops the frontier. Queued entries are dropped and all waiters wake up.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.h = f.h[:0]
		f.cond.Broadcast()
	}
}

// Closed reports whether the frontier has closed, explicitly or by exhaustion
func (f *Frontier) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Len returns the number of queued entries
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.h)
}

// InFlight returns the number of popped entries not yet acknowledged
func (f *Frontier) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}
