package queue

// Item is one scored entry in a priority queue. Value-based to keep the
// backing array allocation-free during search.
type Item struct {
	// ID is the graph node identifier. Equal distances order by ID so
	// traversal stays reproducible run to run.
	ID uint64
	// Distance is the priority of the item in the queue.
	Distance float32
	// Ref is the arena slot of the search-local candidate this item scores.
	Ref uint32
}

// PriorityQueue is a binary heap of Items, either min- or max-ordered by
// Distance with ID as the tie-break.
type PriorityQueue struct {
	isMaxHeap bool
	items     []Item
}

// NewMin initializes a queue whose top is the smallest distance.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: false,
		items:     make([]Item, 0, capacity),
	}
}

// NewMax initializes a queue whose top is the largest distance.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: true,
		items:     make([]Item, 0, capacity),
	}
}

// Len returns the number of items in the queue.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// TopItem returns the top element without removing it.
func (pq *PriorityQueue) TopItem() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// PushItem inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) PushItem(item Item) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// PushItemBounded inserts an item into a queue holding at most bound items.
// When the queue is full the item only enters if it beats the current top
// (for a max-heap: the farthest kept item), which is then evicted.
// Reports whether the item was inserted.
func (pq *PriorityQueue) PushItemBounded(item Item, bound int) bool {
	if bound <= 0 {
		return false
	}
	if len(pq.items) < bound {
		pq.PushItem(item)
		return true
	}
	if !pq.beats(item, pq.items[0]) {
		return false
	}
	pq.items[0] = item
	pq.siftDown(0)
	return true
}

// PopItem removes and returns the top element.
func (pq *PriorityQueue) PopItem() (Item, bool) {
	n := len(pq.items)
	if n == 0 {
		return Item{}, false
	}
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items[n-1] = Item{}
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root, true
}

// Reset clears the queue for reuse, keeping the backing array.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

// beats reports whether a would be ordered strictly after b in heap
// priority, i.e. pushing a into a full queue should evict b.
func (pq *PriorityQueue) beats(a, b Item) bool {
	if a.Distance != b.Distance {
		if pq.isMaxHeap {
			return a.Distance < b.Distance
		}
		return a.Distance > b.Distance
	}
	if pq.isMaxHeap {
		return a.ID < b.ID
	}
	return a.ID > b.ID
}

func (pq *PriorityQueue) less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if a.Distance != b.Distance {
		if pq.isMaxHeap {
			return a.Distance > b.Distance
		}
		return a.Distance < b.Distance
	}
	if pq.isMaxHeap {
		return a.ID > b.ID
	}
	return a.ID < b.ID
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.less(i, p) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && pq.less(r, l) {
			best = r
		}
		if !pq.less(best, i) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}
