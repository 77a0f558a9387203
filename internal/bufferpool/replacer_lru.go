package bufferpool

import "container/list"

// lruReplacer evicts the evictable frame whose last access is oldest.
// Front of the list is most recently used.
type lruReplacer struct {
	order     *list.List
	elems     map[int]*list.Element
	evictable map[int]bool
	size      int
}

var _ Replacer = (*lruReplacer)(nil)

func newLRUReplacer(capacity int) *lruReplacer {
	return &lruReplacer{
		order:     list.New(),
		elems:     make(map[int]*list.Element, capacity),
		evictable: make(map[int]bool, capacity),
	}
}

func (l *lruReplacer) RecordAccess(id int) {
	if e, ok := l.elems[id]; ok {
		l.order.MoveToFront(e)
		return
	}
	l.elems[id] = l.order.PushFront(id)
}

func (l *lruReplacer) SetEvictable(id int, evictable bool) {
	if _, ok := l.elems[id]; !ok {
		return
	}
	if l.evictable[id] == evictable {
		return
	}
	l.evictable[id] = evictable
	if evictable {
		l.size++
	} else {
		l.size--
	}
}

func (l *lruReplacer) Evict() (int, bool) {
	for e := l.order.Back(); e != nil; e = e.Prev() {
		id := e.Value.(int)
		if l.evictable[id] {
			l.Remove(id)
			return id, true
		}
	}
	return -1, false
}

func (l *lruReplacer) Remove(id int) {
	e, ok := l.elems[id]
	if !ok {
		return
	}
	if l.evictable[id] {
		l.size--
	}
	l.order.Remove(e)
	delete(l.elems, id)
	delete(l.evictable, id)
}

func (l *lruReplacer) Size() int { return l.size }
