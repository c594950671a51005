package events

import "sync"

// Queue is a FIFO of game-side intents. Producers Push from any goroutine;
// the consuming relay drains it once per tick.
type Queue[T any] struct {
	mut   sync.Mutex
	items []T
}

func CreateQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

func (q *Queue[T]) Push(item T) {
	q.mut.Lock()
	defer q.mut.Unlock()
	q.items = append(q.items, item)
}

// Drain removes and returns everything queued, oldest first.
func (q *Queue[T]) Drain() []T {
	q.mut.Lock()
	defer q.mut.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *Queue[T]) Len() int {
	q.mut.Lock()
	defer q.mut.Unlock()
	return len(q.items)
}
