package runtime

import "sync"

// queue is an unbounded FIFO message queue. put never blocks, take blocks
// until a message is available. Only the worker calls take.
type queue struct {
	mtx    sync.Mutex
	items  []Message
	signal chan struct{}
}

func newQueue() *queue {
	return &queue{signal: make(chan struct{}, 1)}
}

func (q *queue) put(msg Message) {
	q.mtx.Lock()
	q.items = append(q.items, msg)
	q.mtx.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *queue) take() Message {
	for {
		q.mtx.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mtx.Unlock()
			return msg
		}
		q.mtx.Unlock()
		<-q.signal
	}
}
