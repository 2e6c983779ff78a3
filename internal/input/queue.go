package input

import (
	"sync/atomic"

	"github.com/Versifine/diver/internal/control"
)

const DefaultQueueSize = 256

type KeyEvent struct {
	Key     control.Key
	Pressed bool
}

// Queue carries key events from input goroutines to the frame loop.
// Push never blocks; events beyond capacity are dropped.
type Queue struct {
	ch      chan KeyEvent
	dropped atomic.Uint64
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan KeyEvent, size)}
}

func (q *Queue) Push(evt KeyEvent) bool {
	select {
	case q.ch <- evt:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

func (q *Queue) Press(key control.Key) bool {
	return q.Push(KeyEvent{Key: key, Pressed: true})
}

func (q *Queue) Release(key control.Key) bool {
	return q.Push(KeyEvent{Key: key, Pressed: false})
}

func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

func (q *Queue) Len() int {
	return len(q.ch)
}
