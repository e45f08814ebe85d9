package queue

import "errors"

// ErrQueueFull is returned by Enqueue when the buffer is exhausted
var ErrQueueFull = errors.New("queue is full")

// Queue represents a basic queue.
type Queue[T any] interface {
	Enqueue(item T) error
	Dequeue() (T, bool)
	Size() int
	ReadAllMessages() []T
	ClearQueue()
}
