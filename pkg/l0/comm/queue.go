package comm

import "sync"

// CommandQueue is a FIFO of pending commands. Push is safe from any
// goroutine, Pop is expected from the single Engine consumer.
type CommandQueue struct {
	head *queuedCommand
	tail *queuedCommand
	size int
	lock sync.Mutex
}

type queuedCommand struct {
	cmd  Command
	next *queuedCommand
}

// Push appends a command.
func (q *CommandQueue) Push(cmd Command) {
	item := &queuedCommand{cmd: cmd}
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.head == nil {
		q.head = item
	} else {
		q.tail.next = item
	}
	q.tail = item
	q.size++
}

// Pop removes the first command, it returns nil if empty.
func (q *CommandQueue) Pop() Command {
	q.lock.Lock()
	defer q.lock.Unlock()
	item := q.head
	if item == nil {
		return nil
	}
	if q.head = item.next; q.head == nil {
		q.tail = nil
	}
	q.size--
	return item.cmd
}

// Len returns the number of pending commands.
func (q *CommandQueue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.size
}

// Clear discards all pending commands and returns how many were dropped.
func (q *CommandQueue) Clear() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	n := q.size
	q.head, q.tail, q.size = nil, nil, 0
	return n
}
