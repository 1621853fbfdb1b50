package events

import "sync"

type message struct {
	Kind string
	Data []byte
}

// buffer is a FIFO of events waiting for the writer. Once it holds limit
// events the oldest one is dropped for each new event; limit <= 0 means no bound.
type buffer struct {
	lock    sync.Mutex
	items   []*message
	limit   int
	dropped int
}

func newBuffer(limit int) *buffer {
	return &buffer{limit: limit}
}

// PushBack appends msg and reports whether an older event was dropped to make room.
func (b *buffer) PushBack(msg *message) bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	dropped := false
	if b.limit > 0 && len(b.items) >= b.limit {
		b.items[0] = nil
		b.items = b.items[1:]
		b.dropped++
		dropped = true
	}
	b.items = append(b.items, msg)
	return dropped
}

func (b *buffer) Pop() *message {
	b.lock.Lock()
	defer b.lock.Unlock()

	if len(b.items) == 0 {
		return nil
	}
	msg := b.items[0]
	b.items[0] = nil
	b.items = b.items[1:]
	if len(b.items) == 0 {
		b.items = nil
	}
	return msg
}

func (b *buffer) Size() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.items)
}

func (b *buffer) Dropped() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.dropped
}
