package backend

import (
	"sync"
	"sync/atomic"
)

// container is the shared record behind every Handle of one backend.
type container struct {
	id   string
	refs atomic.Int64
	once sync.Once
	stop func(id string)
}

// Handle is one owner's reference to the running backend. Clone hands out
// another reference; the backend is stopped once, when the last reference
// is released.
type Handle struct {
	c        *container
	released atomic.Bool
}

func newHandle(id string, stop func(id string)) *Handle {
	c := &container{id: id, stop: stop}
	c.refs.Store(1)
	return &Handle{c: c}
}

// ID returns the container identifier.
func (h *Handle) ID() string {
	return h.c.id
}

// Clone returns a new owning reference, or nil when h was already released
// or the backend has been stopped.
func (h *Handle) Clone() *Handle {
	if h.released.Load() {
		return nil
	}
	for {
		n := h.c.refs.Load()
		if n <= 0 {
			return nil
		}
		if h.c.refs.CompareAndSwap(n, n+1) {
			return &Handle{c: h.c}
		}
	}
}

// Release drops this reference. Releasing the same Handle twice is a no-op.
func (h *Handle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	if h.c.refs.Add(-1) == 0 {
		h.c.once.Do(func() { h.c.stop(h.c.id) })
	}
}

// Refs reports the live reference count.
func (h *Handle) Refs() int64 {
	return h.c.refs.Load()
}
