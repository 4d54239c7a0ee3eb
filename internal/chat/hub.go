package chat

import (
	"context"
	"sync"
)

// Hub is an in-process realtime broker with the same room semantics as the
// production messaging server: connections join and leave rooms, and a
// send-message frame fans out to every member of its room, the sender
// included (the server echoes). Tests and the loopback demo run on it.
type Hub struct {
	mu    sync.Mutex
	next  int
	conns map[int]*hubConn
	rooms map[int]string // conn id -> joined room
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[int]*hubConn),
		rooms: make(map[int]string),
	}
}

// Connect registers a new connection on the hub.
func (h *Hub) Connect(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	c := &hubConn{hub: h, id: id, in: make(chan Frame, 16)}
	h.conns[id] = c
	return c, nil
}

func (h *Hub) handle(from int, f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch f.Event {
	case EventJoin:
		h.rooms[from] = f.RoomID
	case EventLeave:
		if h.rooms[from] == f.RoomID {
			delete(h.rooms, from)
		}
	case EventMessage:
		for id, room := range h.rooms {
			if room != f.RoomID {
				continue
			}
			c, ok := h.conns[id]
			if !ok {
				continue
			}
			select {
			case c.in <- f:
			default:
				// Drop when the receiver is slow to avoid blocking.
			}
		}
	}
}

func (h *Hub) drop(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[id]; ok {
		delete(h.conns, id)
		delete(h.rooms, id)
		close(c.in)
	}
}

// Members reports who is joined to a room; used by tests.
func (h *Hub) Members(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, room := range h.rooms {
		if room == roomID {
			n++
		}
	}
	return n
}

type hubConn struct {
	hub *Hub
	id  int
	in  chan Frame

	mu     sync.Mutex
	closed bool
}

func (c *hubConn) Send(f Frame) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()
	c.hub.handle(c.id, f)
	return nil
}

func (c *hubConn) Receive() (Frame, error) {
	f, ok := <-c.in
	if !ok {
		return Frame{}, ErrClosed
	}
	return f, nil
}

func (c *hubConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	c.hub.drop(c.id)
	return nil
}
