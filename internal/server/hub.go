package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/muurk/devtree/internal/devtree"
	"github.com/muurk/devtree/internal/logging"
)

// Event is one hotplug event as delivered to clients.
type Event struct {
	Seq        uint64            `json:"seq"`
	Time       time.Time         `json:"time"`
	Action     string            `json:"action"`
	Syspath    string            `json:"syspath"`
	Subsystem  string            `json:"subsystem,omitempty"`
	Sysname    string            `json:"sysname,omitempty"`
	Devtype    string            `json:"devtype,omitempty"`
	Devnode    string            `json:"devnode,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// EventFromDevice builds an Event from a monitor-delivered device.
// The device stays owned by the caller.
func EventFromDevice(dev *devtree.Device) Event {
	info := dev.Info()
	return Event{
		Time:       time.Now().UTC(),
		Action:     info.Action,
		Syspath:    info.Syspath,
		Subsystem:  info.Subsystem,
		Sysname:    info.Sysname,
		Devtype:    info.Devtype,
		Devnode:    info.Devnode,
		Properties: dev.Properties(),
	}
}

// Hub fans events out to WebSocket clients and keeps a bounded backlog
// for replay to clients that connect after the fact.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	backlog *queue.Queue // of Event, oldest at the front
	limit   int
	seq     uint64
}

// NewHub creates a hub keeping at most limit events of backlog.
func NewHub(limit int) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		backlog: queue.New(),
		limit:   limit,
	}
}

// Publish assigns the event a sequence number, appends it to the
// backlog, and sends it to every connected client. Slow clients are
// skipped rather than blocking the pump.
func (h *Hub) Publish(ev Event) Event {
	h.mu.Lock()
	h.seq++
	ev.Seq = h.seq
	h.backlog.Add(ev)
	for h.backlog.Length() > h.limit {
		h.backlog.Remove()
	}
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		logging.Error("Failed to marshal event", zap.Error(err))
		return ev
	}
	for _, c := range clients {
		c.trySend(data)
	}
	return ev
}

// Register adds a client and returns the backlog for replay, oldest
// first. The snapshot and the registration happen under one lock, so
// the client sees every event exactly once.
func (h *Hub) Register(c *Client) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	replay := make([]Event, 0, h.backlog.Length())
	for i := 0; i < h.backlog.Length(); i++ {
		replay = append(replay, h.backlog.Get(i).(Event))
	}
	return replay
}

// Unregister removes a client. Only the call that actually removes the
// client closes its send channel, so a racing shutdown cannot
// double-close.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if existed {
		close(c.send)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// EventCount returns the total number of events published so far.
func (h *Hub) EventCount() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// closeAll disconnects every client so their write pumps exit.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		delete(h.clients, c)
	}
}
