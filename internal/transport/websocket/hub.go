package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
)

var ErrConnNotFound = errors.New("connection not found")

// Hub maps connection ids to live connections.
type Hub struct {
	mu    sync.RWMutex
	conns map[entity.ConnID]*Conn
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[entity.ConnID]*Conn),
	}
}

func (that *Hub) Register(conn *Conn) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.conns[conn.ID] = conn
}

func (that *Hub) Unregister(id entity.ConnID) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.conns, id)
}

func (that *Hub) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.conns)
}

// Publish queues an event for a connection without blocking.
func (that *Hub) Publish(id entity.ConnID, event *entity.Event) error {
	that.mu.RLock()
	conn, ok := that.conns[id]
	that.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrConnNotFound, id)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return conn.Enqueue(data)
}
