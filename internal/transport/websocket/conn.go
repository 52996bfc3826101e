package websocket

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
)

var (
	ErrConnClosed    = errors.New("connection is closed")
	ErrSendQueueFull = errors.New("send queue is full")
)

// Conn is one accepted websocket connection. Outbound messages go through a bounded queue
// drained by writePump, which is the only writer to ws.
type Conn struct {
	ID entity.ConnID

	ws   *websocket.Conn
	send chan []byte
	quit chan struct{}
	once sync.Once

	writeTimeout time.Duration
	pingInterval time.Duration
}

func newConn(id entity.ConnID, ws *websocket.Conn, queueSize int, writeTimeout, pingInterval time.Duration) *Conn {
	if queueSize <= 0 {
		queueSize = 64
	}

	return &Conn{
		ID:           id,
		ws:           ws,
		send:         make(chan []byte, queueSize),
		quit:         make(chan struct{}),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

// Enqueue queues data without blocking. A full queue closes the connection.
func (that *Conn) Enqueue(data []byte) error {
	if that.IsClosed() {
		return ErrConnClosed
	}

	select {
	case that.send <- data:
		return nil
	case <-that.quit:
		return ErrConnClosed
	default:
		that.Close()
		return fmt.Errorf("%w: connection %s", ErrSendQueueFull, that.ID)
	}
}

// Close asks writePump to flush what is queued and close the socket. Safe to call repeatedly.
func (that *Conn) Close() {
	that.once.Do(func() {
		close(that.quit)
	})
}

func (that *Conn) IsClosed() bool {
	select {
	case <-that.quit:
		return true
	default:
		return false
	}
}

// ReadRequest blocks until the next client message arrives.
func (that *Conn) ReadRequest() (*Request, error) {
	_, data, err := that.ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	return decodeRequest(data)
}

func (that *Conn) prepareRead(readLimit int64) {
	if readLimit > 0 {
		that.ws.SetReadLimit(readLimit)
	}

	if that.pingInterval <= 0 {
		return
	}

	pongWait := 2 * that.pingInterval
	_ = that.ws.SetReadDeadline(time.Now().Add(pongWait))
	that.ws.SetPongHandler(func(string) error {
		return that.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (that *Conn) writePump() {
	var pings <-chan time.Time
	if that.pingInterval > 0 {
		ticker := time.NewTicker(that.pingInterval)
		defer ticker.Stop()
		pings = ticker.C
	}

	defer that.ws.Close()

	for {
		select {
		case data := <-that.send:
			if err := that.write(websocket.TextMessage, data); err != nil {
				that.Close()
				return
			}
		case <-pings:
			if err := that.write(websocket.PingMessage, nil); err != nil {
				that.Close()
				return
			}
		case <-that.quit:
			that.flush()
			_ = that.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still queued.
func (that *Conn) flush() {
	for {
		select {
		case data := <-that.send:
			if err := that.write(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (that *Conn) write(messageType int, data []byte) error {
	if that.writeTimeout > 0 {
		_ = that.ws.SetWriteDeadline(time.Now().Add(that.writeTimeout))
	}

	if err := that.ws.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}
