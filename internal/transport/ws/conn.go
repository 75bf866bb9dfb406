package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errConnDead = errors.New("connection dead or send queue full")

// wsConn — одно клиентское соединение. Исходящие сообщения идут через
// ограниченную очередь: медленный потребитель не блокирует рассылку
// остальным, переполнение очереди приравнивается к разрыву.
type wsConn struct {
	ws     *websocket.Conn
	userID string // присваивается один раз при auth, до регистрации в хабе

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	writeWait time.Duration
}

func newConn(ws *websocket.Conn, sendBuffer int) *wsConn {
	return &wsConn{
		ws:        ws,
		send:      make(chan []byte, sendBuffer),
		closed:    make(chan struct{}),
		writeWait: 5 * time.Second,
	}
}

func (c *wsConn) UserID() string { return c.userID }

// Send сериализует сообщение и кладёт его в очередь без ожидания.
func (c *wsConn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return errConnDead
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return errConnDead
	}
}

// Close идемпотентен; разбудит writePump и уронит readLoop.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) writePump(pingEvery time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}
