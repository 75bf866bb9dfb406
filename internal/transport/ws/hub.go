package ws

import (
	"sync"
)

type Conn interface {
	Send(v any) error
	Close() error
	UserID() string
}

// Hub — реестр живых соединений: userID -> Conn. Появляется запись при
// auth, исчезает при разрыве. Ошибка отправки закрывает соединение, его
// readLoop затем проходит обычный путь очистки.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]Conn)}
}

// Register привязывает соединение к user id. Если клиент переподключился
// с тем же id, прежнее соединение вытесняется и закрывается.
func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	prev := h.conns[c.UserID()]
	h.conns[c.UserID()] = c
	h.mu.Unlock()

	if prev != nil && prev != c {
		_ = prev.Close()
	}
}

// Unregister убирает соединение, только если запись всё ещё указывает
// на него (его мог уже вытеснить реконнект). Возвращает false для
// вытесненного соединения: его очистка не должна трогать комнату
// новой сессии с тем же user id.
func (h *Hub) Unregister(c Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.conns[c.UserID()]; ok && cur == c {
		delete(h.conns, c.UserID())
		return true
	}
	return false
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// SendTo — best-effort отправка одному пользователю.
func (h *Hub) SendTo(userID string, v any) {
	h.mu.RLock()
	c := h.conns[userID]
	h.mu.RUnlock()

	if c == nil {
		return
	}
	if err := c.Send(v); err != nil {
		_ = c.Close()
	}
}

// BroadcastAll рассылает сообщение всем зарегистрированным соединениям.
func (h *Hub) BroadcastAll(v any) {
	for _, c := range h.snapshot() {
		if err := c.Send(v); err != nil {
			_ = c.Close()
		}
	}
}

// BroadcastUsers рассылает сообщение перечисленным пользователям,
// пропуская except (пустая строка — без исключений). Сбой одного
// получателя не мешает доставке остальным.
func (h *Hub) BroadcastUsers(users []string, except string, v any) {
	h.mu.RLock()
	targets := make([]Conn, 0, len(users))
	for _, u := range users {
		if u == except {
			continue
		}
		if c, ok := h.conns[u]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(v); err != nil {
			_ = c.Close()
		}
	}
}

func (h *Hub) snapshot() []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	return out
}
