package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/listenroom/sync-service/internal/domain"
	"github.com/listenroom/sync-service/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Options struct {
	PingEvery      time.Duration
	SendBuffer     int
	MaxMessageSize int64
	MaxChatLen     int
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	rooms    *service.RoomService

	opts Options
}

func NewServer(hub *Hub, rooms *service.RoomService, opts Options) *Server {
	if opts.PingEvery <= 0 {
		opts.PingEvery = 15 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 1 << 20
	}
	if opts.MaxChatLen <= 0 {
		opts.MaxChatLen = 4000
	}
	return &Server{
		hub:   hub,
		rooms: rooms,
		opts:  opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// WS endpoint. Идентификация — только сообщением auth внутри потока,
// параметров в URL нет.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	wsc, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newConn(wsc, s.opts.SendBuffer)
	go c.writePump(s.opts.PingEvery)

	s.readLoop(c)

	// Единый путь очистки: разрыв, ошибка чтения и вытеснение проходят здесь.
	// Вытесненное реконнектом соединение комнату не покидает — ею владеет
	// новая сессия с тем же user id.
	if c.userID != "" && s.hub.Unregister(c) {
		if res, list, err := s.rooms.Leave(c.userID); err == nil {
			s.broadcastLeave(c.userID, res, list)
		}
		slog.Info("ws disconnected", "user", c.userID)
	}
	_ = c.Close()
}

func (s *Server) readLoop(c *wsConn) {
	c.ws.SetReadLimit(s.opts.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("ws drop malformed frame", "user", c.userID, "err", err)
			continue
		}
		s.route(c, msg)
	}
}

// route обрабатывает один кадр. Сообщения одного соединения идут строго
// последовательно; нераспознанные типы и логические no-op молча
// игнорируются — клиенту ошибки не возвращаются.
func (s *Server) route(c *wsConn, msg Inbound) {
	if c.userID == "" && msg.Type != TypeAuth {
		slog.Debug("ws drop pre-auth frame", "type", msg.Type)
		return
	}

	switch msg.Type {
	case TypeAuth:
		s.handleAuth(c, msg)

	case TypeCreateRoom:
		prev, room, list := s.rooms.CreateRoom(c.userID, msg.Name)
		s.hub.BroadcastAll(roomListMsg(list))
		if prev != nil {
			s.sendLeaveUpdate(c.userID, *prev)
		}
		s.hub.BroadcastUsers(room.Users, "", RoomUpdate{
			Type:   TypeRoomUpdate,
			RoomID: room.ID,
			Action: ActionCreated,
			UserID: c.userID,
			Users:  room.Users,
		})
		slog.Info("room created", "room", room.ID, "owner", c.userID, "name", room.Name)

	case TypeJoinRoom:
		prev, room, list, err := s.rooms.JoinRoom(c.userID, msg.RoomID)
		if err != nil {
			slog.Debug("ws join ignored", "user", c.userID, "room", msg.RoomID, "err", err)
			return
		}
		s.hub.BroadcastAll(roomListMsg(list))
		if prev != nil {
			s.sendLeaveUpdate(c.userID, *prev)
		}
		s.hub.BroadcastUsers(room.Users, "", RoomUpdate{
			Type:   TypeRoomUpdate,
			RoomID: room.ID,
			Action: ActionUserJoined,
			UserID: c.userID,
			Users:  room.Users,
		})

	case TypeLeaveRoom:
		res, list, err := s.rooms.Leave(c.userID)
		if err != nil {
			return
		}
		s.broadcastLeave(c.userID, res, list)

	case TypeChat:
		room, err := s.rooms.Membership(c.userID)
		if err != nil {
			return
		}
		text := strings.TrimSpace(msg.Message)
		if text == "" || len(text) > s.opts.MaxChatLen {
			return
		}
		s.hub.BroadcastUsers(room.Users, "", Chat{
			Type:      TypeChat,
			UserID:    c.userID,
			Message:   text,
			Timestamp: time.Now().Unix(),
		})

	case TypePlayback:
		room, err := s.rooms.Membership(c.userID)
		if err != nil {
			return
		}
		// отправителю его же команду не зеркалим
		s.hub.BroadcastUsers(room.Users, c.userID, Playback{
			Type:     TypePlayback,
			UserID:   c.userID,
			Command:  msg.Command,
			Position: msg.Position,
			Volume:   msg.Volume,
			SongPath: msg.SongPath,
		})

	case TypeRequestRoomList:
		s.hub.SendTo(c.userID, roomListMsg(s.rooms.ListRooms()))

	default:
		slog.Debug("ws drop unknown type", "user", c.userID, "type", msg.Type)
	}
}

func (s *Server) handleAuth(c *wsConn, msg Inbound) {
	if c.userID != "" {
		// повторный auth не перепривязывает соединение
		return
	}
	id := strings.TrimSpace(msg.UserID)
	if id == "" {
		id = uuid.NewString()
	}
	c.userID = id
	s.hub.Register(c)

	s.hub.SendTo(id, AuthAck{Type: TypeAuth, UserID: id})
	s.hub.SendTo(id, roomListMsg(s.rooms.ListRooms()))
	slog.Info("ws authenticated", "user", id)
}

// broadcastLeave — общие уведомления для leave_room и разрыва:
// сперва свежий список комнат всем, затем room_update участникам.
func (s *Server) broadcastLeave(userID string, res service.LeaveResult, list []domain.Room) {
	s.hub.BroadcastAll(roomListMsg(list))
	s.sendLeaveUpdate(userID, res)
}

func (s *Server) sendLeaveUpdate(userID string, res service.LeaveResult) {
	action := ActionUserLeft
	if res.Deleted {
		action = ActionClosed
	}
	s.hub.BroadcastUsers(res.Members, "", RoomUpdate{
		Type:   TypeRoomUpdate,
		RoomID: res.Room.ID,
		Action: action,
		UserID: userID,
		Users:  res.Room.Users,
	})
}

func roomListMsg(rooms []domain.Room) RoomList {
	items := make([]RoomItem, 0, len(rooms))
	for _, r := range rooms {
		items = append(items, RoomItem{
			ID:    r.ID,
			Name:  r.Name,
			Owner: r.Owner,
			Users: append([]string{}, r.Users...),
		})
	}
	return RoomList{Type: TypeRoomList, Rooms: items}
}
