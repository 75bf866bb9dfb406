package ws

// Типы входящих сообщений
const (
	TypeAuth            = "auth"
	TypeCreateRoom      = "create_room"
	TypeJoinRoom        = "join_room"
	TypeLeaveRoom       = "leave_room"
	TypeChat            = "chat"
	TypePlayback        = "playback"
	TypeRequestRoomList = "request_room_list"
)

// Типы исходящих сообщений (chat и playback двусторонние)
const (
	TypeRoomList   = "room_list"
	TypeRoomUpdate = "room_update"
)

// Действия в room_update
const (
	ActionCreated    = "created"
	ActionUserJoined = "user_joined"
	ActionUserLeft   = "user_left"
	ActionClosed     = "closed"
)

// Inbound — плоский кадр клиента; поля сверх type зависят от типа.
// Кадр с неизвестным type или не-JSON молча отбрасывается.
type Inbound struct {
	Type     string  `json:"type"`
	UserID   string  `json:"user_id,omitempty"`
	Name     string  `json:"name,omitempty"`
	RoomID   string  `json:"room_id,omitempty"`
	Message  string  `json:"message,omitempty"`
	Command  string  `json:"command,omitempty"`
	Position float64 `json:"position,omitempty"`
	Volume   float64 `json:"volume,omitempty"`
	SongPath string  `json:"song_path,omitempty"`
}

// AuthAck сообщает клиенту его user_id (важно, когда id сгенерирован сервером).
type AuthAck struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

type RoomItem struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Owner string   `json:"owner"`
	Users []string `json:"users"`
}

type RoomList struct {
	Type  string     `json:"type"`
	Rooms []RoomItem `json:"rooms"`
}

type RoomUpdate struct {
	Type   string   `json:"type"`
	RoomID string   `json:"room_id"`
	Action string   `json:"action"`
	UserID string   `json:"user_id"`
	Users  []string `json:"users"`
}

type Chat struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type Playback struct {
	Type     string  `json:"type"`
	UserID   string  `json:"user_id"`
	Command  string  `json:"command"`
	Position float64 `json:"position"`
	Volume   float64 `json:"volume"`
	SongPath string  `json:"song_path"`
}
