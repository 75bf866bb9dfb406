package domain

import "time"

// Комната живёт только в памяти процесса: рестарт сервера теряет всё.
type Room struct {
	ID        string
	Name      string
	Owner     string
	Users     []string
	CreatedAt time.Time
}

// HasUser сообщает, числится ли пользователь в комнате.
func (r *Room) HasUser(userID string) bool {
	for _, u := range r.Users {
		if u == userID {
			return true
		}
	}
	return false
}

// Clone возвращает независимую копию комнаты для снапшотов.
func (r *Room) Clone() Room {
	cp := *r
	cp.Users = append(make([]string, 0, len(r.Users)), r.Users...)
	return cp
}
