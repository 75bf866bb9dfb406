package service

import (
	"sort"
	"sync"
	"time"

	"github.com/listenroom/sync-service/internal/domain"

	"github.com/google/uuid"
)

// DefaultRoomName подставляется, если клиент не прислал имя комнаты.
// Литерал сохранён как в эталонном клиенте, который его отображает.
const DefaultRoomName = "未命名房间"

// LeaveResult описывает исход выхода пользователя из комнаты.
type LeaveResult struct {
	Room    domain.Room
	Deleted bool
	// Members — получатели room_update: оставшиеся участники, либо
	// бывшие участники, если комната закрылась.
	Members []string
}

// RoomService — единственный владелец справочника комнат и индекса
// членства. Все составные операции (create/join/leave/disconnect)
// атомарны: мутация и снапшот списка комнат выполняются под одним
// мьютексом, частично применённое состояние снаружи не наблюдаемо.
type RoomService struct {
	mu         sync.Mutex
	rooms      map[string]*domain.Room
	membership map[string]string // userID -> roomID
}

func NewRoomService() *RoomService {
	return &RoomService{
		rooms:      make(map[string]*domain.Room),
		membership: make(map[string]string),
	}
}

// CreateRoom создаёт комнату с единственным участником-владельцем.
// Если пользователь уже состоял в другой комнате, он сначала покидает
// её (с обычной семантикой leave), иначе нарушился бы инвариант
// membership[u] = r ⟺ u ∈ rooms[r].Users.
func (s *RoomService) CreateRoom(ownerID, name string) (prev *LeaveResult, room domain.Room, list []domain.Room) {
	if name == "" {
		name = DefaultRoomName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev = s.detachLocked(ownerID)

	r := &domain.Room{
		ID:        uuid.NewString(),
		Name:      name,
		Owner:     ownerID,
		Users:     []string{ownerID},
		CreatedAt: time.Now(),
	}
	s.rooms[r.ID] = r
	s.membership[ownerID] = r.ID

	return prev, r.Clone(), s.listLocked()
}

// JoinRoom добавляет пользователя в комнату. Повторный join в ту же
// комнату — no-op (Users остаётся множеством). Join в другую комнату
// сначала выводит пользователя из прежней.
func (s *RoomService) JoinRoom(userID, roomID string) (prev *LeaveResult, room domain.Room, list []domain.Room, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil, domain.Room{}, nil, domain.ErrRoomNotFound
	}

	if s.membership[userID] != roomID {
		// detach трогает только прежнюю комнату, целевую он закрыть не может
		prev = s.detachLocked(userID)
		r.Users = append(r.Users, userID)
		s.membership[userID] = roomID
	}

	return prev, r.Clone(), s.listLocked(), nil
}

// Leave выводит пользователя из его текущей комнаты. Пустая комната
// удаляется немедленно.
func (s *RoomService) Leave(userID string) (LeaveResult, []domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.detachLocked(userID)
	if res == nil {
		return LeaveResult{}, nil, domain.ErrNotInRoom
	}
	return *res, s.listLocked(), nil
}

// ListRooms возвращает консистентный снапшот всех комнат.
func (s *RoomService) ListRooms() []domain.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

// Room возвращает копию комнаты по ID.
func (s *RoomService) Room(id string) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return r.Clone(), nil
}

// Membership возвращает комнату, в которой состоит пользователь.
func (s *RoomService) Membership(userID string) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID, ok := s.membership[userID]
	if !ok {
		return domain.Room{}, domain.ErrNotInRoom
	}
	r, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, domain.ErrNotInRoom
	}
	return r.Clone(), nil
}

func (s *RoomService) detachLocked(userID string) *LeaveResult {
	roomID, ok := s.membership[userID]
	if !ok {
		return nil
	}
	delete(s.membership, userID)

	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}

	former := append([]string(nil), r.Users...)
	users := r.Users[:0]
	for _, u := range former {
		if u != userID {
			users = append(users, u)
		}
	}
	r.Users = users

	if len(r.Users) == 0 {
		delete(s.rooms, roomID)
		snap := r.Clone()
		return &LeaveResult{Room: snap, Deleted: true, Members: former}
	}

	snap := r.Clone()
	return &LeaveResult{Room: snap, Deleted: false, Members: snap.Users}
}

func (s *RoomService) listLocked() []domain.Room {
	out := make([]domain.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
