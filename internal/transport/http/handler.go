package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/listenroom/sync-service/internal/domain"
	"github.com/listenroom/sync-service/internal/service"
	"github.com/listenroom/sync-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

type RoomItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	Users     []string  `json:"users"`
	CreatedAt time.Time `json:"created_at"`
}

type RoomsListResponse struct {
	Items []RoomItem `json:"items"`
}

// Handler — служебный read-only срез состояния для операторов.
// Всё состояние живёт в памяти, мутаций через HTTP нет.
type Handler struct {
	roomSvc *service.RoomService
}

func NewHandler(rooms *service.RoomService) *Handler {
	return &Handler{roomSvc: rooms}
}

// GET /rooms
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.roomSvc.ListRooms()
	resp := RoomsListResponse{Items: make([]RoomItem, 0, len(rooms))}
	for _, rm := range rooms {
		resp.Items = append(resp.Items, toRoomItem(rm))
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// GET /rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	room, err := h.roomSvc.Room(id)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			httputil.Error(w, http.StatusNotFound, "room not found")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.JSON(w, http.StatusOK, toRoomItem(room))
}

func toRoomItem(r domain.Room) RoomItem {
	return RoomItem{
		ID:        r.ID,
		Name:      r.Name,
		Owner:     r.Owner,
		Users:     r.Users,
		CreatedAt: r.CreatedAt,
	}
}
