package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"livelist/internal/list/model"
	"livelist/internal/room/service"
	"livelist/pkg/logger"
	"livelist/socket"
)

type RoomHandler struct {
	Service *service.RoomService
}

func NewRoomHandler(service *service.RoomService) *RoomHandler {
	return &RoomHandler{Service: service}
}

// CreateRoom seeds a room with the list in the body. ?pwd= sets the room password.
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var list model.List
	if err := json.NewDecoder(r.Body).Decode(&list); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	roomID := mux.Vars(r)["roomId"]
	resp, err := h.Service.CreateRoom(r.Context(), roomID, list, r.URL.Query().Get("pwd"))
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create room %s: %v", roomID, err)
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Room serves GET /rooms/{roomId}: a WebSocket upgrade joins the room, a plain
// GET returns the stored list or null.
func (h *RoomHandler) Room(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	roomID := mux.Vars(r)["roomId"]
	if websocket.IsWebSocketUpgrade(r) {
		socket.ServeWs(h.Service.Hub, w, r, roomID)
		return
	}

	list, err := h.Service.GetList(r.Context(), roomID)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to fetch room %s: %v", roomID, err)
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

func (h *RoomHandler) GetPresence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	roomID := mux.Vars(r)["roomId"]
	users, err := h.Service.GetPresence(r.Context(), roomID)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to fetch presence for %s: %v", roomID, err)
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}

// ShareRedirect turns a /live/{roomId} share link into the app URL that opens the list.
func (h *RoomHandler) ShareRedirect(w http.ResponseWriter, r *http.Request) {
	q := url.Values{}
	q.Set("list", mux.Vars(r)["roomId"])
	if pwd := r.URL.Query().Get("pwd"); pwd != "" {
		q.Set("pwd", pwd)
	}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusTemporaryRedirect)
}

// MethodNotAllowed answers every verb the room routes do not serve.
func (h *RoomHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrShuttingDown), errors.Is(err, socket.ErrRoomClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, socket.ErrUnavailable):
		http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
