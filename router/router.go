package router

import (
	"net/http"

	"github.com/gorilla/mux"

	"livelist/config"
	roomHandler "livelist/internal/room"
	"livelist/internal/room/service"
	"livelist/middleware"
	"livelist/socket"
)

func Setup(cfg config.Config, hub *socket.Hub) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger)

	roomService := service.NewRoomService(hub)
	rooms := roomHandler.NewRoomHandler(roomService)
	seedAuth := middleware.SeedAuth(cfg.SeedJWTSecret)

	r.Handle("/rooms", seedAuth(http.HandlerFunc(rooms.CreateRoom))).Methods(http.MethodPost)
	r.HandleFunc("/rooms", rooms.MethodNotAllowed)
	r.Handle("/rooms/{roomId}", seedAuth(http.HandlerFunc(rooms.CreateRoom))).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{roomId}/presence", rooms.GetPresence).Methods(http.MethodGet)
	// GET is the list fetch or, with an Upgrade header, the WebSocket endpoint.
	r.HandleFunc("/rooms/{roomId}", rooms.Room)
	r.HandleFunc("/live/{roomId}", rooms.ShareRedirect).Methods(http.MethodGet)

	return middleware.CORS(cfg.AllowedOrigin)(r)
}
