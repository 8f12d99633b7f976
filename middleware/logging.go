package middleware

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/websocket"

	"livelist/pkg/logger"
)

// RequestLogger logs method, path, status and duration of each request.
// WebSocket upgrades are logged when they start, since they run until the
// connection closes.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			logger.Sugar.Infow("upgrade", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}
		m := httpsnoop.CaptureMetrics(next, w, r)
		logger.Sugar.Infow("handled", "method", r.Method, "path", r.URL.Path, "status", m.Code, "duration", m.Duration)
	})
}
