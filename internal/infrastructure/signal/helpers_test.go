package signal

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func httpHandler(s *WebSocketServer) http.Handler {
	return http.HandlerFunc(s.HandleWebSocket)
}

func contextWithTimeout(t *testing.T, d time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

func requestWithOrigin(origin string) *http.Request {
	req, _ := http.NewRequest(http.MethodGet, "http://localhost/ws", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}
