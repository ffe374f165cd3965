package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSHandler_CheckOrigin(t *testing.T) {
	h := NewWSHandler(nil, "https://damoang.net, http://localhost:5173")

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://damoang.net", true},
		{"http://localhost:5173", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws/inbox", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, h.checkOrigin(req), tt.origin)
	}

	assert.True(t, NewWSHandler(nil, "*").checkOrigin(func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/ws/inbox", nil)
		req.Header.Set("Origin", "https://anything.example")
		return req
	}()))
}

func TestWSHandler_Connect(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := ws.NewHub(nil, zerolog.Nop())
	go hub.Run()
	defer hub.Stop()

	h := NewWSHandler(hub, "")
	h.SetMaxConnsPerUser(1)

	serve := func(userID string) *httptest.ResponseRecorder {
		r := gin.New()
		r.GET("/ws/inbox", func(c *gin.Context) {
			if userID != "" {
				c.Set("userID", userID)
			}
			c.Next()
		}, h.Connect)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/inbox", nil))
		return w
	}

	t.Run("anonymous", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("").Code)
	})

	t.Run("over the per-user cap", func(t *testing.T) {
		hub.Register(ws.NewClient(hub, nil, "alice"))
		require.Eventually(t, func() bool { return hub.ConnectionCount("alice") == 1 }, time.Second, 10*time.Millisecond)
		assert.Equal(t, http.StatusTooManyRequests, serve("alice").Code)
	})

	t.Run("plain http is not upgraded", func(t *testing.T) {
		// Upgrade 실패 시 gorilla 가 400 을 쓴다
		assert.Equal(t, http.StatusBadRequest, serve("bob").Code)
	})
}
