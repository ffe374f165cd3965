package handler

import (
	"net/http"
	"strings"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/ws"
	"github.com/damoang/angple-messenger/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// DefaultMaxConnsPerUser bounds open inbox sockets per user (tabs, devices)
const DefaultMaxConnsPerUser = 5

// WSHandler upgrades inbox event sockets
type WSHandler struct {
	hub            *ws.Hub
	allowedOrigins []string
	maxPerUser     int
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. allowedOrigins is the comma separated CORS list.
func NewWSHandler(hub *ws.Hub, allowedOrigins string) *WSHandler {
	h := &WSHandler{
		hub:            hub,
		allowedOrigins: splitOrigins(allowedOrigins),
		maxPerUser:     DefaultMaxConnsPerUser,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// SetMaxConnsPerUser overrides the per-user socket cap; n < 1 disables it
func (h *WSHandler) SetMaxConnsPerUser(n int) {
	h.maxPerUser = n
}

func splitOrigins(origins string) []string {
	var result []string
	for _, p := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// checkOrigin accepts requests without Origin, any origin when none are configured,
// and otherwise only listed origins ("*" matches all)
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

// Connect handles GET /ws/inbox (WebSocket upgrade). Pushes unread_count,
// tab_changed, message and messages_read events for the authenticated user.
// @Summary 실시간 inbox 이벤트 WebSocket
// @Tags inbox
// @Param token query string false "access token (Authorization 헤더 대신)"
// @Failure 401 {object} common.APIResponse
// @Failure 429 {object} common.APIResponse
// @Router /ws/inbox [get]
func (h *WSHandler) Connect(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "로그인이 필요합니다", nil)
		return
	}
	if h.maxPerUser > 0 && h.hub.ConnectionCount(userID) >= h.maxPerUser {
		common.ErrorResponse(c, http.StatusTooManyRequests, "동시 접속 수를 초과했습니다", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 가 이미 에러 응답을 썼다
		logger.GetLogger().Debug().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, userID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
