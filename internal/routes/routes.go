package routes

import (
	"net/http"

	"github.com/damoang/angple-messenger/internal/handler"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Setup configures the inbox API under /api/v1/inbox
func Setup(
	router *gin.Engine,
	inboxHandler *handler.InboxHandler,
	wsHandler *handler.WSHandler,
	jwtManager *jwt.Manager,
	redisClient *redis.Client,
) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1", middleware.JWTAuth(jwtManager))

	inbox := api.Group("/inbox")
	writeLimit := middleware.RateLimitPerUser(redisClient, middleware.DefaultRateLimitConfig())

	conversations := inbox.Group("/conversations")
	{
		conversations.GET("", inboxHandler.ListConversations)
		conversations.POST("", writeLimit, inboxHandler.CreateConversation)
		conversations.GET("/:id", inboxHandler.GetConversation)
		conversations.DELETE("/:id", inboxHandler.DeleteConversation)

		// 메시지 동기화
		conversations.POST("/:id/messages", writeLimit, inboxHandler.SendMessage)
		conversations.GET("/:id/messages/poll", inboxHandler.PollMessages)
		conversations.GET("/:id/messages/older", inboxHandler.LoadOlderMessages)
		conversations.POST("/:id/read", inboxHandler.MarkRead)

		conversations.PUT("/:id/status", inboxHandler.ChangeStatus)
	}

	inbox.GET("/unread-counts", inboxHandler.UnreadCounts)
	inbox.GET("/search", inboxHandler.Search)
	inbox.GET("/users", inboxHandler.SearchUsers)

	// 외부 알림 발송기용
	inbox.GET("/notifications/pending", inboxHandler.PendingNotifications)
	inbox.POST("/messages/:id/notified", inboxHandler.MarkNotified)

	if wsHandler != nil {
		router.GET("/ws/inbox", middleware.JWTAuth(jwtManager), wsHandler.Connect)
	}
}
