package handler

import (
	"net/http"
	"strconv"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/gin-gonic/gin"
)

// InboxHandler handles conversation HTTP requests
type InboxHandler struct {
	inboxes *service.InboxService
	sync    *service.SyncService
	unread  *service.UnreadService
	search  *service.SearchService
	ledger  *service.NotificationLedgerService
}

// NewInboxHandler creates a new InboxHandler
func NewInboxHandler(
	inboxes *service.InboxService,
	syncSvc *service.SyncService,
	unread *service.UnreadService,
	search *service.SearchService,
	ledger *service.NotificationLedgerService,
) *InboxHandler {
	return &InboxHandler{
		inboxes: inboxes,
		sync:    syncSvc,
		unread:  unread,
		search:  search,
		ledger:  ledger,
	}
}

// StatusResponse is returned after an explicit status change
type StatusResponse struct {
	ID      uint64               `json:"id"`
	Status  domain.InboxStatus   `json:"status"`
	Label   string               `json:"label"`
	Color   string               `json:"color"`
	Actions []domain.InboxStatus `json:"actions"`
}

// SendResponse is returned after a message is sent
type SendResponse struct {
	InboxID       uint64                 `json:"inbox_id"`
	Status        domain.InboxStatus     `json:"status"`
	StatusChanged bool                   `json:"status_changed"`
	Message       domain.MessageResponse `json:"message"`
}

func viewerOrAbort(c *gin.Context) (domain.Viewer, bool) {
	viewer := middleware.GetViewer(c)
	if viewer.ID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "로그인이 필요합니다", nil)
		return viewer, false
	}
	return viewer, true
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		common.ErrorResponse(c, http.StatusBadRequest, "잘못된 ID 입니다", err)
		return 0, false
	}
	return id, true
}

// ListConversations handles GET /inbox/conversations
// @Summary 대화 목록 (탭별)
// @Tags inbox
// @Produce json
// @Param tab query string false "new | sent | in_progress | treated"
// @Param page query int false "페이지"
// @Success 200 {object} common.APIResponse{data=[]domain.InboxItem}
// @Router /inbox/conversations [get]
func (h *InboxHandler) ListConversations(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}

	tab := domain.ParseTab(c.Query("tab"))
	page := 1
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}

	list, err := h.inboxes.ListInboxes(c.Request.Context(), viewer, tab, page)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.SuccessResponse(c, list.Items, &common.Meta{
		Tab:     string(list.Tab),
		Page:    list.Page,
		Limit:   list.PerPage,
		Total:   list.Total,
		HasMore: list.HasMore,
	})
}

// CreateConversation handles POST /inbox/conversations
// @Summary 대화 시작
// @Tags inbox
// @Accept json
// @Produce json
// @Param request body domain.CreateInboxRequest true "제목, 받는 사람, 첫 메시지"
// @Success 201 {object} common.APIResponse{data=domain.InboxDetailResponse}
// @Router /inbox/conversations [post]
func (h *InboxHandler) CreateConversation(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}

	var req domain.CreateInboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", err)
		return
	}

	inbox, _, err := h.inboxes.CreateInbox(c.Request.Context(), viewer, &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	detail, err := h.sync.Open(c.Request.Context(), viewer, inbox.ID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.CreatedResponse(c, detail)
}

// GetConversation handles GET /inbox/conversations/:id
// @Summary 대화 열기 (읽음 처리 포함)
// @Tags inbox
// @Produce json
// @Param id path int true "대화 ID"
// @Success 200 {object} common.APIResponse{data=domain.InboxDetailResponse}
// @Router /inbox/conversations/{id} [get]
func (h *InboxHandler) GetConversation(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	detail, err := h.sync.Open(c.Request.Context(), viewer, id)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, detail, nil)
}

// DeleteConversation handles DELETE /inbox/conversations/:id
// @Summary 대화 삭제
// @Tags inbox
// @Param id path int true "대화 ID"
// @Success 204
// @Router /inbox/conversations/{id} [delete]
func (h *InboxHandler) DeleteConversation(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.inboxes.DeleteInbox(c.Request.Context(), viewer, id); err != nil {
		common.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SendMessage handles POST /inbox/conversations/:id/messages
// @Summary 메시지 보내기
// @Tags inbox
// @Accept json
// @Produce json
// @Param id path int true "대화 ID"
// @Param request body domain.SendMessageRequest true "본문, 첨부"
// @Success 201 {object} common.APIResponse{data=SendResponse}
// @Router /inbox/conversations/{id}/messages [post]
func (h *InboxHandler) SendMessage(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", err)
		return
	}

	result, err := h.inboxes.SendMessage(c.Request.Context(), viewer, id, &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	msg := result.Message.ToResponse(viewer.ID)
	msg.SenderName = viewer.Name
	common.CreatedResponse(c, SendResponse{
		InboxID:       result.Inbox.ID,
		Status:        result.Inbox.Status,
		StatusChanged: result.StatusChanged,
		Message:       *msg,
	})
}

// PollMessages handles GET /inbox/conversations/:id/messages/poll
// @Summary 새 메시지 조회 (읽음 처리 포함)
// @Tags inbox
// @Produce json
// @Param id path int true "대화 ID"
// @Param after query int false "마지막으로 받은 메시지 ID"
// @Success 200 {object} common.APIResponse{data=service.PollResult}
// @Router /inbox/conversations/{id}/messages/poll [get]
func (h *InboxHandler) PollMessages(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var after uint64
	if v := c.Query("after"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "잘못된 커서입니다", err)
			return
		}
		after = parsed
	}

	window := domain.ResumeWindow(domain.Cursor{ID: after}, domain.Cursor{}, true)
	result, err := h.sync.Poll(c.Request.Context(), viewer, id, window)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, result, nil)
}

// LoadOlderMessages handles GET /inbox/conversations/:id/messages/older
// @Summary 이전 메시지 조회
// @Tags inbox
// @Produce json
// @Param id path int true "대화 ID"
// @Param cursor query string false "backward cursor"
// @Param limit query int false "페이지 크기 (최대 50)"
// @Success 200 {object} common.APIResponse{data=service.HistoryResult}
// @Router /inbox/conversations/{id}/messages/older [get]
func (h *InboxHandler) LoadOlderMessages(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	cursor, err := domain.DecodeCursor(c.Query("cursor"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "잘못된 커서입니다", err)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	window := domain.ResumeWindow(domain.Cursor{}, cursor, true)
	result, err := h.sync.LoadOlder(c.Request.Context(), viewer, id, window, limit)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, result, &common.Meta{HasMore: result.HasMore, NextCursor: result.BackwardCursor})
}

// MarkRead handles POST /inbox/conversations/:id/read
// @Summary 읽음 처리
// @Tags inbox
// @Produce json
// @Param id path int true "대화 ID"
// @Success 200 {object} common.APIResponse
// @Router /inbox/conversations/{id}/read [post]
func (h *InboxHandler) MarkRead(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	marked, err := h.sync.MarkRead(c.Request.Context(), viewer, id)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"marked": marked}, nil)
}

// ChangeStatus handles PUT /inbox/conversations/:id/status
// @Summary 상태 변경
// @Tags inbox
// @Accept json
// @Produce json
// @Param id path int true "대화 ID"
// @Param request body domain.ChangeStatusRequest true "in_progress | treated"
// @Success 200 {object} common.APIResponse{data=StatusResponse}
// @Router /inbox/conversations/{id}/status [put]
func (h *InboxHandler) ChangeStatus(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req domain.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다", err)
		return
	}
	if !req.Status.Valid() {
		common.ErrorResponse(c, http.StatusBadRequest, "알 수 없는 상태입니다", nil)
		return
	}

	inbox, err := h.inboxes.ChangeStatus(c.Request.Context(), viewer, id, req.Status)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, StatusResponse{
		ID:      inbox.ID,
		Status:  inbox.Status,
		Label:   inbox.Status.Label(),
		Color:   inbox.Status.Color(),
		Actions: h.inboxes.AvailableActions(c.Request.Context(), viewer, inbox.Status),
	}, nil)
}

// UnreadCounts handles GET /inbox/unread-counts
// @Summary 탭별 안 읽은 대화 수
// @Tags inbox
// @Produce json
// @Success 200 {object} common.APIResponse{data=domain.TabCounts}
// @Router /inbox/unread-counts [get]
func (h *InboxHandler) UnreadCounts(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}

	counts, err := h.unread.Counts(c.Request.Context(), viewer)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, counts, nil)
}

// Search handles GET /inbox/search
// @Summary 메시지 검색
// @Tags inbox
// @Produce json
// @Param q query string true "검색어"
// @Success 200 {object} common.APIResponse{data=[]service.SearchHit}
// @Router /inbox/search [get]
func (h *InboxHandler) Search(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}

	hits, err := h.search.Search(c.Request.Context(), viewer, c.Query("q"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, hits, nil)
}

// SearchUsers handles GET /inbox/users
// @Summary 받는 사람 검색 (이름)
// @Tags inbox
// @Produce json
// @Param q query string true "이름 일부"
// @Success 200 {object} common.APIResponse{data=[]domain.UserSummary}
// @Router /inbox/users [get]
func (h *InboxHandler) SearchUsers(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}

	users, err := h.inboxes.FindRecipients(c.Request.Context(), viewer, c.Query("q"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, users, nil)
}

// PendingNotifications handles GET /inbox/notifications/pending
// @Summary 아직 알림되지 않은 메시지
// @Tags inbox
// @Produce json
// @Param limit query int false "최대 개수"
// @Success 200 {object} common.APIResponse{data=[]domain.MessageResponse}
// @Router /inbox/notifications/pending [get]
func (h *InboxHandler) PendingNotifications(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	pending, err := h.ledger.Pending(c.Request.Context(), viewer.ID, limit)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, pending, nil)
}

// MarkNotified handles POST /inbox/messages/:id/notified
// @Summary 알림 발송 기록
// @Tags inbox
// @Produce json
// @Param id path int true "메시지 ID"
// @Success 200 {object} common.APIResponse
// @Router /inbox/messages/{id}/notified [post]
func (h *InboxHandler) MarkNotified(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	created, err := h.ledger.MarkNotified(c.Request.Context(), viewer.ID, id)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"message_id": id, "created": created}, nil)
}
