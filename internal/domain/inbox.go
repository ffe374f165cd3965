package domain

import (
	"time"

	"gorm.io/gorm"
)

// UntitledInbox is shown when neither a title nor a participant name is available
const UntitledInbox = "Untitled"

// Inbox represents a conversation between a creator and a recipient (inboxes table)
// RecipientID is nil for unassigned/system conversations.
type Inbox struct {
	ID          uint64         `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title       *string        `gorm:"column:title;size:255" json:"title,omitempty"`
	CreatorID   string         `gorm:"column:creator_id;size:64;not null;index" json:"creator_id"`
	RecipientID *string        `gorm:"column:recipient_id;size:64;index" json:"recipient_id,omitempty"`
	Status      InboxStatus    `gorm:"column:status;size:32;not null;default:message;index" json:"status"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;index" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`

	Messages []Message `gorm:"foreignKey:InboxID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name
func (Inbox) TableName() string {
	return "inboxes"
}

// IsCreator reports whether the viewer started the conversation
func (i *Inbox) IsCreator(viewerID string) bool {
	return i.CreatorID == viewerID
}

// IsParticipant reports whether the viewer is the creator or the recipient
func (i *Inbox) IsParticipant(viewerID string) bool {
	if viewerID == "" {
		return false
	}
	if i.CreatorID == viewerID {
		return true
	}
	return i.RecipientID != nil && *i.RecipientID == viewerID
}

// CounterpartID returns the other participant from the viewer's perspective.
// Empty when the conversation has no recipient and the viewer is the creator.
func (i *Inbox) CounterpartID(viewerID string) string {
	if i.CreatorID == viewerID {
		if i.RecipientID == nil {
			return ""
		}
		return *i.RecipientID
	}
	return i.CreatorID
}

// ParticipantIDs returns creator and (if any) recipient
func (i *Inbox) ParticipantIDs() []string {
	ids := []string{i.CreatorID}
	if i.RecipientID != nil && *i.RecipientID != "" && *i.RecipientID != i.CreatorID {
		ids = append(ids, *i.RecipientID)
	}
	return ids
}

// DisplayTitle resolves the title shown to the viewer.
// names maps user ids to display names (missing entries are treated as unknown).
func (i *Inbox) DisplayTitle(viewerID string, names map[string]string) string {
	if i.Title != nil && *i.Title != "" {
		return *i.Title
	}
	if i.CreatorID == viewerID && i.RecipientID != nil {
		if name := names[*i.RecipientID]; name != "" {
			return name
		}
	}
	if i.CreatorID != "" {
		if name := names[i.CreatorID]; name != "" {
			return name
		}
	}
	return UntitledInbox
}

// CreateInboxRequest represents a new conversation request
type CreateInboxRequest struct {
	Title       string       `json:"title" binding:"required"`
	RecipientID string       `json:"recipient_id" binding:"required"`
	Message     string       `json:"message"`
	Attachments []Attachment `json:"attachments"`
}

// ChangeStatusRequest represents an explicit status transition request
type ChangeStatusRequest struct {
	Status InboxStatus `json:"status" binding:"required"`
}

// InboxItem represents a conversation row in the inbox list
type InboxItem struct {
	ID            uint64           `json:"id"`
	Title         string           `json:"title"`
	Status        InboxStatus      `json:"status"`
	Tab           Tab              `json:"tab"`
	DisplayLabel  string           `json:"display_label"`
	DisplayColor  string           `json:"display_color"`
	CounterpartID string           `json:"counterpart_id,omitempty"`
	HasUnread     bool             `json:"has_unread"`
	LastMessage   *MessageResponse `json:"last_message,omitempty"`
	UpdatedAt     string           `json:"updated_at"`
}

// InboxListResponse represents a page of conversations for one tab
type InboxListResponse struct {
	Items   []InboxItem `json:"items"`
	Tab     Tab         `json:"tab"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
	Total   int64       `json:"total"`
	HasMore bool        `json:"has_more"`
}

// InboxDetailResponse represents an opened conversation
type InboxDetailResponse struct {
	ID             uint64            `json:"id"`
	Title          string            `json:"title"`
	Status         InboxStatus       `json:"status"`
	StatusLabel    string            `json:"status_label"`
	StatusColor    string            `json:"status_color"`
	Tab            Tab               `json:"tab"`
	DisplayLabel   string            `json:"display_label"`
	DisplayColor   string            `json:"display_color"`
	CreatorID      string            `json:"creator_id"`
	RecipientID    *string           `json:"recipient_id,omitempty"`
	CounterpartID  string            `json:"counterpart_id,omitempty"`
	Actions        []InboxStatus     `json:"actions"`
	Messages       []MessageResponse `json:"messages"`
	ForwardCursor  uint64            `json:"forward_cursor"`
	BackwardCursor string            `json:"backward_cursor,omitempty"`
	HasMore        bool              `json:"has_more"`
	PollInterval   int64             `json:"poll_interval_ms"`
	MarkedRead     int64             `json:"marked_read"`
}
