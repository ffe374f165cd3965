package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DateTimeFormat is used for timestamps in API responses
const DateTimeFormat = "2006-01-02 15:04:05"

// Attachment is an opaque reference to a file held by the media storage
type Attachment struct {
	Key      string `json:"key"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Message represents a message inside a conversation (messages table)
type Message struct {
	ID          uint64                         `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	InboxID     uint64                         `gorm:"column:inbox_id;not null;index:idx_messages_inbox_created,priority:1" json:"inbox_id"`
	SenderID    string                         `gorm:"column:sender_id;size:64;not null;index" json:"sender_id"`
	Body        *string                        `gorm:"column:body;type:text" json:"body,omitempty"`
	Attachments datatypes.JSONSlice[Attachment] `gorm:"column:attachments" json:"attachments,omitempty"`
	CreatedAt   time.Time                      `gorm:"column:created_at;index:idx_messages_inbox_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time                      `gorm:"column:updated_at" json:"updated_at"`
	DeletedAt   gorm.DeletedAt                 `gorm:"column:deleted_at;index" json:"-"`

	ReadReceipts  []ReadReceipt         `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
	Notifications []MessageNotification `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name
func (Message) TableName() string {
	return "messages"
}

// ReadBy returns reader ids in receipt order
func (m *Message) ReadBy() []string {
	ids := make([]string, 0, len(m.ReadReceipts))
	for _, r := range m.ReadReceipts {
		ids = append(ids, r.ReaderID)
	}
	return ids
}

// ReadAt returns read timestamps aligned with ReadBy
func (m *Message) ReadAt() []time.Time {
	times := make([]time.Time, 0, len(m.ReadReceipts))
	for _, r := range m.ReadReceipts {
		times = append(times, r.ReadAt)
	}
	return times
}

// IsReadBy reports whether the user has a receipt for the message
func (m *Message) IsReadBy(userID string) bool {
	for _, r := range m.ReadReceipts {
		if r.ReaderID == userID {
			return true
		}
	}
	return false
}

// NotifiedUserIDs returns users already notified about the message
func (m *Message) NotifiedUserIDs() []string {
	ids := make([]string, 0, len(m.Notifications))
	for _, n := range m.Notifications {
		ids = append(ids, n.UserID)
	}
	return ids
}

// Cursor returns the message position in (created_at, id) order
func (m *Message) Cursor() Cursor {
	return Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// ReadReceipt records that a reader has seen a message (message_reads table).
// The composite primary key keeps a reader at most once per message.
type ReadReceipt struct {
	MessageID uint64    `gorm:"column:message_id;primaryKey;autoIncrement:false" json:"message_id"`
	ReaderID  string    `gorm:"column:reader_id;primaryKey;size:64;index" json:"reader_id"`
	ReadAt    time.Time `gorm:"column:read_at;not null" json:"read_at"`
}

// TableName returns the table name
func (ReadReceipt) TableName() string {
	return "message_reads"
}

// MessageNotification records that a user was notified about a message (message_notifications table)
type MessageNotification struct {
	MessageID  uint64    `gorm:"column:message_id;primaryKey;autoIncrement:false" json:"message_id"`
	UserID     string    `gorm:"column:user_id;primaryKey;size:64;index" json:"user_id"`
	NotifiedAt time.Time `gorm:"column:notified_at;not null" json:"notified_at"`
}

// TableName returns the table name
func (MessageNotification) TableName() string {
	return "message_notifications"
}

// SendMessageRequest represents a reply into an existing conversation
type SendMessageRequest struct {
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments"`
}

// IsEmpty reports whether the request carries neither text nor files
func (r *SendMessageRequest) IsEmpty() bool {
	return r.Body == "" && len(r.Attachments) == 0
}

// AttachmentResponse is an attachment with a resolved download URL
type AttachmentResponse struct {
	Attachment
	URL string `json:"url,omitempty"`
}

// MessageResponse represents a message in API responses
type MessageResponse struct {
	ID          uint64               `json:"id"`
	InboxID     uint64               `json:"inbox_id"`
	SenderID    string               `json:"sender_id"`
	SenderName  string               `json:"sender_name,omitempty"`
	Body        string               `json:"body"`
	Attachments []AttachmentResponse `json:"attachments,omitempty"`
	IsMine      bool                 `json:"is_mine"`
	IsRead      bool                 `json:"is_read"`
	ReadBy      []string             `json:"read_by"`
	NotifiedTo  []string             `json:"notified_to,omitempty"`
	CreatedAt   string               `json:"created_at"`
}

// ToResponse converts Message to MessageResponse for the viewer
func (m *Message) ToResponse(viewerID string) *MessageResponse {
	resp := &MessageResponse{
		ID:        m.ID,
		InboxID:   m.InboxID,
		SenderID:  m.SenderID,
		IsMine:    m.SenderID == viewerID,
		IsRead:    m.IsReadBy(viewerID),
		ReadBy:    m.ReadBy(),
		CreatedAt: m.CreatedAt.Format(DateTimeFormat),
	}
	if m.Body != nil {
		resp.Body = *m.Body
	}
	for _, a := range m.Attachments {
		resp.Attachments = append(resp.Attachments, AttachmentResponse{Attachment: a})
	}
	return resp
}
