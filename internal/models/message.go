package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Attachment struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Message is a directed note between two identities. Only IsRead/ReadAt ever change after insert.
type Message struct {
	ID          uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"_id"`
	SenderID    uuid.UUID                       `gorm:"type:uuid;not null;index:idx_messages_pair" json:"senderId"`
	ReceiverID  uuid.UUID                       `gorm:"type:uuid;not null;index:idx_messages_pair" json:"receiverId"`
	CampaignID  *uuid.UUID                      `gorm:"type:uuid;index" json:"campaignId,omitempty"`
	Content     string                          `gorm:"type:text;not null" json:"content"`
	Attachments datatypes.JSONSlice[Attachment] `json:"attachments"`
	IsRead      bool                            `gorm:"not null;default:false;index" json:"isRead"`
	ReadAt      *time.Time                      `json:"readAt,omitempty"`
	CreatedAt   time.Time                       `gorm:"not null;index" json:"createdAt"`
}

// Counterparty returns the other participant from the point of view of userID.
func (m *Message) Counterparty(userID uuid.UUID) uuid.UUID {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
