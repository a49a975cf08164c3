package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/glowsync/glowsync-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Conversation is the rollup for one counterparty. It is derived on every call,
// never stored.
type Conversation struct {
	CounterpartyID uuid.UUID      `json:"_id"`
	LastMessage    models.Message `json:"lastMessage"`
	UnreadCount    int            `json:"unreadCount"`
}

type ConversationService struct {
	db *gorm.DB
}

func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{db: db}
}

// List returns one entry per counterparty the user has exchanged messages with,
// most recent conversation first.
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) ([]Conversation, error) {
	var messages []models.Message
	if err := s.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	index := make(map[uuid.UUID]int)
	conversations := make([]Conversation, 0)
	for _, m := range messages {
		other := m.Counterparty(userID)
		i, ok := index[other]
		if !ok {
			if m.Attachments == nil {
				m.Attachments = datatypes.JSONSlice[models.Attachment]{}
			}
			i = len(conversations)
			index[other] = i
			conversations = append(conversations, Conversation{CounterpartyID: other, LastMessage: m})
		}
		if m.ReceiverID == userID && !m.IsRead {
			conversations[i].UnreadCount++
		}
	}

	sort.SliceStable(conversations, func(a, b int) bool {
		return conversations[a].LastMessage.CreatedAt.After(conversations[b].LastMessage.CreatedAt)
	})
	return conversations, nil
}
