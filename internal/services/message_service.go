package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/glowsync/glowsync-backend/internal/metrics"
	"github.com/glowsync/glowsync-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxAttachments = 10

// SendInput is a message as submitted by its sender.
type SendInput struct {
	SenderID    uuid.UUID
	ReceiverID  uuid.UUID
	CampaignID  *uuid.UUID
	Content     string
	Attachments []models.Attachment
}

// MessageService is the append-only message store. Only read state ever changes
// after insert.
type MessageService struct {
	db      *gorm.DB
	metrics metrics.Recorder

	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func NewMessageService(db *gorm.DB, rec metrics.Recorder) *MessageService {
	return &MessageService{
		db:      db,
		metrics: rec,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *MessageService) WithClock(now func() time.Time) *MessageService {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

// stamp returns a creation time at storage precision that is strictly later than
// any stamp handed out before, so ascending created_at is insertion order.
func (s *MessageService) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *MessageService) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	if in.ReceiverID == uuid.Nil {
		return nil, invalid("Receiver is required")
	}
	if in.SenderID == in.ReceiverID {
		return nil, ErrSelfMessage
	}
	// Stored as submitted; escaping is the renderer's job.
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	attachments, err := cleanAttachments(in.Attachments)
	if err != nil {
		return nil, err
	}

	var receiver models.Identity
	if err := s.db.WithContext(ctx).Select("id").First(&receiver, "id = ?", in.ReceiverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReceiverNotFound
		}
		return nil, fmt.Errorf("failed to load receiver: %w", err)
	}

	msg := models.Message{
		ID:          uuid.New(),
		SenderID:    in.SenderID,
		ReceiverID:  in.ReceiverID,
		CampaignID:  in.CampaignID,
		Content:     content,
		Attachments: datatypes.NewJSONSlice(attachments),
		IsRead:      false,
		CreatedAt:   s.stamp(),
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	s.metrics.RecordMessageSent()
	return &msg, nil
}

// Thread returns every message between viewer and other, oldest first, and marks
// the ones other sent to viewer as read. The returned records already carry the
// new read state.
func (s *MessageService) Thread(ctx context.Context, viewer, other uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", viewer, other, other, viewer).
			Order("created_at ASC").
			Order("id ASC").
			Find(&messages).Error; err != nil {
			return fmt.Errorf("failed to load thread: %w", err)
		}

		var unread []uuid.UUID
		for _, m := range messages {
			if m.ReceiverID == viewer && !m.IsRead {
				unread = append(unread, m.ID)
			}
		}
		if len(unread) == 0 {
			return nil
		}

		readAt := s.now().UTC()
		if err := tx.Model(&models.Message{}).
			Where("id IN ? AND is_read = ?", unread, false).
			UpdateColumns(map[string]interface{}{"is_read": true, "read_at": readAt}).Error; err != nil {
			return fmt.Errorf("failed to mark thread read: %w", err)
		}
		for i := range messages {
			if messages[i].ReceiverID == viewer && !messages[i].IsRead {
				messages[i].IsRead = true
				messages[i].ReadAt = &readAt
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range messages {
		if messages[i].Attachments == nil {
			messages[i].Attachments = datatypes.JSONSlice[models.Attachment]{}
		}
	}
	return messages, nil
}

func cleanAttachments(in []models.Attachment) ([]models.Attachment, error) {
	if len(in) > maxAttachments {
		return nil, invalid(fmt.Sprintf("At most %d attachments are allowed", maxAttachments))
	}
	out := make([]models.Attachment, 0, len(in))
	for _, a := range in {
		link, ok := webURL(a.URL)
		if !ok {
			return nil, invalid("Attachment URL must be an absolute http(s) URL")
		}
		out = append(out, models.Attachment{Type: strings.TrimSpace(a.Type), URL: link})
	}
	return out, nil
}

// webURL normalizes raw and reports whether it is an absolute http(s) URL.
func webURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return u.String(), true
}
