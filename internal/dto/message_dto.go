package dto

import "github.com/glowsync/glowsync-backend/internal/models"

type SendMessageRequest struct {
	ReceiverID  string              `json:"receiverId"`
	CampaignID  string              `json:"campaignId"`
	Content     string              `json:"content"`
	Attachments []models.Attachment `json:"attachments"`
}
