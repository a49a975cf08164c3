package dto

import (
	"github.com/glowsync/glowsync-backend/internal/models"
	"github.com/google/uuid"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	UserType string `json:"userType"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyOTPRequest struct {
	UserID   string `json:"userId"`
	OTP      string `json:"otp"`
	Password string `json:"password"`
}

type ResendOTPRequest struct {
	UserID string `json:"userId"`
}

// UpdateProfileRequest is decoded strictly: any other field is rejected.
type UpdateProfileRequest struct {
	Name           *string `json:"name"`
	ProfilePicture *string `json:"profilePicture"`
}

// PendingVerificationResponse tells the client to collect an OTP next.
type PendingVerificationResponse struct {
	Message              string    `json:"message"`
	RequiresVerification bool      `json:"requiresVerification"`
	UserID               uuid.UUID `json:"userId"`
	Email                string    `json:"email"`
	RequiresPassword     bool      `json:"requiresPassword"`
}

type SessionResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    SessionUser `json:"user"`
}

type SessionUser struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	UserType         string    `json:"userType"`
	ProfilePicture   string    `json:"profilePicture,omitempty"`
	IsVerified       bool      `json:"isVerified"`
	RequiresPassword bool      `json:"requiresPassword"`
}

func NewSessionUser(i *models.Identity) SessionUser {
	return SessionUser{
		ID:               i.ID,
		Name:             i.Name,
		Email:            i.Email,
		UserType:         i.UserType,
		ProfilePicture:   i.ProfilePicture,
		IsVerified:       i.IsVerified,
		RequiresPassword: i.RequiresPassword(),
	}
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp"`
	DB              string `json:"db"`
	RealtimeClients int    `json:"realtimeClients"`
}
