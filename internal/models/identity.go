package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleInfluencer = "influencer"
	RoleBrand      = "brand"
	RoleAdmin      = "admin"
)

// Identity is one account, however it authenticates (local password, Google, or both).
type Identity struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"_id"`
	Email          string     `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Name           string     `gorm:"size:255" json:"name"`
	PasswordHash   string     `gorm:"size:255" json:"-"`
	UserType       string     `gorm:"size:20;not null" json:"userType"`
	GoogleID       *string    `gorm:"size:255;uniqueIndex" json:"googleId,omitempty"`
	ProfilePicture string     `gorm:"type:text" json:"profilePicture,omitempty"`
	IsVerified     bool       `gorm:"not null;default:false" json:"isVerified"`
	VerifiedAt     *time.Time `json:"verifiedAt,omitempty"`
	OTPCode        string     `gorm:"size:6" json:"-"`
	OTPExpiresAt   *time.Time `json:"-"`
	IsActive       bool       `gorm:"not null;default:true" json:"isActive"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (Identity) TableName() string {
	return "identities"
}

func (i *Identity) HasPassword() bool {
	return i.PasswordHash != ""
}

func (i *Identity) IsGoogleLinked() bool {
	return i.GoogleID != nil && *i.GoogleID != ""
}

// RequiresPassword reports whether verification must also collect a local password.
func (i *Identity) RequiresPassword() bool {
	return !i.IsGoogleLinked() && !i.HasPassword()
}
