package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glowsync/glowsync-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OAuthLinker reconciles a provider-asserted identity with local identities.
type OAuthLinker struct {
	db         *gorm.DB
	identities *IdentityService
	now        func() time.Time
}

func NewOAuthLinker(db *gorm.DB, identities *IdentityService) *OAuthLinker {
	return &OAuthLinker{db: db, identities: identities, now: time.Now}
}

// Resolve returns the identity for a provider profile, in order:
//  1. an identity already linked to the provider id (avatar refreshed if one is asserted);
//  2. an identity with the asserted email, which gets the provider id and is forced verified;
//  3. a new unverified influencer identity.
//
// Case 2 verifies immediately while case 3 still routes through an OTP round-trip.
// That asymmetry is kept for compatibility with existing clients.
func (l *OAuthLinker) Resolve(ctx context.Context, p *ProviderProfile) (*models.Identity, error) {
	if p == nil || p.ProviderID == "" || p.Email == "" {
		return nil, invalid("Provider profile is incomplete")
	}
	email := NormalizeEmail(p.Email)

	var identity *models.Identity
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		identity, err = l.resolve(tx, p, email)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrGoogleIDTaken
		}
		return nil, err
	}
	return identity, nil
}

func (l *OAuthLinker) resolve(tx *gorm.DB, p *ProviderProfile, email string) (*models.Identity, error) {
	var existing models.Identity
	err := tx.Where("google_id = ?", p.ProviderID).First(&existing).Error
	if err == nil {
		if p.AvatarURL != "" && p.AvatarURL != existing.ProfilePicture {
			if err := tx.Model(&existing).Update("profile_picture", p.AvatarURL).Error; err != nil {
				return nil, fmt.Errorf("failed to refresh avatar: %w", err)
			}
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up provider id: %w", err)
	}

	err = tx.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return l.link(tx, &existing, p)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}

	providerID := p.ProviderID
	identity := models.Identity{
		ID:             uuid.New(),
		Email:          email,
		Name:           l.identities.displayName(p.Name, email),
		UserType:       models.RoleInfluencer,
		GoogleID:       &providerID,
		ProfilePicture: p.AvatarURL,
		IsVerified:     false,
		IsActive:       true,
	}
	if err := tx.Create(&identity).Error; err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}
	return &identity, nil
}

// link attaches the provider id to an email-matched identity and marks it verified,
// since the provider vouches for the address.
func (l *OAuthLinker) link(tx *gorm.DB, identity *models.Identity, p *ProviderProfile) (*models.Identity, error) {
	providerID := p.ProviderID
	changes := map[string]interface{}{
		"google_id":   providerID,
		"is_verified": true,
	}
	if p.AvatarURL != "" {
		changes["profile_picture"] = p.AvatarURL
	}
	if identity.VerifiedAt == nil {
		changes["verified_at"] = l.now().UTC()
	}

	if err := tx.Model(&models.Identity{}).Where("id = ?", identity.ID).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("failed to link provider: %w", err)
	}

	var linked models.Identity
	if err := tx.First(&linked, "id = ?", identity.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload identity: %w", err)
	}
	return &linked, nil
}
