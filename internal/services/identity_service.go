package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"strings"
	"time"

	"github.com/glowsync/glowsync-backend/internal/models"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

// IdentityService owns identity rows: creation, credentials and verification state.
type IdentityService struct {
	db         *gorm.DB
	otp        *OTPService
	now        func() time.Time
	bcryptCost int
	strip      *bluemonday.Policy
}

func NewIdentityService(db *gorm.DB, otp *OTPService) *IdentityService {
	return &IdentityService{
		db:         db,
		otp:        otp,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
		strip:      bluemonday.StrictPolicy(),
	}
}

// WithClock replaces the time source. Used by tests.
func (s *IdentityService) WithClock(now func() time.Time) *IdentityService {
	s.now = now
	return s
}

// WithTx returns a copy bound to an open transaction.
func (s *IdentityService) WithTx(tx *gorm.DB) *IdentityService {
	cp := *s
	cp.db = tx
	cp.otp = s.otp.WithTx(tx)
	return &cp
}

// Register creates an unverified identity together with its first OTP challenge.
func (s *IdentityService) Register(ctx context.Context, email, role, displayName string) (*models.Identity, string, error) {
	email = NormalizeEmail(email)
	if email == "" || role == "" {
		return nil, "", invalid("Email and user type are required")
	}
	if !validEmail(email) {
		return nil, "", invalid("Invalid email address")
	}
	if role != models.RoleInfluencer && role != models.RoleBrand {
		return nil, "", invalid("User type must be influencer or brand")
	}

	var existing models.Identity
	if err := s.db.WithContext(ctx).Select("id").Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, "", ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", fmt.Errorf("failed to check email: %w", err)
	}

	code, expiresAt, err := s.otp.newChallenge()
	if err != nil {
		return nil, "", err
	}

	identity := models.Identity{
		ID:           uuid.New(),
		Email:        email,
		Name:         s.displayName(displayName, email),
		UserType:     role,
		IsVerified:   false,
		IsActive:     true,
		OTPCode:      code,
		OTPExpiresAt: &expiresAt,
	}
	if err := s.db.WithContext(ctx).Create(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("failed to create identity: %w", err)
	}

	return &identity, code, nil
}

func (s *IdentityService) FindByID(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *IdentityService) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return s.findOne(ctx, "email = ?", NormalizeEmail(email))
}

func (s *IdentityService) findOne(ctx context.Context, query string, args ...interface{}) (*models.Identity, error) {
	var identity models.Identity
	if err := s.db.WithContext(ctx).Where(query, args...).First(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	return &identity, nil
}

// SetPassword hashes and stores a local password.
func (s *IdentityService) SetPassword(ctx context.Context, id uuid.UUID, plaintext string) error {
	if len(plaintext) < minPasswordLength {
		return ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return invalid("Password is too long")
		}
		return fmt.Errorf("failed to hash password: %w", err)
	}

	result := s.db.WithContext(ctx).Model(&models.Identity{}).
		Where("id = ?", id).
		Update("password_hash", string(hash))
	if result.Error != nil {
		return fmt.Errorf("failed to store password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

// VerifyPassword reports whether plaintext matches. Identities without a local
// password never match.
func (s *IdentityService) VerifyPassword(ctx context.Context, id uuid.UUID, plaintext string) (bool, error) {
	identity, err := s.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	return checkPassword(identity, plaintext), nil
}

func checkPassword(identity *models.Identity, plaintext string) bool {
	if !identity.HasPassword() {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(plaintext)) == nil
}

// MarkVerified sets the verification flag and timestamp and clears any pending
// challenge. A second call changes nothing.
func (s *IdentityService) MarkVerified(ctx context.Context, id uuid.UUID) error {
	now := s.now().UTC()
	result := s.db.WithContext(ctx).Model(&models.Identity{}).
		Where("id = ? AND is_verified = ?", id, false).
		Updates(map[string]interface{}{
			"is_verified":    true,
			"verified_at":    now,
			"otp_code":       "",
			"otp_expires_at": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark verified: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	result = s.db.WithContext(ctx).Model(&models.Identity{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"otp_code":       "",
			"otp_expires_at": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to clear otp: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

func (s *IdentityService) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.Identity{}).
		Where("id = ?", id).
		UpdateColumn("last_login", s.now().UTC()).Error
}

// ProfileUpdate lists the only fields a user may change on their own identity.
type ProfileUpdate struct {
	Name           *string
	ProfilePicture *string
}

func (s *IdentityService) UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*models.Identity, error) {
	changes := map[string]interface{}{}
	if upd.Name != nil {
		name := s.sanitize(*upd.Name)
		if name == "" {
			return nil, invalid("Name cannot be empty")
		}
		changes["name"] = name
	}
	if upd.ProfilePicture != nil {
		picture := strings.TrimSpace(*upd.ProfilePicture)
		if picture != "" {
			link, ok := webURL(picture)
			if !ok {
				return nil, invalid("Profile picture must be an absolute http(s) URL")
			}
			picture = link
		}
		changes["profile_picture"] = picture
	}

	if len(changes) > 0 {
		result := s.db.WithContext(ctx).Model(&models.Identity{}).Where("id = ?", id).Updates(changes)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update profile: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, ErrIdentityNotFound
		}
	}
	return s.FindByID(ctx, id)
}

// SetActive toggles the active flag. Identities are deactivated, never deleted.
func (s *IdentityService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Identity, error) {
	result := s.db.WithContext(ctx).Model(&models.Identity{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrIdentityNotFound
	}
	return s.FindByID(ctx, id)
}

func (s *IdentityService) displayName(name, email string) string {
	if name = s.sanitize(name); name != "" {
		return name
	}
	return strings.Split(email, "@")[0]
}

func (s *IdentityService) sanitize(text string) string {
	return stripMarkup(s.strip, text)
}

// NormalizeEmail lowercases and trims an address; uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// stripMarkup removes tags but keeps plain characters like & and quotes intact.
func stripMarkup(p *bluemonday.Policy, text string) string {
	return strings.TrimSpace(html.UnescapeString(p.Sanitize(text)))
}
