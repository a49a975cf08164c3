package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/glowsync/glowsync-backend/internal/config"
	"github.com/glowsync/glowsync-backend/internal/metrics"
	"github.com/glowsync/glowsync-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	otpMin  = 100000
	otpSpan = 900000
)

// OTPService issues and validates the 6-digit codes that gate email verification.
// The challenge lives on the identity row: at most one per identity, single use.
//
// Failed validations are not counted; there is no lockout.
type OTPService struct {
	db      *gorm.DB
	ttl     time.Duration
	now     func() time.Time
	metrics metrics.Recorder
}

func NewOTPService(db *gorm.DB, cfg *config.Config, rec metrics.Recorder) *OTPService {
	ttl := cfg.OTPTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OTPService{
		db:      db,
		ttl:     ttl,
		now:     time.Now,
		metrics: rec,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *OTPService) WithClock(now func() time.Time) *OTPService {
	s.now = now
	return s
}

// WithTx returns a copy bound to an open transaction.
func (s *OTPService) WithTx(tx *gorm.DB) *OTPService {
	cp := *s
	cp.db = tx
	return &cp
}

// Issue stores a fresh code for the identity, replacing any earlier one, and returns
// the plaintext for out-of-band delivery.
func (s *OTPService) Issue(ctx context.Context, identityID uuid.UUID) (string, error) {
	code, expiresAt, err := s.newChallenge()
	if err != nil {
		return "", err
	}

	result := s.db.WithContext(ctx).Model(&models.Identity{}).
		Where("id = ?", identityID).
		Updates(map[string]interface{}{
			"otp_code":       code,
			"otp_expires_at": expiresAt,
		})
	if result.Error != nil {
		return "", fmt.Errorf("failed to store otp: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", ErrIdentityNotFound
	}
	return code, nil
}

// Validate consumes the identity's pending code. Expired codes are left in place and
// must be reissued; a consumed code reports ErrOTPNotFound on reuse.
func (s *OTPService) Validate(ctx context.Context, identityID uuid.UUID, submitted string) error {
	err := s.validate(ctx, identityID, submitted)
	s.metrics.RecordOTPValidation(validationResult(err))
	return err
}

func (s *OTPService) validate(ctx context.Context, identityID uuid.UUID, submitted string) error {
	var identity models.Identity
	if err := s.db.WithContext(ctx).Select("id", "otp_code", "otp_expires_at").
		First(&identity, "id = ?", identityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("failed to load otp: %w", err)
	}

	if identity.OTPCode == "" || identity.OTPExpiresAt == nil {
		return ErrOTPNotFound
	}
	if s.now().After(*identity.OTPExpiresAt) {
		return ErrOTPExpired
	}
	if identity.OTPCode != submitted {
		return ErrOTPMismatch
	}

	// Compare-and-clear so two concurrent submissions cannot both succeed.
	result := s.db.WithContext(ctx).Model(&models.Identity{}).
		Where("id = ? AND otp_code = ?", identityID, submitted).
		UpdateColumns(map[string]interface{}{
			"otp_code":       "",
			"otp_expires_at": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to clear otp: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOTPNotFound
	}
	return nil
}

func (s *OTPService) newChallenge() (string, time.Time, error) {
	code, err := generateCode()
	if err != nil {
		return "", time.Time{}, err
	}
	return code, s.now().UTC().Add(s.ttl), nil
}

// generateCode returns a uniformly random code in [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

func validationResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrMismatch):
		return "mismatch"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
