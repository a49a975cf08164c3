package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/glowsync/glowsync-backend/internal/metrics"
	"github.com/glowsync/glowsync-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session is a freshly issued credential for an identity.
type Session struct {
	Token    string
	Identity *models.Identity
}

// LoginResult carries either a session or, for unverified identities, the
// verification handoff. Exactly one of Session and Pending is set.
type LoginResult struct {
	Session *Session
	Pending *models.Identity
}

// AuthService orchestrates the registration, verification and sign-in flows.
type AuthService struct {
	db         *gorm.DB
	identities *IdentityService
	otp        *OTPService
	tokens     *TokenService
	linker     *OAuthLinker
	provider   OAuthProvider
	mailer     Mailer
	metrics    metrics.Recorder
}

func NewAuthService(
	db *gorm.DB,
	identities *IdentityService,
	otp *OTPService,
	tokens *TokenService,
	linker *OAuthLinker,
	provider OAuthProvider,
	mailer Mailer,
	rec metrics.Recorder,
) *AuthService {
	return &AuthService{
		db:         db,
		identities: identities,
		otp:        otp,
		tokens:     tokens,
		linker:     linker,
		provider:   provider,
		mailer:     mailer,
		metrics:    rec,
	}
}

// Register creates an unverified identity and mails its first code.
func (s *AuthService) Register(ctx context.Context, email, userType, name string) (*models.Identity, error) {
	identity, code, err := s.identities.Register(ctx, email, userType, name)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordOTPIssued("register")
	s.deliverOTP(ctx, identity, code)

	slog.Info("identity registered", "identity_id", identity.ID.String(), "user_type", identity.UserType)
	return identity, nil
}

// Login checks a password. Unknown email, missing password and wrong password all
// fail with the same ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, invalid("Email and password are required")
	}

	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			s.metrics.RecordLogin("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !checkPassword(identity, password) {
		s.metrics.RecordLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}
	if !identity.IsActive {
		s.metrics.RecordLogin("inactive")
		return nil, ErrIdentityInactive
	}

	if !identity.IsVerified {
		code, err := s.otp.Issue(ctx, identity.ID)
		if err != nil {
			return nil, err
		}
		s.metrics.RecordOTPIssued("login")
		s.metrics.RecordLogin("unverified")
		s.deliverOTP(ctx, identity, code)
		return &LoginResult{Pending: identity}, nil
	}

	session, err := s.startSession(ctx, identity)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLogin("success")
	return &LoginResult{Session: session}, nil
}

// VerifyOTP consumes the code, stores password when one is given (mandatory for
// identities with no other credential) and marks the identity verified. All
// writes commit together.
func (s *AuthService) VerifyOTP(ctx context.Context, identityID uuid.UUID, code, password string) (*Session, error) {
	if identityID == uuid.Nil || code == "" {
		return nil, invalid("User ID and OTP are required")
	}

	var (
		identity      *models.Identity
		firstVerified bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := s.identities.WithTx(tx)

		current, err := ids.FindByID(ctx, identityID)
		if err != nil {
			return err
		}
		if err := s.otp.WithTx(tx).Validate(ctx, identityID, code); err != nil {
			return err
		}
		// Local identities without a password must set one here; anyone else may
		// add or replace a fallback password in the same step.
		if current.RequiresPassword() || password != "" {
			if err := ids.SetPassword(ctx, identityID, password); err != nil {
				return err
			}
		}
		if err := ids.MarkVerified(ctx, identityID); err != nil {
			return err
		}
		if err := ids.TouchLastLogin(ctx, identityID); err != nil {
			return fmt.Errorf("failed to stamp last login: %w", err)
		}

		firstVerified = !current.IsVerified
		identity, err = ids.FindByID(ctx, identityID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if firstVerified {
		if err := s.mailer.SendWelcome(ctx, identity.Email, identity.Name, identity.UserType); err != nil {
			slog.Warn("failed to send welcome email", "identity_id", identity.ID.String(), "error", err)
		}
	}

	token, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Identity: identity}, nil
}

// ResendOTP replaces the pending code of an unverified identity.
func (s *AuthService) ResendOTP(ctx context.Context, identityID uuid.UUID) error {
	if identityID == uuid.Nil {
		return invalid("User ID is required")
	}

	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		return err
	}
	if identity.IsVerified {
		return ErrAlreadyVerified
	}

	code, err := s.otp.Issue(ctx, identity.ID)
	if err != nil {
		return err
	}
	s.metrics.RecordOTPIssued("resend")
	s.deliverOTP(ctx, identity, code)
	return nil
}

func (s *AuthService) Me(ctx context.Context, identityID uuid.UUID) (*models.Identity, error) {
	return s.identities.FindByID(ctx, identityID)
}

func (s *AuthService) UpdateProfile(ctx context.Context, identityID uuid.UUID, upd ProfileUpdate) (*models.Identity, error) {
	return s.identities.UpdateProfile(ctx, identityID, upd)
}

// GoogleAuthURL returns the provider consent URL carrying state.
func (s *AuthService) GoogleAuthURL(state string) (string, error) {
	if s.provider == nil {
		return "", newError(ErrUpstream, "Google sign-in is not configured")
	}
	return s.provider.AuthCodeURL(state), nil
}

// GoogleSignIn finishes the provider handoff. Verified identities get a session;
// unverified ones get a fresh code and come back as LoginResult.Pending.
func (s *AuthService) GoogleSignIn(ctx context.Context, code string) (*LoginResult, error) {
	if s.provider == nil {
		return nil, newError(ErrUpstream, "Google sign-in is not configured")
	}

	profile, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	identity, err := s.linker.Resolve(ctx, profile)
	if err != nil {
		return nil, err
	}
	if !identity.IsActive {
		s.metrics.RecordLogin("inactive")
		return nil, ErrIdentityInactive
	}

	if !identity.IsVerified {
		otp, err := s.otp.Issue(ctx, identity.ID)
		if err != nil {
			return nil, err
		}
		s.metrics.RecordOTPIssued("google")
		s.metrics.RecordLogin("unverified")
		s.deliverOTP(ctx, identity, otp)
		return &LoginResult{Pending: identity}, nil
	}

	session, err := s.startSession(ctx, identity)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLogin("success")
	return &LoginResult{Session: session}, nil
}

func (s *AuthService) startSession(ctx context.Context, identity *models.Identity) (*Session, error) {
	if err := s.identities.TouchLastLogin(ctx, identity.ID); err != nil {
		return nil, fmt.Errorf("failed to stamp last login: %w", err)
	}
	token, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Identity: identity}, nil
}

// deliverOTP mails a code. Delivery failures are logged and never fail the flow:
// the code stays valid and can be resent.
func (s *AuthService) deliverOTP(ctx context.Context, identity *models.Identity, code string) {
	if err := s.mailer.SendOTP(ctx, identity.Email, identity.Name, code); err != nil {
		slog.Warn("failed to send otp email", "identity_id", identity.ID.String(), "error", err)
	}
}
