package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glowsync/glowsync-backend/internal/config"
	"github.com/glowsync/glowsync-backend/internal/metrics"
	"github.com/glowsync/glowsync-backend/internal/testutil"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type sentMail struct {
	To   string
	Code string
	Kind string
}

// fakeMailer records deliveries instead of sending them.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendOTP(_ context.Context, to, _ string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Code: code, Kind: "otp"})
	return m.err
}

func (m *fakeMailer) SendWelcome(_ context.Context, to, _ string, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Kind: "welcome"})
	return m.err
}

func (m *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == "otp" {
			return m.sent[i].Code
		}
	}
	t.Fatal("no otp mail was sent")
	return ""
}

func (m *fakeMailer) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	db         *gorm.DB
	cfg        *config.Config
	clock      *testutil.Clock
	mailer     *fakeMailer
	otp        *OTPService
	identities *IdentityService
	tokens     *TokenService
	linker     *OAuthLinker
	messages   *MessageService
	convs      *ConversationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	clock := testutil.NewClock()
	cfg := &config.Config{
		JWTSecret: "test-secret",
		JWTTTL:    7 * 24 * time.Hour,
		OTPTTL:    10 * time.Minute,
	}
	rec := metrics.Nop{}

	otp := NewOTPService(db, cfg, rec).WithClock(clock.Now)
	identities := NewIdentityService(db, otp).WithClock(clock.Now)
	identities.bcryptCost = bcrypt.MinCost
	linker := NewOAuthLinker(db, identities)
	linker.now = clock.Now

	return &fixture{
		db:         db,
		cfg:        cfg,
		clock:      clock,
		mailer:     &fakeMailer{},
		otp:        otp,
		identities: identities,
		tokens:     NewTokenService(cfg).WithClock(clock.Now),
		linker:     linker,
		messages:   NewMessageService(db, rec).WithClock(clock.Now),
		convs:      NewConversationService(db),
	}
}

func (f *fixture) auth(provider OAuthProvider) *AuthService {
	return NewAuthService(f.db, f.identities, f.otp, f.tokens, f.linker, provider, f.mailer, metrics.Nop{})
}
