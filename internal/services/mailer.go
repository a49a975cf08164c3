package services

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/glowsync/glowsync-backend/internal/config"
	"github.com/wneessen/go-mail"
)

// Mailer delivers the out-of-band emails of the auth flows.
type Mailer interface {
	SendOTP(ctx context.Context, to, name, code string) error
	SendWelcome(ctx context.Context, to, name, userType string) error
}

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #333;">
<h2>Hello {{.Name}}!</h2>
<p>Use the code below to verify your GlowSync account.</p>
<p style="font-size: 32px; font-weight: bold; letter-spacing: 8px; color: #667eea;">{{.Code}}</p>
<p>This code expires in {{.Minutes}} minutes. Don't share it with anyone.</p>
<p style="color: #999; font-size: 12px;">If you didn't request this, please ignore this email.</p>
</body></html>`))

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #333;">
<h2>Welcome to GlowSync, {{.Name}}!</h2>
<p>Your {{.UserType}} account is verified and ready to go.</p>
{{if eq .UserType "brand"}}<p>Post your first campaign and start connecting with creators.</p>
{{else}}<p>Complete your profile so brands can discover you.</p>{{end}}
<p><a href="{{.FrontendURL}}">Open GlowSync</a></p>
</body></html>`))

// SMTPMailer sends through an SMTP relay. Port 465 uses implicit TLS, any other
// port requires STARTTLS.
type SMTPMailer struct {
	from        string
	frontendURL string
	otpTTL      time.Duration
	client      *mail.Client
}

func NewSMTPMailer(cfg *config.Config) (*SMTPMailer, error) {
	opts := []mail.Option{mail.WithPort(cfg.SMTPPort), mail.WithTimeout(15 * time.Second)}
	if cfg.SMTPPort == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if cfg.SMTPUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUser),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &SMTPMailer{
		from:        cfg.SMTPFrom,
		frontendURL: cfg.FrontendURL,
		otpTTL:      cfg.OTPTTL,
		client:      client,
	}, nil
}

func (m *SMTPMailer) SendOTP(ctx context.Context, to, name, code string) error {
	data := struct {
		Name    string
		Code    string
		Minutes int
	}{greetingName(name), code, int(m.otpTTL.Minutes())}
	return m.send(ctx, to, "Verify Your GlowSync Account - OTP", otpTemplate, data)
}

func (m *SMTPMailer) SendWelcome(ctx context.Context, to, name, userType string) error {
	data := struct {
		Name        string
		UserType    string
		FrontendURL string
	}{greetingName(name), userType, m.frontendURL}
	return m.send(ctx, to, "Welcome to GlowSync!", welcomeTemplate, data)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject string, tpl *template.Template, data interface{}) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("%w: invalid sender: %v", ErrMailDelivery, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("%w: invalid recipient: %v", ErrMailDelivery, err)
	}
	msg.Subject(subject)
	if err := msg.SetBodyHTMLTemplate(tpl, data); err != nil {
		return fmt.Errorf("%w: render: %v", ErrMailDelivery, err)
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}
	return nil
}

func greetingName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}

// LogMailer writes codes to the log instead of sending them. Development only.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendOTP(_ context.Context, to, _ string, code string) error {
	m.logger.Info("otp email not sent, smtp disabled", "to", to, "otp", code)
	return nil
}

func (m *LogMailer) SendWelcome(_ context.Context, to, _ string, userType string) error {
	m.logger.Info("welcome email not sent, smtp disabled", "to", to, "user_type", userType)
	return nil
}
