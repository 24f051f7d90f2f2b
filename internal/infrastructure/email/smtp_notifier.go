package email

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/account"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	Insecure bool
}

// SMTPNotifier mails verification codes directly.
type SMTPNotifier struct {
	lg zerolog.Logger

	host     string
	port     int
	user     string
	pass     string
	from     string
	insecure bool

	timeout time.Duration
}

func NewSMTPNotifier(cfg SMTPConfig, lg zerolog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		lg:       lg.With().Str("component", "smtp_notifier").Logger(),
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.Username,
		pass:     cfg.Password,
		from:     cfg.From,
		insecure: cfg.Insecure,
		timeout:  cfg.Timeout,
	}
}

func (s *SMTPNotifier) SendCode(ctx context.Context, msg account.CodeMessage) error {
	subject, intro := copyFor(msg.Purpose)
	minutes := int(domain.OTPTTL / time.Minute)

	greeting := "Hi,"
	if msg.Name != "" {
		greeting = fmt.Sprintf("Hi %s,", msg.Name)
	}
	text := fmt.Sprintf("%s\n\n%s\n\nYour code: %s\n\nThe code expires in %d minutes.\n", greeting, intro, msg.Code, minutes)
	htmlBody := renderCodeHTML(subject, intro, msg.Code, minutes)

	return s.send(ctx, msg.To, subject, text, htmlBody)
}

func copyFor(p domain.OTPPurpose) (subject, intro string) {
	switch p {
	case domain.PurposePasswordReset:
		return "Reset your password", "Use this code to reset your password."
	case domain.PurposeEmailChange:
		return "Confirm your new email", "Use this code to confirm your new email address."
	default:
		return "Verify your email", "Use this code to verify your email address."
	}
}

func (s *SMTPNotifier) send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return PermanentError{msg: "invalid from address: " + err.Error()}
	}
	if err := m.To(to); err != nil {
		return PermanentError{msg: "invalid to address: " + err.Error()}
	}
	m.Subject(subject)

	m.SetBodyString(mail.TypeTextPlain, textBody)
	m.AddAlternativeString(mail.TypeTextHTML, htmlBody)

	tlsPolicy := mail.TLSMandatory
	if s.insecure {
		tlsPolicy = mail.TLSOpportunistic
	}

	opts := []mail.Option{
		mail.WithPort(s.port),
		mail.WithTLSPolicy(tlsPolicy),
	}
	if s.user != "" {
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthPlain), mail.WithUsername(s.user), mail.WithPassword(s.pass))
	}

	c, err := mail.NewClient(s.host, opts...)
	if err != nil {
		return PermanentError{msg: "smtp client init failed: " + err.Error()}
	}

	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		s.lg.Error().Err(err).Str("subject", subject).Msg("smtp send failed")

		msg := err.Error()
		if containsAny(msg, "535", "5.7.8", "authentication", "Username and Password not accepted") {
			return PermanentError{msg: "smtp auth failed: " + msg}
		}
		return TemporaryError{msg: "smtp transient failure: " + msg}
	}

	s.lg.Debug().Str("subject", subject).Msg("smtp send ok")
	return nil
}

func renderCodeHTML(title, intro, code string, minutes int) string {
	escTitle := html.EscapeString(title)
	escIntro := html.EscapeString(intro)
	escCode := html.EscapeString(code)

	return `<!doctype html>
<html>
  <body style="font-family:Arial,Helvetica,sans-serif; line-height:1.4;">
    <h2>` + escTitle + `</h2>
    <p>` + escIntro + `</p>
    <p style="font-size:28px; letter-spacing:6px; font-weight:bold;">` + escCode + `</p>
    <p style="color:#555; font-size:12px;">This code expires in ` + fmt.Sprint(minutes) + ` minutes. If you did not request it, ignore this email.</p>
  </body>
</html>`
}

func containsAny(s string, subs ...string) bool {
	for _, x := range subs {
		if x != "" && strings.Contains(s, x) {
			return true
		}
	}
	return false
}

// TemporaryError marks a retriable failure (network timeout, SMTP 4xx).
type TemporaryError struct{ msg string }

func (e TemporaryError) Error() string   { return e.msg }
func (e TemporaryError) Temporary() bool { return true }

// PermanentError marks a failure that will not succeed on retry.
type PermanentError struct{ msg string }

func (e PermanentError) Error() string   { return e.msg }
func (e PermanentError) Permanent() bool { return true }
