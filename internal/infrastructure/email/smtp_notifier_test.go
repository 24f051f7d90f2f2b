package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/account"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

func TestRenderCodeHTML_EscapesAndEmbedsCode(t *testing.T) {
	out := renderCodeHTML("Verify & go", "intro <b>", "123456", 10)

	assert.Contains(t, out, "Verify &amp; go")
	assert.Contains(t, out, "intro &lt;b&gt;")
	assert.Contains(t, out, ">123456<")
	assert.Contains(t, out, "expires in 10 minutes")
}

func TestCopyFor_PerPurpose(t *testing.T) {
	s, _ := copyFor(domain.PurposeSignup)
	assert.Equal(t, "Verify your email", s)
	s, _ = copyFor(domain.PurposePasswordReset)
	assert.Equal(t, "Reset your password", s)
	s, _ = copyFor(domain.PurposeEmailChange)
	assert.Equal(t, "Confirm your new email", s)
}

func TestContainsAny(t *testing.T) {
	msg := "535 Authentication Failed"

	assert.True(t, containsAny(msg, "535", "auth"))
	assert.False(t, containsAny(msg, "404", "missing"))
	assert.False(t, containsAny(msg, ""))
}

func TestSMTPNotifier_InvalidRecipient_IsPermanent(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{
		Host: "localhost", Port: 2525, From: "noreply@example.com", Timeout: time.Second,
	}, zerolog.Nop())

	err := n.SendCode(context.Background(), account.CodeMessage{
		To: "not an address", Code: "123456", Purpose: domain.PurposeSignup,
	})

	var perm PermanentError
	assert.True(t, errors.As(err, &perm), "got %v", err)
}

func TestSMTPNotifier_Config(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{
		Host: "smtp.example.com", Port: 587, Username: "user", Password: "pw",
		From: "noreply@example.com", Timeout: 5 * time.Second,
	}, zerolog.Nop())

	assert.Equal(t, "smtp.example.com", n.host)
	assert.Equal(t, 587, n.port)
	assert.Equal(t, 5*time.Second, n.timeout)
}
