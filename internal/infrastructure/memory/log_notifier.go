package memory

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/account"
)

// LogNotifier writes codes to the service log instead of delivering them.
// It is meant for local development only.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) SendCode(ctx context.Context, msg account.CodeMessage) error {
	zlog.Info().
		Str("account_id", msg.AccountID).
		Str("to", msg.To).
		Str("purpose", string(msg.Purpose)).
		Str("code", msg.Code).
		Time("expires_at", msg.ExpiresAt).
		Msg("[log-notifier] verification code")
	return nil
}
