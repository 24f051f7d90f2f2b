package audit

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Logger writes account business events as structured audit records.
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// emailFields are masked before they reach the log.
var emailFields = map[string]bool{
	"email":         true,
	"new_email":     true,
	"pending_email": true,
}

// Record writes one audit line. It matches the account service's audit hook.
// Failures are logged at warn, everything else at info.
func (l *Logger) Record(action string, fields map[string]string) {
	ev := l.log.Info()
	if fields["result"] == "error" {
		ev = l.log.Warn()
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ev = ev.Str("action", action)
	for _, k := range keys {
		v := fields[k]
		if emailFields[k] {
			v = maskEmail(v)
		}
		ev = ev.Str(k, v)
	}
	ev.Msg("audit")
}

// maskEmail keeps the first two characters of the local part and the domain.
func maskEmail(email string) string {
	if len(email) < 5 {
		return "***"
	}
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return email[:2] + "***"
	}
	if at < 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}
