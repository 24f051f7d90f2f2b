package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

const (
	otpMin = 100000
	otpMax = 999999
)

var otpSpan = big.NewInt(otpMax - otpMin + 1)

// OTPGenerator draws codes uniformly from 100000..999999, so every code has six digits.
type OTPGenerator struct {
	now func() time.Time
}

func NewOTPGenerator() *OTPGenerator {
	return &OTPGenerator{now: time.Now}
}

func (g *OTPGenerator) Generate(purpose domain.OTPPurpose) (domain.OTP, error) {
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return domain.OTP{}, domain.ErrRandomFailed(err)
	}
	return domain.OTP{
		Code:      fmt.Sprintf("%d", otpMin+n.Int64()),
		ExpiresAt: g.now().Add(domain.OTPTTL),
		Purpose:   purpose,
	}, nil
}
