package account

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

func TestMutate_RetriesOnVersionConflict(t *testing.T) {
	t.Parallel()
	h := newHarness()
	ctx := context.Background()
	_, _ = h.svc.StartSignup(ctx, "A", "a@x.com")

	// A concurrent resend lands between our read and our write.
	h.store.beforeSave = func(f *fakeStore, a domain.Account) {
		cur := f.get(a.ID)
		cur.OTP = domain.OTP{Code: "555555", ExpiresAt: testNow.Add(domain.OTPTTL), Purpose: domain.PurposeSignup}
		cur.Version++
		f.put(cur)
	}

	res, err := h.svc.ResendInitialOtp(ctx, "a@x.com")
	require.NoError(t, err)

	stored := h.store.get(res.Account.ID)
	assert.Equal(t, h.notifier.last().Code, stored.OTP.Code, "the code we sent must be the live one")
	assert.NotEqual(t, "555555", stored.OTP.Code)
}

func TestMutate_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	h := newHarness()
	ctx := context.Background()
	_, _ = h.svc.StartSignup(ctx, "A", "a@x.com")

	h.store.saveErr = domain.ErrVersionConflict()
	_, err := h.svc.ResendInitialOtp(ctx, "a@x.com")
	requireErrCode(t, err, "version_conflict")
	assert.Equal(t, defaultMaxAttempts, h.store.saves)
}

func TestConcurrentSignupAndResend_OneLiveCode(t *testing.T) {
	t.Parallel()
	h := newHarness()
	ctx := context.Background()
	_, err := h.svc.StartSignup(ctx, "A", "a@x.com")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = h.svc.StartSignup(ctx, "A", "a@x.com")
			} else {
				_, _ = h.svc.ResendInitialOtp(ctx, "a@x.com")
			}
		}(i)
	}
	wg.Wait()

	stored, err := h.store.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	live := 0
	for _, m := range h.notifier.sent {
		if m.Code == stored.OTP.Code {
			live++
		}
	}
	assert.Equal(t, 1, live, "exactly one delivered code verifies")
	requireInvariants(t, h.store)
}

// Random operation sequences must never break the record invariants.
func TestInvariants_HoldAcrossRandomSequences(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	emails := []string{"a@x.com", "b@x.com", "c@x.com"}

	for seed := int64(1); seed <= 25; seed++ {
		h := newHarness()
		rng := rand.New(rand.NewSource(seed))

		for step := 0; step < 60; step++ {
			email := emails[rng.Intn(len(emails))]
			code := h.notifier.last().Code
			if rng.Intn(3) == 0 {
				code = fmt.Sprintf("%06d", 100000+rng.Intn(900000))
			}

			switch rng.Intn(9) {
			case 0:
				_, _ = h.svc.StartSignup(ctx, "N", email)
			case 1:
				_, _ = h.svc.VerifyInitialOtp(ctx, email, code)
			case 2:
				_, _ = h.svc.CompleteRegistration(ctx, email, strongPassword)
			case 3:
				_, _ = h.svc.ResendInitialOtp(ctx, email)
			case 4:
				_, _ = h.svc.Login(ctx, email, strongPassword, code)
			case 5:
				_ = h.svc.RequestReset(ctx, email)
			case 6:
				_, _ = h.svc.ConfirmReset(ctx, email, code, "N3w!password")
			case 7:
				if acc, err := h.store.FindByEmail(ctx, email); err == nil {
					_ = h.svc.RequestEmailChange(ctx, acc.ID, emails[rng.Intn(len(emails))])
				}
			case 8:
				if acc, err := h.store.FindByEmail(ctx, email); err == nil {
					_, _ = h.svc.ConfirmEmailChange(ctx, acc.ID, code)
				}
			}
			requireInvariants(t, h.store)
		}
	}
}
