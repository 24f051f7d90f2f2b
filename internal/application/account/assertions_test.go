package account

import (
	"testing"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

func requireErrCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code=%q, got nil", code)
	}
	if !domain.Is(err, code) {
		t.Fatalf("expected code=%q, got err=%v", code, err)
	}
}

// requireInvariants checks every stored account against the record invariants.
func requireInvariants(t *testing.T, st *fakeStore) {
	t.Helper()
	for _, a := range st.all() {
		if err := a.CheckInvariants(); err != nil {
			t.Fatalf("invariant violated for %s: %v", a.Email, err)
		}
		if a.IsVerified && a.PasswordHash == "" {
			t.Fatalf("%s verified without password", a.Email)
		}
		if !a.IsOtpVerified && a.PasswordHash != "" {
			t.Fatalf("%s has password before otp verification", a.Email)
		}
	}
}
