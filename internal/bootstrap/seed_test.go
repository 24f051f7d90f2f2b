package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/security"
)

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()
	hasher := security.NewBcryptHasher(security.MinBcryptCost)

	require.NoError(t, SeedAdmin(ctx, store, hasher, " Root@Example.com ", "Adm1n!Passw0rd"))

	acc, err := store.FindByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, acc.Role)
	assert.Equal(t, domain.StateActive, acc.State())
	assert.NoError(t, hasher.Compare(acc.PasswordHash, "Adm1n!Passw0rd"))

	// restart safe
	require.NoError(t, SeedAdmin(ctx, store, hasher, "root@example.com", "Adm1n!Passw0rd"))
	n, err := store.CountByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSeedAdmin_WeakPassword(t *testing.T) {
	err := SeedAdmin(context.Background(), memory.NewAccountStore(), security.NewBcryptHasher(10), "a@example.com", "short")
	assert.True(t, domain.Is(err, "weak_password"))
}
