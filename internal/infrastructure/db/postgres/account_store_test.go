package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

func newMockStore(t *testing.T) (*AccountStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAccountStore(db), mock
}

var columnNames = []string{
	"id", "name", "email", "password_hash", "role", "is_otp_verified", "is_verified",
	"otp_code", "otp_expires_at", "otp_purpose", "pending_email", "email_change_code", "email_change_expires_at",
	"version", "created_at", "updated_at",
}

var (
	t0  = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	exp = t0.Add(domain.OTPTTL)
)

func unverifiedRow() *sqlmock.Rows {
	return sqlmock.NewRows(columnNames).AddRow(
		"a1", "Alice", "alice@example.com", "", "free", false, false,
		"123456", exp, "signup", "", "", nil,
		int64(1), t0, t0,
	)
}

func TestAccountStore_FindByEmail_NormalizesAndMaps(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM accounts\s+WHERE email = \$1`).
		WithArgs("alice@example.com").
		WillReturnRows(unverifiedRow())

	a, err := s.FindByEmail(context.Background(), "  ALICE@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "a1", a.ID)
	assert.Equal(t, domain.RoleFree, a.Role)
	assert.Equal(t, domain.OTP{Code: "123456", ExpiresAt: exp, Purpose: domain.PurposeSignup}, a.OTP)
	assert.True(t, a.EmailChangeOTP.IsZero())
	assert.Equal(t, domain.StateUnverified, a.State())
	assert.Equal(t, int64(1), a.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_FindByID_NotFoundAndDBError(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`FROM accounts\s+WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err := s.FindByID(ctx, "missing")
	assert.True(t, domain.Is(err, "account_not_found"), "got %v", err)

	mock.ExpectQuery(`FROM accounts\s+WHERE id = \$1`).
		WithArgs("a1").
		WillReturnError(errors.New("conn reset"))
	_, err = s.FindByID(ctx, "a1")
	assert.True(t, domain.Is(err, "db_unavailable"), "got %v", err)

	_, err = s.FindByID(ctx, "   ")
	assert.True(t, domain.Is(err, "missing_field"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Create_InsertsVersionOne(t *testing.T) {
	s, mock := newMockStore(t)

	otp := domain.OTP{Code: "654321", ExpiresAt: exp, Purpose: domain.PurposeSignup}
	a := domain.NewAccount("a1", "Alice", "Alice@Example.com", otp, t0)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO accounts (`)).
		WithArgs(
			"a1", "Alice", "alice@example.com", "", "free", false, false,
			"654321", exp, "signup", "", "", nil,
			t0, t0,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := s.Create(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "alice@example.com", got.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Create_UniqueViolation_ReturnsEmailInUse(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO accounts (`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	_, err := s.Create(context.Background(), domain.NewAccount("a1", "Alice", "a@example.com", domain.OTP{}, t0))
	assert.True(t, domain.Is(err, "email_in_use"), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Save_BumpsVersion(t *testing.T) {
	s, mock := newMockStore(t)

	a := domain.Account{
		ID: "a1", Name: "Alice", Email: "alice@example.com", PasswordHash: "h", Role: domain.RoleFree,
		IsOtpVerified: true, IsVerified: true, Version: 4, CreatedAt: t0, UpdatedAt: t0.Add(time.Hour),
	}

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE accounts`)).
		WithArgs(
			"a1", int64(4),
			"Alice", "alice@example.com", "h", "free", true, true,
			"", nil, "",
			"", "", nil,
			t0.Add(time.Hour),
		).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(5)))

	got, err := s.Save(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Save_StaleVersion_ReturnsConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE accounts`)).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM accounts WHERE id = $1`)).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	_, err := s.Save(context.Background(), domain.Account{ID: "a1", Email: "a@example.com", Role: domain.RoleFree, Version: 2})
	assert.True(t, domain.Is(err, "version_conflict"), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Save_MissingRow_ReturnsNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE accounts`)).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM accounts WHERE id = $1`)).
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Save(context.Background(), domain.Account{ID: "gone", Email: "a@example.com", Role: domain.RoleFree, Version: 2})
	assert.True(t, domain.Is(err, "account_not_found"), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Save_EmailTaken_ReturnsEmailInUse(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE accounts`)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := s.Save(context.Background(), domain.Account{ID: "a1", Email: "taken@example.com", Role: domain.RoleFree, Version: 1})
	assert.True(t, domain.Is(err, "email_in_use"), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_List_Paginates(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows(columnNames).
		AddRow("a1", "Alice", "alice@example.com", "h", "admin", true, true, "", nil, "", "new@example.com", "111111", exp, int64(3), t0, t0).
		AddRow("a2", "Bob", "bob@example.com", "", "free", false, false, "222222", exp, "signup", "", "", nil, int64(1), t0, t0)

	mock.ExpectQuery(`ORDER BY created_at, id\s+LIMIT \$1 OFFSET \$2`).
		WithArgs(2, 0).
		WillReturnRows(rows)

	list, err := s.List(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.RoleAdmin, list[0].Role)
	assert.Equal(t, "new@example.com", list[0].PendingEmail)
	assert.Equal(t, domain.PurposeEmailChange, list[0].EmailChangeOTP.Purpose)
	assert.True(t, list[0].OTP.IsZero())
	assert.Equal(t, domain.StateUnverified, list[1].State())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_CountByRole(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(1) FROM accounts WHERE role = $1;`)).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := s.CountByRole(context.Background(), domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.CountByRole(context.Background(), domain.Role("root"))
	assert.True(t, domain.Is(err, "invalid_role"))
	require.NoError(t, mock.ExpectationsWereMet())
}
