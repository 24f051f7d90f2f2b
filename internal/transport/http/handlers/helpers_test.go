package http_handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/account"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/infrastructure/security"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/transport/http/middleware"
)

// captureNotifier keeps the last code sent to each address.
type captureNotifier struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
}

func (n *captureNotifier) SendCode(_ context.Context, msg account.CodeMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.codes == nil {
		n.codes = map[string]string{}
	}
	n.codes[msg.To] = msg.Code
	n.sent++
	return nil
}

func (n *captureNotifier) codeFor(t *testing.T, email string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.codes[email]
	require.True(t, ok, "no code sent to %s", email)
	return c
}

type testEnv struct {
	h        *AccountHandler
	store    *memory.AccountStore
	notifier *captureNotifier
	signer   *security.JWTSigner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewAccountStore()
	n := &captureNotifier{}
	signer := security.NewJWTSigner("test-secret-test-secret-test-secret", "account-service")
	svc := account.NewService(
		store,
		security.NewBcryptHasher(security.MinBcryptCost),
		security.NewOTPGenerator(),
		n,
		signer,
		account.Config{},
	)
	return &testEnv{h: NewAccountHandler(svc), store: store, notifier: n, signer: signer}
}

func mustJSONBody(t *testing.T, v any) io.Reader {
	t.Helper()

	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

// mustReadData decodes the {"data": ...} envelope into out.
func mustReadData(t *testing.T, r io.Reader, out any) {
	t.Helper()

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	raw, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &env), "body=%s", raw)
	require.NotEmpty(t, env.Data, "body=%s", raw)
	require.NoError(t, json.Unmarshal(env.Data, out), "body=%s", raw)
}

func mustReadErrorCode(t *testing.T, r io.Reader) string {
	t.Helper()

	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	raw, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &env), "body=%s", raw)
	return env.Error.Code
}

func post(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", mustJSONBody(t, body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func withAccountCtx(req *http.Request, accountID, role string) *http.Request {
	return req.WithContext(middleware.WithAccount(req.Context(), accountID, role))
}

func withURLParam(req *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

const strongPassword = "Str0ng!Passw0rd"

// registerActive drives the three signup steps over HTTP and returns the account.
func (e *testEnv) registerActive(t *testing.T, name, email string) domain.Account {
	t.Helper()

	rr := post(t, e.h.StartSignup, map[string]string{"name": name, "email": email})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = post(t, e.h.VerifyInitialOtp, map[string]string{"email": email, "otp": e.notifier.codeFor(t, email)})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = post(t, e.h.CompleteRegistration, map[string]string{"email": email, "password": strongPassword})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	acc, err := e.store.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return acc
}
