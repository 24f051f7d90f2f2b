package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

func TestRequireAtLeast(t *testing.T) {
	tests := []struct {
		name     string
		ctx      func(context.Context) context.Context
		min      string
		wantNext bool
		wantCode string
	}{
		{"no role in context", func(c context.Context) context.Context { return c }, "admin", false, "token_invalid"},
		{"unknown role", func(c context.Context) context.Context { return WithAccount(c, "a", "root") }, "admin", false, "forbidden"},
		{"free below admin", func(c context.Context) context.Context { return WithAccount(c, "a", "free") }, "admin", false, "insufficient_role"},
		{"business below admin", func(c context.Context) context.Context { return WithAccount(c, "a", "business") }, "admin", false, "insufficient_role"},
		{"admin passes", func(c context.Context) context.Context { return WithAccount(c, "a", "admin") }, "admin", true, ""},
		{"admin passes business gate", func(c context.Context) context.Context { return WithAccount(c, "a", "admin") }, "business", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(tt.ctx(req.Context()))
			we := &writeErrRecorder{}
			nx := &nextRecorder{}

			RequireAtLeast(tt.min, we.fn)(nx).ServeHTTP(httptest.NewRecorder(), req)

			if tt.wantNext {
				assert.Equal(t, 1, nx.calls)
				assert.Equal(t, 0, we.calls)
				return
			}
			assert.Equal(t, 0, nx.calls)
			assert.True(t, domain.Is(we.last, tt.wantCode), "got %v", we.last)
		})
	}
}
