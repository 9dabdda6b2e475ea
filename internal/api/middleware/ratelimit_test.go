package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honeypot-lab/internal/config"
	"honeypot-lab/internal/infrastructure/cache"
	"honeypot-lab/pkg/logger"
)

func TestClientIDIgnoresRemotePort(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"10.0.0.1:51000", "ip:10.0.0.1"},
		{"10.0.0.1:51001", "ip:10.0.0.1"},
		{"[2001:db8::1]:443", "ip:2001:db8::1"},
		{"10.0.0.2", "ip:10.0.0.2"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = tt.remote
		assert.Equal(t, tt.want, getClientID(r), tt.remote)
	}
}

func TestRateLimiterSharesBucketAcrossConnections(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:", logger.NewNop())

	limited := RateLimiter(c, config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1}, logger.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	send := func(remote string) int {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = remote
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, r)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("192.0.2.7:40001"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.7:40002"))
	assert.Equal(t, http.StatusOK, send("192.0.2.8:40003"))
}
