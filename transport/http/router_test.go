package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/vaultauth/adapters/store"
	"github.com/layer-3/vaultauth/adapters/tokenizer"
	"github.com/layer-3/vaultauth/adapters/verifier"
	"github.com/layer-3/vaultauth/service"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	handler   http.Handler
	mr        *miniredis.Miniredis
	tokenizer *tokenizer.JWTTokenizer
	now       *time.Time
	wallet    *ecdsa.PrivateKey
	address   string
}

func newTestServer(t *testing.T, rl RateLimitConfig) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	signKey, err := tokenizer.GenerateSigningKey()
	require.NoError(t, err)

	now := time.Now()
	clock := func() time.Time { return now }
	tk := tokenizer.NewJWTTokenizer(signKey, time.Hour, tokenizer.WithClock(clock))

	svc := service.NewAuthService(
		store.NewRedisNonceStore(client, store.DefaultNonceTTL),
		verifier.NewPersonalSignVerifier(),
		tk,
		store.NewRedisRevocationStore(client),
		service.WithClock(clock),
	)

	wallet, err := crypto.GenerateKey()
	require.NoError(t, err)

	return &testServer{
		handler: SetupRouter(svc, RouterConfig{
			AllowedOrigins: []string{"https://vault.example"},
			RateLimit:      rl,
			Redis:          client,
		}, nil),
		mr:        mr,
		tokenizer: tk,
		now:       &now,
		wallet:    wallet,
		address:   crypto.PubkeyToAddress(wallet.PublicKey).Hex(),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()

	w := s.do(t, http.MethodGet, "/api/auth/nonce?address="+url.QueryEscape(s.address), nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	message := decode(t, w)["message"].(string)

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), s.wallet)
	require.NoError(t, err)

	w = s.do(t, http.MethodPost, "/api/auth/verify", gin.H{"address": s.address, "signature": hexutil.Encode(sig)}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

func TestRouter_LoginSessionLogout(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})

	token := s.login(t)

	w := s.do(t, http.MethodGet, "/api/auth/session", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, strings.ToLower(s.address), body["address"])
	assert.NotEmpty(t, body["expires_at"])

	w = s.do(t, http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["authenticated"])

	w = s.do(t, http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/auth/session", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token has been revoked", decode(t, w)["error"])
}

func TestRouter_NonceResponse(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})

	w := s.do(t, http.MethodGet, "/api/auth/nonce?address="+s.address, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	nonce := body["nonce"].(string)
	assert.Len(t, nonce, 64)
	assert.Contains(t, body["message"], nonce)
	assert.NotEmpty(t, body["expires_at"])
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestRouter_BadInput(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{name: "nonce without address", method: http.MethodGet, path: "/api/auth/nonce"},
		{name: "nonce with invalid address", method: http.MethodGet, path: "/api/auth/nonce?address=0x1234"},
		{name: "verify without body", method: http.MethodPost, path: "/api/auth/verify"},
		{name: "verify without signature", method: http.MethodPost, path: "/api/auth/verify", body: gin.H{"address": s.address}},
		{name: "verify with invalid address", method: http.MethodPost, path: "/api/auth/verify", body: gin.H{"address": "nope", "signature": "0x00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestRouter_VerifyRejections(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})

	t.Run("no nonce issued", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/auth/verify", gin.H{"address": s.address, "signature": "0x00"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid or expired nonce", decode(t, w)["error"])
	})

	t.Run("bad signature", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/auth/nonce?address="+s.address, nil, "")
		require.Equal(t, http.StatusOK, w.Code)

		w = s.do(t, http.MethodPost, "/api/auth/verify", gin.H{"address": s.address, "signature": "0xdeadbeef"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid signature", decode(t, w)["error"])
	})

	t.Run("expired nonce", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/auth/nonce?address="+s.address, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		message := decode(t, w)["message"].(string)

		s.mr.FastForward(store.DefaultNonceTTL + time.Second)

		sig, err := crypto.Sign(accounts.TextHash([]byte(message)), s.wallet)
		require.NoError(t, err)
		w = s.do(t, http.MethodPost, "/api/auth/verify", gin.H{"address": s.address, "signature": hexutil.Encode(sig)}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid or expired nonce", decode(t, w)["error"])
	})
}

func TestRouter_RequireAuth(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})
	token := s.login(t)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "missing header", header: "", want: "missing authorization header"},
		{name: "wrong scheme", header: "Basic abc", want: "missing authorization header"},
		{name: "empty bearer", header: "Bearer ", want: "missing authorization header"},
		{name: "garbage token", header: "Bearer not.a.jwt", want: "token is malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.want, decode(t, w)["error"])
		})
	}

	t.Run("expired token", func(t *testing.T) {
		*s.now = s.now.Add(2 * time.Hour)
		w := s.do(t, http.MethodGet, "/api/auth/session", nil, token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "token has expired", decode(t, w)["error"])
	})
}

func TestRouter_OptionalAuth(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})

	w := s.do(t, http.MethodGet, "/api/auth/me", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["authenticated"])
	assert.NotContains(t, body, "address")

	w = s.do(t, http.MethodGet, "/api/auth/me", nil, "not.a.jwt")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["authenticated"])
}

func TestRouter_RateLimit(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{Limit: 2, Window: time.Minute, Block: 30 * time.Second})
	path := "/api/auth/nonce?address=" + s.address

	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := s.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	w = s.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// unlimited routes are unaffected
	w = s.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RateLimitFailsOpen(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{Limit: 1, Window: time.Minute, Block: time.Minute})
	s.mr.SetError("server unavailable")

	w := s.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/auth/nonce?address="+s.address, nil, "")
	// limiter lets the request through; the nonce store then fails
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRouter_RateLimitCounterWithoutTTL(t *testing.T) {
	cfg := RateLimitConfig{Limit: 2, Window: time.Minute, Block: 30 * time.Second}
	s := newTestServer(t, cfg)
	path := "/api/auth/nonce?address=" + s.address

	// a counter left over without an expiry must not block the client forever
	key := rateLimitKey("vaultauth:ratelimit", "/api/auth/nonce", "192.0.2.1")
	require.NoError(t, s.mr.Set(key, "5"))
	require.Zero(t, s.mr.TTL(key))

	w := s.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, cfg.Window, s.mr.TTL(key))

	s.mr.FastForward(cfg.Window + cfg.Block)

	w = s.do(t, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRouter_StoreFailure(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})
	token := s.login(t)

	w := s.do(t, http.MethodGet, "/api/auth/nonce?address="+s.address, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	s.mr.SetError("server unavailable")

	t.Run("session is rejected without leaking the cause", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/auth/session", nil, token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Authentication failed", decode(t, w)["error"])
	})

	t.Run("optional auth treats the caller as anonymous", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/auth/me", nil, token)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, false, body["authenticated"])
		assert.NotContains(t, body, "address")
	})

	t.Run("verify is unauthorized", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/auth/verify", gin.H{"address": s.address, "signature": "0x00"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Authentication failed", decode(t, w)["error"])
	})
}

func TestRouter_RequestIDAndCORS(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	req.Header.Set("Origin", "https://vault.example")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-Id"))
	assert.Equal(t, "https://vault.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Metrics(t *testing.T) {
	s := newTestServer(t, RateLimitConfig{})
	s.do(t, http.MethodGet, "/healthz", nil, "")

	w := s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vaultauth_http_requests_total")
}

func TestPrincipalFromContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	_, ok = AddressFromContext(context.Background())
	assert.False(t, ok)
}
