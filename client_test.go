package vaultauth

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/vaultauth/adapters/store"
	"github.com/layer-3/vaultauth/adapters/tokenizer"
	"github.com/layer-3/vaultauth/adapters/verifier"
	"github.com/layer-3/vaultauth/service"
	transport "github.com/layer-3/vaultauth/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signKey, err := tokenizer.GenerateSigningKey()
	require.NoError(t, err)

	svc := service.NewAuthService(
		store.NewMemoryNonceStore(store.DefaultNonceTTL),
		verifier.NewPersonalSignVerifier(),
		tokenizer.NewJWTTokenizer(signKey, time.Hour),
		store.NewMemoryRevocationStore(),
	)

	srv := httptest.NewServer(transport.SetupRouter(svc, transport.RouterConfig{}, nil))
	t.Cleanup(srv.Close)

	return NewClient(srv.URL+"/", WithHTTPClient(srv.Client()))
}

func TestClient_LoginLifecycle(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())

	session, err := client.Login(ctx, key)
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, address, session.Address)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	current, err := client.Session(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, address, current.Address)
	assert.Equal(t, session.Token, current.Token)

	require.NoError(t, client.Logout(ctx, session.Token))

	_, err = client.Session(ctx, session.Token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "token has been revoked", apiErr.Message)
}

func TestClient_Errors(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Nonce(ctx, "not-an-address")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	// signing with a key that does not own the address
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	_, err = client.LoginWithSigner(ctx, address, PersonalSigner(other))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = client.LoginWithSigner(ctx, address, func(string) (string, error) {
		return "", errors.New("wallet locked")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet locked")

	_, err = client.Session(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAPIError_Unwrap(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: 400, want: ErrInvalidRequest},
		{status: 401, want: ErrUnauthorized},
		{status: 429, want: ErrRateLimited},
		{status: 500, want: ErrServer},
		{status: 503, want: ErrServer},
	}

	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status}
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
	}
}
