// Package vaultauth is a Go client for the vault wallet authentication API.
//
// A login is two round trips: Nonce fetches the message to sign, and the
// signed message is exchanged for a bearer session token.
package vaultauth

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Challenge is an issued login nonce
type Challenge struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Session is an authenticated wallet session
type Session struct {
	Token     string    `json:"token,omitempty"`
	Address   string    `json:"address"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SignFunc signs the login message and returns a 0x-prefixed 65 byte signature
type SignFunc func(message string) (string, error)

// PersonalSigner signs with key using EIP-191 personal_sign
func PersonalSigner(key *ecdsa.PrivateKey) SignFunc {
	return func(message string) (string, error) {
		sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
		if err != nil {
			return "", err
		}
		sig[crypto.RecoveryIDOffset] += 27
		return hexutil.Encode(sig), nil
	}
}

// Client talks to the auth API over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Nonce requests a login nonce for address
func (c *Client) Nonce(ctx context.Context, address string) (*Challenge, error) {
	var out Challenge
	path := "/api/auth/nonce?address=" + url.QueryEscape(address)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login signs in the wallet controlled by key using personal_sign
func (c *Client) Login(ctx context.Context, key *ecdsa.PrivateKey) (*Session, error) {
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	return c.LoginWithSigner(ctx, address, PersonalSigner(key))
}

// LoginWithSigner signs in address, delegating signing to sign
func (c *Client) LoginWithSigner(ctx context.Context, address string, sign SignFunc) (*Session, error) {
	challenge, err := c.Nonce(ctx, address)
	if err != nil {
		return nil, err
	}

	signature, err := sign(challenge.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign login message: %w", err)
	}

	body := struct {
		Address   string `json:"address"`
		Signature string `json:"signature"`
	}{Address: address, Signature: signature}

	var out Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/verify", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Session returns the session behind token
func (c *Client) Session(ctx context.Context, token string) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", token, nil, &out); err != nil {
		return nil, err
	}
	out.Token = token
	return &out, nil
}

// Logout revokes token
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", token, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vaultauth: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("vaultauth: decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		apiErr.RetryAfter, _ = strconv.Atoi(ra)
	}
	return apiErr
}
