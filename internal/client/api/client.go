// Package api is the HTTP client devices use to talk to the eventpass
// server. Transport failures are reported as domain.ErrNetworkUnavailable
// and server error codes are mapped back to domain errors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eventpass/eventpass-api/internal/domain"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL string
	bearer  string
	http    *http.Client
	logger  *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithBearer(token string) Option {
	return func(c *Client) { c.bearer = token }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the API rooted at baseURL, for example
// http://localhost:8080/api/v1.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  zap.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Error is a non-2xx answer of the server.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api: %d %s", e.StatusCode, e.Code)
}

func (e *Error) Unwrap() error { return e.err }

var codeErrors = map[string]error{
	"INVALID_TOKEN":        domain.ErrInvalidToken,
	"EXPIRED_TOKEN":        domain.ErrExpiredToken,
	"ALREADY_CLAIMED":      domain.ErrAlreadyClaimed,
	"ORGANIZER_NOT_SYNCED": domain.ErrOrganizerNotSynced,
	"DECRYPTION_FAILURE":   domain.ErrDecryption,
	"MISSING_SESSION_KEY":  domain.ErrMissingSessionKey,
	"INVALID_WIN_PROOF":    domain.ErrInvalidWinProof,
}

type errorBody struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Error      string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %s %s: %v", domain.ErrNetworkUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	e := &Error{StatusCode: resp.StatusCode}

	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		e.err = domain.ErrNetworkUnavailable
	}

	var b errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&b); err == nil {
		e.Code = b.ErrorCode
		e.Message = b.Error
		if mapped, ok := codeErrors[b.ErrorCode]; ok {
			e.err = mapped
		}
	}
	if e.Code == "" {
		e.Code = http.StatusText(resp.StatusCode)
	}
	return e
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// Login authenticates and keeps the returned bearer token on c.
func (c *Client) Login(ctx context.Context, email, password string) (domain.User, error) {
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &out); err != nil {
		return domain.User{}, err
	}
	c.bearer = out.Token
	return out.User, nil
}

// Token is an online claim token issued by an organizer.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *Client) IssueToken(ctx context.Context, eventID string) (Token, error) {
	var out Token
	err := c.do(ctx, http.MethodPost, "/events/"+url.PathEscape(eventID)+"/tokens", nil, &out)
	return out, err
}

// Handshake rotates the secure mode session key of an event.
func (c *Client) Handshake(ctx context.Context, eventID string) (string, error) {
	var out struct {
		SessionKey string `json:"session_key"`
	}
	if err := c.do(ctx, http.MethodPost, "/events/"+url.PathEscape(eventID)+"/handshake", nil, &out); err != nil {
		return "", err
	}
	if out.SessionKey == "" {
		return "", errors.New("handshake returned no session key")
	}
	return out.SessionKey, nil
}

// Claim submits a raw scanned code: an online token or a static or secure
// JSON payload.
func (c *Client) Claim(ctx context.Context, raw string) (domain.CredentialRecord, error) {
	var out domain.CredentialRecord
	err := c.do(ctx, http.MethodPost, "/claims", map[string]string{"token": raw}, &out)
	return out, err
}

func (c *Client) ClaimSecure(ctx context.Context, eventID, blob string) (domain.CredentialRecord, error) {
	var out domain.CredentialRecord
	err := c.do(ctx, http.MethodPost, "/claims/secure", map[string]string{"event_id": eventID, "blob": blob}, &out)
	return out, err
}

// Validation is a pending validation as uploaded by an organizer device.
type Validation struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	Hash    string `json:"hash"`
	// Timestamp is in unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// SyncValidations uploads validations and returns how many were accepted.
func (c *Client) SyncValidations(ctx context.Context, validations []Validation) (int, error) {
	var out struct {
		Accepted int `json:"accepted"`
	}
	in := struct {
		Validations []Validation `json:"validations"`
	}{Validations: validations}
	if err := c.do(ctx, http.MethodPost, "/validations/sync", in, &out); err != nil {
		return 0, err
	}
	return out.Accepted, nil
}

func (c *Client) ListCredentials(ctx context.Context) ([]domain.CredentialRecord, error) {
	var out []domain.CredentialRecord
	err := c.do(ctx, http.MethodGet, "/users/me/credentials", nil, &out)
	return out, err
}
