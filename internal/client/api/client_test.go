package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eventpass/eventpass-api/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/v1", WithBearer("jwt-123"), WithLogger(zap.NewNop()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Claim(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/claims", r.URL.Path)
		assert.Equal(t, "Bearer jwt-123", r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tok-1", body["token"])

		writeJSON(w, http.StatusCreated, domain.CredentialRecord{ID: "rec-1", UserID: "u1", EventID: "e1"})
	})

	rec, err := c.Claim(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", rec.ID)
}

func TestClient_ErrorCodes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		code    string
		wantErr error
	}{
		{name: "already claimed", status: http.StatusConflict, code: "ALREADY_CLAIMED", wantErr: domain.ErrAlreadyClaimed},
		{name: "not synced", status: http.StatusConflict, code: "ORGANIZER_NOT_SYNCED", wantErr: domain.ErrOrganizerNotSynced},
		{name: "expired", status: http.StatusUnauthorized, code: "EXPIRED_TOKEN", wantErr: domain.ErrExpiredToken},
		{name: "decryption", status: http.StatusBadRequest, code: "DECRYPTION_FAILURE", wantErr: domain.ErrDecryption},
		{name: "missing key", status: http.StatusPreconditionFailed, code: "MISSING_SESSION_KEY", wantErr: domain.ErrMissingSessionKey},
		{name: "gateway down", status: http.StatusBadGateway, wantErr: domain.ErrNetworkUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.code == "" {
					w.WriteHeader(tt.status)
					return
				}
				writeJSON(w, tt.status, map[string]any{
					"status_code": tt.status,
					"error_code":  tt.code,
					"error":       "boom",
				})
			})

			_, err := c.ClaimSecure(context.Background(), "e1", "aa:bb")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestClient_UnmappedCodes(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{status: http.StatusForbidden, code: "PERMISSION_DENIED"},
		{status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{status: http.StatusInternalServerError, code: "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]any{"error_code": tt.code})
			})

			_, err := c.Claim(context.Background(), "tok")
			require.Error(t, err)
			assert.False(t, domain.IsRetryable(err))
			assert.False(t, domain.IsSatisfied(err))
			assert.False(t, domain.IsTerminal(err))
		})
	}
}

func TestClient_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, WithLogger(zap.NewNop()))
	_, err := c.Claim(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrNetworkUnavailable)
	assert.True(t, domain.IsRetryable(err))
}

func TestClient_SyncAndHandshake(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/validations/sync":
			var body struct {
				Validations []Validation `json:"validations"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeJSON(w, http.StatusOK, map[string]int{"accepted": len(body.Validations)})
		case "/api/v1/events/e1/handshake":
			writeJSON(w, http.StatusOK, map[string]string{"event_id": "e1", "session_key": "ab12"})
		case "/api/v1/auth/login":
			writeJSON(w, http.StatusOK, map[string]any{"token": "fresh", "user": map[string]string{"id": "u1"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	n, err := c.SyncValidations(context.Background(), []Validation{{EventID: "e1", UserID: "u1", Hash: "h"}, {EventID: "e1", UserID: "u2", Hash: "h"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	key, err := c.Handshake(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "ab12", key)

	user, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "fresh", c.bearer)
}
