package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGoogleTestServer(t *testing.T, userInfo map[string]interface{}, tokenStatus int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if tokenStatus != http.StatusOK {
			w.WriteHeader(tokenStatus)
			return
		}
		assert.Equal(t, "good-code", r.PostForm.Get("code"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(userInfo)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogleProvider(srv *httptest.Server) *GoogleProvider {
	return NewGoogleProvider(GoogleOAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/api/auth/google/callback",
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
	})
}

func TestGoogleProvider_AuthCodeURL(t *testing.T) {
	p := NewGoogleProvider(GoogleOAuthConfig{
		ClientID:    "client-id",
		RedirectURL: "http://localhost:8080/api/auth/google/callback",
	})

	raw := p.AuthCodeURL("state-xyz")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "http://localhost:8080/api/auth/google/callback", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "email")
	assert.Contains(t, q.Get("scope"), "profile")
}

func TestGoogleProvider_Exchange(t *testing.T) {
	srv := newGoogleTestServer(t, map[string]interface{}{
		"sub":            "google-sub-1",
		"email":          "User@Gmail.com",
		"email_verified": true,
		"name":           "Google User",
		"picture":        "https://lh3.example.com/u.png",
	}, http.StatusOK)

	profile, err := newTestGoogleProvider(srv).Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "google-sub-1", profile.ProviderID)
	assert.Equal(t, "user@gmail.com", profile.Email)
	assert.Equal(t, "Google User", profile.Name)
	assert.Equal(t, "https://lh3.example.com/u.png", profile.AvatarURL)
}

func TestGoogleProvider_ExchangeFailures(t *testing.T) {
	t.Run("token endpoint error", func(t *testing.T) {
		srv := newGoogleTestServer(t, nil, http.StatusBadRequest)
		_, err := newTestGoogleProvider(srv).Exchange(context.Background(), "good-code")
		assert.ErrorIs(t, err, ErrProviderExchange)
		assert.ErrorIs(t, err, ErrUpstream)
	})

	t.Run("unverified email", func(t *testing.T) {
		srv := newGoogleTestServer(t, map[string]interface{}{
			"sub":            "google-sub-2",
			"email":          "x@gmail.com",
			"email_verified": false,
		}, http.StatusOK)
		_, err := newTestGoogleProvider(srv).Exchange(context.Background(), "good-code")
		assert.ErrorIs(t, err, ErrUpstream)
	})

	t.Run("missing code", func(t *testing.T) {
		srv := newGoogleTestServer(t, nil, http.StatusOK)
		_, err := newTestGoogleProvider(srv).Exchange(context.Background(), "")
		assert.ErrorIs(t, err, ErrProviderExchange)
	})
}
