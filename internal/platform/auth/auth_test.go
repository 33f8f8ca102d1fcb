package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/option"
)

func newLocalAuthority(t *testing.T, opts ...LocalOption) *LocalAuthority {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("kuusk123"), bcrypt.MinCost)
	require.NoError(t, err)
	authority, err := NewLocalAuthority(map[string]string{"Editor@Almarpuit.ee": string(hash)}, "test-secret", opts...)
	require.NoError(t, err)
	return authority
}

func TestLocalAuthoritySignInAndVerify(t *testing.T) {
	authority := newLocalAuthority(t)
	ctx := context.Background()

	identity, err := authority.SignIn(ctx, " editor@almarpuit.ee ", "kuusk123")
	require.NoError(t, err)
	require.Equal(t, "editor@almarpuit.ee", identity.Email)
	require.Equal(t, "local:editor@almarpuit.ee", identity.UID)
	require.NotEmpty(t, identity.Token)

	verified, err := authority.Verify(ctx, identity.Token)
	require.NoError(t, err)
	require.Equal(t, identity.UID, verified.UID)
	require.Equal(t, identity.Email, verified.Email)
}

func TestLocalAuthorityRejectsBadPassword(t *testing.T) {
	authority := newLocalAuthority(t)
	_, err := authority.SignIn(context.Background(), "editor@almarpuit.ee", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = authority.SignIn(context.Background(), "nobody@almarpuit.ee", "kuusk123")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLocalAuthorityExpiredToken(t *testing.T) {
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	authority := newLocalAuthority(t, WithLocalClock(func() time.Time { return past }), WithTokenTTL(time.Hour))

	identity, err := authority.SignIn(context.Background(), "editor@almarpuit.ee", "kuusk123")
	require.NoError(t, err)

	_, err = authority.Verify(context.Background(), identity.Token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestLocalAuthorityRejectsForeignSignature(t *testing.T) {
	authority := newLocalAuthority(t)
	other, err := NewLocalAuthority(map[string]string{"editor@almarpuit.ee": "x"}, "other-secret")
	require.NoError(t, err)

	identity, err := authority.SignIn(context.Background(), "editor@almarpuit.ee", "kuusk123")
	require.NoError(t, err)

	_, err = other.Verify(context.Background(), identity.Token)
	require.ErrorIs(t, err, ErrTokenInvalid)
	_, err = authority.Verify(context.Background(), "not-a-token")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestFirebasePasswordSignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/verifyPassword"), r.URL.Path)
		require.Equal(t, "web-key", r.URL.Query().Get("key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		if body["password"] != "kuusk123" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"INVALID_LOGIN_CREDENTIALS"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"idToken":"id-token","localId":"uid-1","email":"editor@almarpuit.ee"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	signIn, err := NewFirebasePasswordSignIn(ctx, "web-key", option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	identity, err := signIn.SignIn(ctx, "Editor@almarpuit.ee", "kuusk123")
	require.NoError(t, err)
	require.Equal(t, "uid-1", identity.UID)
	require.Equal(t, "id-token", identity.Token)

	_, err = signIn.SignIn(ctx, "editor@almarpuit.ee", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
