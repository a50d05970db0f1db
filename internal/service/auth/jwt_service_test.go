package auth

import (
	"context"
	"testing"
	"time"

	"github.com/phrazzld/shelfd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret  = "test-secret-that-is-long-enough-for-testing"
	wrongSecret = "wrong-secret-that-is-long-enough-for-testing"
)

var fixedTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short", TokenLifetimeMinutes: 60})
	assert.Error(t, err)

	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 60})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	tokenLifetime := 60 * time.Minute
	svc := newHMACJWTService(testSecret, tokenLifetime, fixedClock(fixedTime))

	t.Run("generates valid token", func(t *testing.T) {
		t.Parallel()
		token, err := svc.GenerateToken(context.Background(), Principal{Name: " alice ", Admin: true})
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := svc.ValidateToken(context.Background(), token)
		require.NoError(t, err)

		assert.Equal(t, Principal{Name: "alice", Admin: true}, claims.Principal())
		assert.Equal(t, "alice", claims.Subject)
		assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
		assert.Equal(t, fixedTime.Add(tokenLifetime).Unix(), claims.ExpiresAt.Unix())
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("requires a name", func(t *testing.T) {
		t.Parallel()
		_, err := svc.GenerateToken(context.Background(), Principal{Name: "  "})
		assert.ErrorIs(t, err, ErrMissingName)
	})
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	tokenLifetime := 60 * time.Minute
	generate := func(secret string) string {
		token, err := newHMACJWTService(secret, tokenLifetime, fixedClock(fixedTime)).
			GenerateToken(context.Background(), Principal{Name: "bob"})
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name    string
		token   string
		now     time.Time
		wantErr error
	}{
		{name: "valid token", token: generate(testSecret), now: fixedTime},
		{name: "within clock skew", token: generate(testSecret), now: fixedTime.Add(tokenLifetime + time.Minute)},
		{name: "expired token", token: generate(testSecret), now: fixedTime.Add(tokenLifetime + time.Hour), wantErr: ErrExpiredToken},
		{name: "invalid signature", token: generate(wrongSecret), now: fixedTime, wantErr: ErrInvalidToken},
		{name: "malformed token", token: "this.is.not.a.valid.jwt.token", now: fixedTime, wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newHMACJWTService(testSecret, tokenLifetime, fixedClock(tt.now))
			claims, err := svc.ValidateToken(context.Background(), tt.token)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "bob", claims.Name)
			assert.False(t, claims.Admin)
		})
	}
}
