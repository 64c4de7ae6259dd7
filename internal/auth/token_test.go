package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickdesk/helpdesk/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	manager := NewTokenManager("test-secret", 60)

	token, expiresAt, err := manager.GenerateToken(domain.Principal{
		ID:   "p1",
		Name: "Agent Smith",
		Role: domain.RoleAgent,
	})
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := manager.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "p1", claims.PrincipalID)
	assert.Equal(t, "Agent Smith", claims.Name)
	assert.Equal(t, domain.RoleAgent, claims.Role)
}

func TestParseTokenRejections(t *testing.T) {
	manager := NewTokenManager("test-secret", 60)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager("other-secret", 60)
		token, _, err := other.GenerateToken(domain.Principal{ID: "p1", Role: domain.RoleUser})
		require.NoError(t, err)
		_, err = manager.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := manager.ParseToken("not.a.token")
		assert.Error(t, err)
	})

	t.Run("unknown role claim", func(t *testing.T) {
		claims := &Claims{
			PrincipalID: "p1",
			Role:        domain.Role("superuser"),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = manager.ParseToken(signed)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := &Claims{
			PrincipalID: "p1",
			Role:        domain.RoleUser,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = manager.ParseToken(signed)
		assert.Error(t, err)
	})

	t.Run("wrong signing method", func(t *testing.T) {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS384, &Claims{
			PrincipalID: "p1",
			Role:        domain.RoleUser,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = manager.ParseToken(signed)
		assert.Error(t, err)
	})
}
