package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "feedra/pkg/domain-errors"
)

func TestJWTService(t *testing.T) {
	svc := NewJWTService("test-signing-key", "feedra-dev")
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		token, err := svc.GenerateToken("u1", "Asha", "asha@example.com", true, time.Hour)
		require.NoError(t, err)

		claims, err := svc.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.Equal(t, "Asha", claims.Name)
		assert.True(t, claims.Admin)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := svc.GenerateToken("u1", "", "", false, -time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Equal(t, "token has expired", dErrors.MessageOf(err))
	})

	t.Run("wrong key", func(t *testing.T) {
		token, err := NewJWTService("other-key", "feedra-dev").GenerateToken("u1", "", "", false, time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, token)
		assert.Equal(t, "invalid token", dErrors.MessageOf(err))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := NewJWTService("test-signing-key", "elsewhere").GenerateToken("u1", "", "", false, time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken(ctx, "not-a-token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

type verifierFunc func(ctx context.Context, token string) (*auth.Token, error)

func (f verifierFunc) VerifyIDToken(ctx context.Context, token string) (*auth.Token, error) {
	return f(ctx, token)
}

func TestFirebaseValidator(t *testing.T) {
	t.Run("maps uid and claims", func(t *testing.T) {
		v := NewFirebaseValidator(verifierFunc(func(context.Context, string) (*auth.Token, error) {
			return &auth.Token{UID: "uid-7", Claims: map[string]any{
				"name":  "Ravi",
				"email": "ravi@example.com",
				"admin": true,
			}}, nil
		}))

		claims, err := v.ValidateToken(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "uid-7", claims.UserID)
		assert.Equal(t, "ravi@example.com", claims.Email)
		assert.True(t, claims.Admin)
	})

	t.Run("admin must be boolean true", func(t *testing.T) {
		v := NewFirebaseValidator(verifierFunc(func(context.Context, string) (*auth.Token, error) {
			return &auth.Token{UID: "uid-7", Claims: map[string]any{"admin": "true"}}, nil
		}))

		claims, err := v.ValidateToken(context.Background(), "tok")
		require.NoError(t, err)
		assert.False(t, claims.Admin)
	})

	t.Run("verification failure is unauthorized", func(t *testing.T) {
		v := NewFirebaseValidator(verifierFunc(func(context.Context, string) (*auth.Token, error) {
			return nil, errors.New("signature mismatch")
		}))

		_, err := v.ValidateToken(context.Background(), "tok")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
