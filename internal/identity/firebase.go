// Package identity verifies bearer tokens for the HTTP layer.
package identity

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"feedra/internal/platform/middleware"
	dErrors "feedra/pkg/domain-errors"
)

// AdminClaim is the custom claim that grants delete rights.
const AdminClaim = "admin"

// IDTokenVerifier is satisfied by *auth.Client.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseValidator accepts Firebase ID tokens issued to signed-in users.
type FirebaseValidator struct {
	verifier IDTokenVerifier
}

func NewFirebaseValidator(verifier IDTokenVerifier) *FirebaseValidator {
	return &FirebaseValidator{verifier: verifier}
}

func (v *FirebaseValidator) ValidateToken(ctx context.Context, token string) (*middleware.Claims, error) {
	verified, err := v.verifier.VerifyIDToken(ctx, token)
	if err != nil {
		if auth.IsIDTokenExpired(err) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	return &middleware.Claims{
		UserID: verified.UID,
		Name:   stringClaim(verified.Claims, "name"),
		Email:  stringClaim(verified.Claims, "email"),
		Admin:  verified.Claims[AdminClaim] == true,
	}, nil
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}
