// Package identity verifies Firebase ID tokens and resolves them to a user id.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/felipepmaragno/stem-explainer/internal/domain"
)

var (
	ErrMissingToken = errors.New("missing id token")
	ErrInvalidToken = errors.New("invalid id token")
)

const (
	issuerPrefix = "https://securetoken.google.com/"
	maxSubject   = 128
	leeway       = time.Minute
)

type Verifier interface {
	Verify(ctx context.Context, idToken string) (domain.Identity, error)
}

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type FirebaseVerifier struct {
	projectID string
	keys      KeySource
	now       func() time.Time
}

type Option func(*FirebaseVerifier)

func WithClock(now func() time.Time) Option {
	return func(v *FirebaseVerifier) { v.now = now }
}

func NewFirebaseVerifier(projectID string, keys KeySource, opts ...Option) *FirebaseVerifier {
	v := &FirebaseVerifier{
		projectID: projectID,
		keys:      keys,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (domain.Identity, error) {
	if idToken == "" {
		return domain.Identity{}, ErrMissingToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(issuerPrefix+v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(v.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(idToken, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid header")
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" || len(claims.Subject) > maxSubject {
		return domain.Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	return domain.Identity{UserID: claims.Subject, Email: claims.Email}, nil
}
