// Package authn verifies bearer tokens issued by the external auth provider.
// Accounts are keyed by the token subject; this package never stores
// credentials, it only validates what the provider signed.
package authn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

const defaultLeeway = 30 * time.Second

// Config holds the token validation parameters.
type Config struct {
	Issuer   string `env:"AUTH_ISSUER,required"`
	Audience string `env:"AUTH_AUDIENCE,required"`
	JWKSURL  string `env:"AUTH_JWKS_URL"`
}

// Identity is the authenticated caller extracted from a verified token.
// AccountID is the token subject and doubles as the account store key.
type Identity struct {
	AccountID string
	Email     string
}

// Verifier validates RS256-family JWTs against the provider's JWKS endpoint.
type Verifier struct {
	keyfunc jwt.Keyfunc
	parser  *jwt.Parser
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithKeyfunc overrides the JWKS-backed key lookup, used in tests to verify
// against a local key.
func WithKeyfunc(fn jwt.Keyfunc) VerifierOption {
	return func(v *Verifier) {
		if fn != nil {
			v.keyfunc = fn
		}
	}
}

// NewVerifier creates a token verifier. Unless a keyfunc override is given,
// the JWKS is fetched from the configured URL, defaulting to the issuer's
// well-known location.
func NewVerifier(config Config, opts ...VerifierOption) (*Verifier, error) {
	issuer := normalizeIssuer(config.Issuer)
	if issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if config.Audience == "" {
		return nil, errors.New("audience is required")
	}

	v := &Verifier{
		parser: jwt.NewParser(
			jwt.WithIssuer(issuer),
			jwt.WithAudience(config.Audience),
			jwt.WithLeeway(defaultLeeway),
			jwt.WithValidMethods([]string{
				jwt.SigningMethodRS256.Name,
				jwt.SigningMethodRS384.Name,
				jwt.SigningMethodRS512.Name,
			}),
		),
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.keyfunc == nil {
		jwksURL := config.JWKSURL
		if jwksURL == "" {
			jwksURL = issuer + ".well-known/jwks.json"
		}
		keyProvider, err := keyfunc.NewDefault([]string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("init JWKS keyfunc: %w", err)
		}
		v.keyfunc = keyProvider.Keyfunc
	}

	return v, nil
}

// Verify parses and validates a bearer token and returns the caller identity.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	token, err := v.parser.Parse(tokenString, v.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return nil, ErrTokenMissingSubject
	}
	email, _ := claims["email"].(string)

	return &Identity{
		AccountID: subject,
		Email:     email,
	}, nil
}

func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return ""
	}
	if !strings.HasSuffix(issuer, "/") {
		issuer += "/"
	}
	return issuer
}
