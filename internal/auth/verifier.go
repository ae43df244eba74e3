package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the payload the identity provider signs into access tokens.
type Claims struct {
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	AppMetadata  map[string]interface{} `json:"app_metadata,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// Identity is what a verified token says about its bearer.
type Identity struct {
	Subject  uuid.UUID
	Email    string
	Role     string
	Metadata map[string]interface{}
}

var ErrInvalidToken = errors.New("invalid token")

// Verifier validates HS256 bearer tokens issued by the identity provider.
type Verifier struct {
	secret   []byte
	audience string
}

func NewVerifier(secret []byte, audience string) *Verifier {
	return &Verifier{secret: secret, audience: audience}
}

func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
	}

	role := claims.Role
	if appRole, ok := claims.AppMetadata["role"].(string); ok && appRole != "" {
		role = appRole
	}

	metadata := make(map[string]interface{}, len(claims.UserMetadata))
	for k, val := range claims.UserMetadata {
		metadata[k] = val
	}

	return &Identity{
		Subject:  subject,
		Email:    claims.Email,
		Role:     role,
		Metadata: metadata,
	}, nil
}

// Sign issues a token the Verifier accepts. Production tokens come from the
// identity provider; this exists for local tooling and tests.
func (v *Verifier) Sign(claims Claims) (string, error) {
	if v.audience != "" && len(claims.Audience) == 0 {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
