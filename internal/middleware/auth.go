package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"chemformula/internal/apperr"
	"chemformula/internal/auth"
	"chemformula/pkg/logger"
	"chemformula/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	principalKey    = "principal"
	AccessTokenName = "access_token"
)

// PrincipalResolver maps a verified identity onto a local user.
type PrincipalResolver interface {
	Authenticate(ctx context.Context, ident *auth.Identity) (*auth.Principal, error)
}

type Authenticator struct {
	verifier *auth.Verifier
	users    PrincipalResolver
	log      *logger.Logger
}

func NewAuthenticator(verifier *auth.Verifier, users PrincipalResolver, log *logger.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, users: users, log: log}
}

// TokenFromRequest reads the bearer token from the access_token cookie, then
// from the Authorization header.
func TokenFromRequest(c *gin.Context) (string, error) {
	if token, err := c.Cookie(AccessTokenName); err == nil && token != "" {
		return token, nil
	}
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", apperr.Unauthorized("Authorization is missing", nil)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperr.Unauthorized("Invalid authorization format. Expected 'Bearer <token>'", nil)
	}
	return strings.TrimSpace(parts[1]), nil
}

// PrincipalFromToken verifies token and resolves it to an active user.
func (a *Authenticator) PrincipalFromToken(ctx context.Context, token string) (*auth.Principal, error) {
	ident, err := a.verifier.Verify(token)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid token", err)
	}
	return a.users.Authenticate(ctx, ident)
}

// Authenticate rejects requests without a valid token for an active user and
// stores the principal for downstream handlers.
func (a *Authenticator) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := TokenFromRequest(c)
		if err != nil {
			response.Fail(c, a.log, err)
			return
		}
		principal, err := a.PrincipalFromToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				a.log.Debug("token rejected", "path", c.Request.URL.Path, "error", err)
			}
			response.Fail(c, a.log, err)
			return
		}
		SetPrincipal(c, principal)
		c.Next()
	}
}

func SetPrincipal(c *gin.Context, p *auth.Principal) {
	c.Set(principalKey, p)
}

// CurrentPrincipal returns the authenticated caller, or nil on public routes.
func CurrentPrincipal(c *gin.Context) *auth.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*auth.Principal)
	return p
}

// RequireCapability lets the request through only when the principal's role
// holds every listed capability.
func RequireCapability(policy *auth.Policy, caps ...auth.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := CurrentPrincipal(c)
		if principal == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("Authentication required"))
			return
		}
		for _, capability := range caps {
			if !policy.Allows(principal, capability) {
				c.AbortWithStatusJSON(http.StatusForbidden,
					response.Error("Access denied: missing capability '"+string(capability)+"'"))
				return
			}
		}
		c.Next()
	}
}
