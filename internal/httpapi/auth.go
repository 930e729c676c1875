package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const claimsContextKey = "auth_claims"

// SessionClaims is the JWT payload carried by the session cookie or
// Authorization header.
type SessionClaims struct {
	UserID      string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display,omitempty"`
	jwt.RegisteredClaims
}

type sessionValidator struct {
	signingKey []byte
	issuer     string
	cookieName string
}

func newSessionValidator(signingKey []byte, issuer string, cookieName string) *sessionValidator {
	return &sessionValidator{
		signingKey: signingKey,
		issuer:     issuer,
		cookieName: cookieName,
	}
}

// IssueToken mints a signed session token. Used by tests and local tooling.
func (validator *sessionValidator) IssueToken(userID string, email string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := SessionClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    validator.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(validator.signingKey)
}

// GinMiddleware rejects requests without a valid session token. The token is
// read from the session cookie first, then the Authorization bearer header.
func (validator *sessionValidator) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw := validator.extractToken(ctx)
		if raw == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
			return
		}
		claims := &SessionClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return validator.signingKey, nil
		}, jwt.WithIssuer(validator.issuer), jwt.WithExpirationRequired())
		if err != nil || !token.Valid || strings.TrimSpace(claims.UserID) == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid session"))
			return
		}
		ctx.Set(claimsContextKey, claims)
		ctx.Next()
	}
}

func (validator *sessionValidator) extractToken(ctx *gin.Context) string {
	if cookie, err := ctx.Cookie(validator.cookieName); err == nil && cookie != "" {
		return cookie
	}
	header := ctx.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func getClaims(ctx *gin.Context) *SessionClaims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*SessionClaims)
	return claims
}
