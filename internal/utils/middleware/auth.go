package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/albumly/billing-svc/internal/utils/errors"
	"github.com/albumly/billing-svc/internal/utils/requestctx"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// AuthorizationHeader is the header key for authorization.
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens.
	BearerPrefix = "Bearer "
	// AuthUserIDKey is the context key for the authenticated user ID.
	AuthUserIDKey = "auth_user_id"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// JWTVerifier verifies HS256 tokens issued by the account service.
// The subject claim carries the numeric user id.
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier creates a verifier. An empty issuer skips the iss check.
func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify implements TokenVerifier.
func (v *JWTVerifier) Verify(tokenString string) (int64, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidToken, claims.Subject)
	}
	return userID, nil
}

// Compile-time check
var _ TokenVerifier = (*JWTVerifier)(nil)

// Auth returns a middleware that requires a valid bearer token and stores
// the token's user id in the context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			abortWith(c, apperrors.Unauthorized("authorization header required"))
			return
		}

		userID, err := verifier.Verify(token)
		if err != nil {
			abortWith(c, apperrors.Unauthorized("invalid or expired token"))
			return
		}

		c.Set(AuthUserIDKey, userID)
		c.Request = c.Request.WithContext(requestctx.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// RequireSelf returns a middleware that rejects requests whose query
// parameter param names a different user than the token. Missing or
// malformed values are left for the handler to reject.
func RequireSelf(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authID, ok := GetAuthUserID(c)
		if !ok {
			abortWith(c, apperrors.Unauthorized(""))
			return
		}

		requested, err := strconv.ParseInt(strings.TrimSpace(c.Query(param)), 10, 64)
		if err == nil && requested != authID {
			abortWith(c, apperrors.Forbidden("token does not grant access to this user"))
			return
		}
		c.Next()
	}
}

// GetAuthUserID returns the authenticated user ID from context.
func GetAuthUserID(c *gin.Context) (int64, bool) {
	if val, exists := c.Get(AuthUserIDKey); exists {
		if userID, ok := val.(int64); ok {
			return userID, true
		}
	}
	return 0, false
}

// extractBearerToken extracts the bearer token from the Authorization header.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader(AuthorizationHeader)
	if !strings.HasPrefix(authHeader, BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
}

func abortWith(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}
