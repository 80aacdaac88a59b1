package middleware

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"gift-platform/internal/logger"
)

// Roles a verified token may carry.
const (
	RoleCreator = "creator"
	RoleOverlay = "overlay"
)

const (
	ctxCreatorID = "creatorID"
	ctxRole      = "role"
)

// Claims is the token body: sub is the creator id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Identity struct {
	CreatorID int64
	Role      string
}

// AuthMiddleware verifies the bearer token and stores the (creator, role)
// pair on the context. Tokens without a role act as the creator.
func AuthMiddleware(jwtSecret string, log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.Debugw("auth header format is not Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		var claims Claims
		token, err := jwt.ParseWithClaims(parts[1], &claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			log.Debugw("token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		creatorID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil || creatorID <= 0 {
			log.Debugw("invalid sub claim in token", "sub", claims.Subject)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		role := claims.Role
		if role == "" {
			role = RoleCreator
		}
		if role != RoleCreator && role != RoleOverlay {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Unknown role"})
			return
		}

		c.Set(ctxCreatorID, creatorID)
		c.Set(ctxRole, role)
		c.Next()
	}
}

// RequireRole rejects identities whose role is not listed.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
			return
		}
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Role not allowed"})
	}
}

func IdentityFrom(c *gin.Context) (Identity, bool) {
	id, ok := c.Get(ctxCreatorID)
	if !ok {
		return Identity{}, false
	}
	creatorID, ok := id.(int64)
	if !ok {
		return Identity{}, false
	}
	return Identity{CreatorID: creatorID, Role: c.GetString(ctxRole)}, true
}

// SharedSecret guards operator endpoints with a header secret. An empty
// secret disables the endpoint.
func SharedSecret(header, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(header)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid secret", "code": "INVALID_SECRET"})
			return
		}
		c.Next()
	}
}
