package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ActorKey is the gin context key holding the authenticated user id.
const ActorKey = "user_id"

const (
	AccessTokenTTL  = 24 * time.Hour
	RefreshTokenTTL = 7 * 24 * time.Hour

	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// Claims identifies the user a token was issued to.
type Claims struct {
	UserID uint   `json:"user_id"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

func issue(secret string, userID uint, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// IssueTokens signs an access token and a refresh token for userID.
func IssueTokens(secret string, userID uint) (access, refresh string, err error) {
	if access, err = issue(secret, userID, tokenAccess, AccessTokenTTL); err != nil {
		return "", "", err
	}
	if refresh, err = issue(secret, userID, tokenRefresh, RefreshTokenTTL); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func parse(secret, tokenString, typ string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Type != typ || claims.UserID == 0 {
		return nil, fmt.Errorf("invalid %s token", typ)
	}
	return claims, nil
}

// ParseRefreshToken validates a refresh token and returns its user id.
func ParseRefreshToken(secret, tokenString string) (uint, error) {
	claims, err := parse(secret, tokenString, tokenRefresh)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// JWTAuth resolves the bearer token into the actor id stored under ActorKey.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := parse(secret, tokenString, tokenAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid token",
				"details": err.Error(),
			})
			return
		}

		c.Set(ActorKey, claims.UserID)
		c.Next()
	}
}

// Actor returns the authenticated user id set by JWTAuth.
func Actor(c *gin.Context) uint {
	return c.MustGet(ActorKey).(uint)
}

// AdminKey admits requests whose X-Admin-Key header matches key. An empty key
// disables the admin surface.
func AdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader("X-Admin-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin key required"})
			return
		}
		c.Next()
	}
}
