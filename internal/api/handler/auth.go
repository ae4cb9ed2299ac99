package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"

	"safeguard/backend/internal/models"
)

const (
	issuer        = "safeguard-service"
	staffIDKey    = "staff_id"
	staffTokenTTL = 12 * time.Hour
	bearerPrefix  = "Bearer "
)

// StaffClaims identifies a staff member on staff routes.
type StaffClaims struct {
	Role models.StaffRole `json:"role"`
	jwt.RegisteredClaims
}

// GenerateStaffToken issues an HS256 token for a staff member.
func GenerateStaffToken(secret []byte, staffID string, role models.StaffRole, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	if ttl <= 0 {
		ttl = staffTokenTTL
	}
	now := time.Now()
	claims := StaffClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   staffID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// StaffAuth admits DSL and admin tokens and stores the staff id on the context.
func (h *Handler) StaffAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) || len(h.JWTSecret) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims := &StaffClaims{}
		_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, bearerPrefix), claims,
			func(*jwt.Token) (interface{}, error) { return h.JWTSecret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
		)
		if err != nil || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if claims.Role != models.RoleDSL && claims.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Set(staffIDKey, claims.Subject)
		c.Next()
	}
}

func staffID(c *gin.Context) string {
	return c.GetString(staffIDKey)
}
