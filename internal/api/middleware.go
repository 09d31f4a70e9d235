package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware authenticates requests by their bearer token and puts the
// authenticated user id into the context as "userId". The signing secret is
// injected by the router as "jwtSecret".
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "Authentication required")
			c.Abort()
			return
		}

		jwtSecret := c.MustGet("jwtSecret").([]byte)
		parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return jwtSecret, nil
		})
		if err != nil || !parsed.Valid {
			unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			unauthorized(c, "Invalid token claims")
			c.Abort()
			return
		}

		userID, ok := claims["sub"].(string)
		if !ok || userID == "" {
			unauthorized(c, "Invalid user ID in token")
			c.Abort()
			return
		}

		c.Set("userId", userID)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
