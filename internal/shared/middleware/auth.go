package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"pageant-backend/internal/shared/response"
	"pageant-backend/pkg/jwt"
)

// OperatorAuth guards the back-office payment endpoints. Only requests
// carrying a valid operator bearer token get through.
func OperatorAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateToken(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}

		c.Set("operator", claims.Subject)
		c.Set("operator_role", claims.Role)

		c.Next()
	}
}
