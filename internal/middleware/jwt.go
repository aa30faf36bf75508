package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/botdock/botdock/internal/pkg/errcode"
	"github.com/botdock/botdock/internal/pkg/jwt"
	"github.com/botdock/botdock/internal/pkg/response"
)

const (
	ContextOrgIDKey  = "org_id"
	ContextUserIDKey = "user_id"
)

func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(parts[1], secret)
		if err != nil {
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextOrgIDKey, claims.OrgID)
		if claims.UserID != "" {
			c.Set(ContextUserIDKey, claims.UserID)
		}
		c.Next()
	}
}
