package middleware

import (
	"codequest_admin/internal/config"
	"codequest_admin/internal/model"
	"codequest_admin/internal/util"
	"codequest_admin/pkg/logger"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware accepts a bearer token or a token query parameter.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		cfg := c.MustGet("config").(*config.Config)
		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("rejected token", zap.String("path", c.FullPath()), zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

// RoleMiddleware lets admins through every role check.
func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := false
		for _, role := range roles {
			if user.Role == model.Admin || user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			logger.Log.Info("role check failed", zap.String("subject", user.Subject), zap.String("role", string(user.Role)))
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ConfigMiddleware exposes the current config to handlers. get is called
// per request so reloads take effect without restarting.
func ConfigMiddleware(get func() *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("config", get())
		c.Next()
	}
}
