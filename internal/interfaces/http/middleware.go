package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/incaptta/crm-backend/internal/domain/entity"
	"github.com/incaptta/crm-backend/internal/service"
)

const actorContextKey = "actorProfile"

// actorMiddleware resolves the acting user's profile from the X-User-UID
// header. Session/token verification happens upstream; this layer only needs
// the identity for the workflow role check.
func actorMiddleware(profiles *service.ProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetHeader("X-User-UID")
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "authentication required",
			})
			return
		}

		profile, err := profiles.Get(c.Request.Context(), uid)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrUnauthenticated) {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, Response{
				Success: false,
				Error:   "unable to resolve user profile",
			})
			return
		}
		if !profile.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{
				Success: false,
				Error:   "account suspended",
			})
			return
		}

		c.Set(actorContextKey, profile)
		c.Next()
	}
}

func actorFrom(c *gin.Context) *entity.UserProfile {
	if v, ok := c.Get(actorContextKey); ok {
		if profile, ok := v.(*entity.UserProfile); ok {
			return profile
		}
	}
	return nil
}
