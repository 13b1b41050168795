package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/antichaos/antichaos/internal/api/handler"
	"github.com/antichaos/antichaos/internal/identity"
	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	initDataHeader = "X-Telegram-Init-Data"
	// guestHeader carries the guest session token in both directions.
	guestHeader       = "X-Guest-User-Id"
	sessionGuestToken = "guest_token"
)

// requireUser resolves the caller to a user, creating guests on first sight.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		sessionToken, _ := session.Get(sessionGuestToken).(string)

		user, err := s.resolver.Resolve(c.Request.Context(), identity.Request{
			InitData:     c.GetHeader(initDataHeader),
			GuestToken:   c.GetHeader(guestHeader),
			SessionToken: sessionToken,
			ClientIP:     identity.ClientIP(c.Request),
		})
		if err != nil {
			if errors.Is(err, identity.ErrInvalidInitData) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid Telegram init data"})
				return
			}
			log.Error("Failed to resolve user", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		if user.IsGuest() && user.GuestToken != nil {
			c.Header(guestHeader, *user.GuestToken)
			if sessionToken != *user.GuestToken {
				session.Set(sessionGuestToken, *user.GuestToken)
				if err := session.Save(); err != nil {
					log.Warn("Failed to save guest session", "error", err)
				}
			}
		}

		c.Set(handler.UserKey, user)
		c.Next()
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.engine.IsAdmin(handler.CurrentUser(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied. Admin only."})
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
