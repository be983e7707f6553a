package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/fieldops/internal/apperror"
	"github.com/smallbiznis/fieldops/internal/auditcontext"
	"github.com/smallbiznis/fieldops/internal/security"
	"go.uber.org/zap"
)

// Identity authenticates the bearer token (or session cookie) and stores the
// resolved actor on the request.
func (s *Server) Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			if cookie, err := c.Cookie(sessionCookieName); err == nil {
				raw = strings.TrimSpace(cookie)
			}
		}
		userID, err := parseToken(s.cfg.AuthJWTSecret, s.cfg.AuthJWTIssuer, raw, s.clock.Now())
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor, err := s.actors.Resolve(c.Request.Context(), userID)
		if err != nil {
			if apperror.IsKind(err, apperror.KindNotFound) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, err)
			return
		}

		c.Set(contextActorKey, actor)
		ctx := auditcontext.WithActor(c.Request.Context(), string(actor.Role), actor.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// SecurityGate throttles each (client ip, route) pair and records one
// api_access event per admitted request.
func (s *Server) SecurityGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		ip := c.ClientIP()

		result, err := s.securitySvc.CheckRateLimit(ctx, ip, endpoint)
		if err != nil {
			s.log.Warn("rate limit check failed", zap.Error(err))
		}
		if result != nil && result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if result != nil && !result.Allowed {
			seconds := int(result.RetryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()

		_, userID := auditcontext.ActorFromContext(c.Request.Context())
		s.securitySvc.LogEvent(ctx, security.EventAPIAccess, security.SeverityLow,
			c.Request.Method+" "+c.Request.URL.Path, ip, userID, c.Request.UserAgent())
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrRouteNotFound)
	})
	s.engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, errorResponse{Error: errorPayload{
			Type:    "method_not_allowed",
			Message: "method not allowed",
		}})
	})
}
