package server

import (
	"github.com/gin-gonic/gin"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
)

const contextActorKey = "actor"

func (s *Server) requireCapability(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func actorFromContext(c *gin.Context) (userdomain.Actor, bool) {
	v, ok := c.Get(contextActorKey)
	if !ok {
		return userdomain.Actor{}, false
	}
	actor, ok := v.(userdomain.Actor)
	return actor, ok && actor.ID != 0
}

func mustActor(c *gin.Context) (userdomain.Actor, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
	}
	return actor, ok
}
