package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/fieldops/internal/apperror"
	permissiondomain "github.com/smallbiznis/fieldops/internal/permission/domain"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
)

func (s *Server) GetUserPermissions(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId", "user_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := s.authorizePermissionRead(c, actor, userID); err != nil {
		AbortWithError(c, err)
		return
	}

	perm, err := s.permissionSvc.GetUserPermissions(ctx, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": perm})
}

func (s *Server) UpdateUserPermissions(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId", "user_id")
	if !ok {
		return
	}
	var req permissiondomain.Update
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	perm, err := s.permissionSvc.UpdateUserPermissions(c.Request.Context(), userID, req, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.actors.Invalidate(userID)
	c.JSON(http.StatusOK, gin.H{"data": perm})
}

// authorizePermissionRead lets users read their own flags. Reading anyone
// else's needs admin or canManageUsers.
func (s *Server) authorizePermissionRead(c *gin.Context, actor userdomain.Actor, userID snowflake.ID) error {
	if actor.IsAdmin() || actor.ID == userID {
		return nil
	}
	own, err := s.permissionSvc.GetUserPermissions(c.Request.Context(), actor.ID)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return permissiondomain.ErrForbidden
		}
		return err
	}
	if !own.CanManageUsers {
		return permissiondomain.ErrForbidden
	}
	return nil
}
