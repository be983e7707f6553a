package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type softDeleteRequest struct {
	Reason *string `json:"reason"`
}

type hardDeleteRequest struct {
	Confirmation string `json:"confirmation"`
}

func (s *Server) SoftDeleteService(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "service_id")
	if !ok {
		return
	}
	var req softDeleteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	result, err := s.vaultSvc.SoftDelete(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result.Record})
}

func (s *Server) HardDeleteService(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "service_id")
	if !ok {
		return
	}
	var req hardDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.vaultSvc.HardDelete(c.Request.Context(), id, strings.TrimSpace(req.Confirmation), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result.Deleted})
}

// GetHardDeleteConfirmation reveals the value a hard delete must be confirmed
// with. The delete endpoint itself never echoes it.
func (s *Server) GetHardDeleteConfirmation(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "service_id")
	if !ok {
		return
	}

	confirmation, err := s.vaultSvc.ConfirmationFor(c.Request.Context(), id, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": confirmation})
}

func (s *Server) ListDeletedServices(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	records, err := s.vaultSvc.ListDeleted(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) GetDeletedService(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "service_id")
	if !ok {
		return
	}

	record, err := s.vaultSvc.GetDeleted(c.Request.Context(), id, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) RestoreDeletedService(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "service_id")
	if !ok {
		return
	}

	result, err := s.vaultSvc.Restore(c.Request.Context(), id, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":                result.Service,
		"original_service_id": result.OriginalServiceID,
		"new_service_id":      result.NewServiceID,
	})
}
