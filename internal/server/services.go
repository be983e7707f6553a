package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	servicedomain "github.com/smallbiznis/fieldops/internal/serviceorder/domain"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
)

type listServicesQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
	Status    string `form:"status"`
}

func (s *Server) ListServices(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var query listServicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.serviceSvc.List(c.Request.Context(), servicedomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Status: query.Status,
	}, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Services, "page_info": resp.PageInfo})
}

func (s *Server) GetService(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "service_id")
	if !ok {
		return
	}

	svc, err := s.serviceSvc.Get(c.Request.Context(), id, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": svc})
}

func (s *Server) CreateService(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req servicedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	svc, err := s.serviceSvc.Create(c.Request.Context(), req, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": svc})
}

func (s *Server) EditService(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "service_id")
	if !ok {
		return
	}
	var req servicedomain.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	svc, err := s.serviceSvc.Edit(c.Request.Context(), id, req, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": svc})
}

func (s *Server) UpdateServiceStatus(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "service_id")
	if !ok {
		return
	}
	var req servicedomain.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.serviceSvc.Transition(c.Request.Context(), id, req, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body := gin.H{
		"data":       result.Service,
		"old_status": result.OldStatus,
		"new_status": result.NewStatus,
	}
	if result.Notification != "" {
		body["notification"] = result.Notification
	}
	c.JSON(http.StatusOK, body)
}

// ListServiceAuditLogs returns the ledger of one service the caller can see.
func (s *Server) ListServiceAuditLogs(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "service_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if !actor.IsAdmin() {
		if _, err := s.serviceSvc.Get(ctx, id, actor); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	entries, err := s.auditSvc.Query(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}
