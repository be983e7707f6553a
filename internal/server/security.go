package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/fieldops/internal/security"
)

type passwordStrengthRequest struct {
	Password string `json:"password"`
}

func (s *Server) SecurityReport(c *gin.Context) {
	report, err := s.securitySvc.GenerateReport(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) SecurityEvents(c *gin.Context) {
	hours, err := parseOptionalInt(c.Query("hours"))
	if err != nil || (hours != nil && (*hours <= 0 || *hours > maxEventHours)) {
		AbortWithError(c, newValidationError("hours", "invalid_hours", "hours must be between 1 and 720"))
		return
	}
	window := 24
	if hours != nil {
		window = *hours
	}

	events, err := s.securitySvc.RecentEvents(c.Request.Context(), window)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}

// PasswordStrength scores a candidate password. The password is never logged
// or recorded as an event.
func (s *Server) PasswordStrength(c *gin.Context) {
	var req passwordStrengthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": security.AssessPasswordStrength(req.Password)})
}
