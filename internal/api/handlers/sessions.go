package handlers

import (
	"github.com/gin-gonic/gin"

	"formflow/backend/internal/services"
	"formflow/backend/pkg/response"
)

// OpenSession launches a visible browser tab for interactive filling
// and training. The response reports whether the page's hostname is
// on the allowlist.
func OpenSession(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	session, err := services.GlobalSessions.Open(req.URL)
	if err != nil {
		response.InternalServerError(c, "failed to open session: "+err.Error())
		return
	}

	hostname := session.Page.Hostname()
	response.Success(c, gin.H{
		"session_id": session.ID,
		"hostname":   hostname,
		"allowed":    eng.IsAllowed(hostname),
	})
}

func CloseSession(c *gin.Context) {
	if !services.GlobalSessions.Close(c.Param("id")) {
		response.NotFound(c, "session not found")
		return
	}
	response.SuccessWithMessage(c, "session closed", nil)
}
