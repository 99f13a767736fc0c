package handlers

import (
	"github.com/gin-gonic/gin"

	"formflow/backend/internal/models"
	"formflow/backend/pkg/response"
)

func GetSettings(c *gin.Context) {
	response.Success(c, eng.Settings())
}

func UpdateSettings(c *gin.Context) {
	var settings models.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := eng.UpdateSettings(c.Request.Context(), settings); err != nil {
		response.InternalServerError(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "settings updated", eng.Settings())
}

// GetWhitelist returns the site allowlist. The list only controls
// whether the page UI starts minimized on unknown sites.
func GetWhitelist(c *gin.Context) {
	response.Success(c, eng.Whitelist())
}

func PutWhitelist(c *gin.Context) {
	var req struct {
		Domains []string `json:"domains"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := eng.SetWhitelist(c.Request.Context(), req.Domains); err != nil {
		response.InternalServerError(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "whitelist updated", eng.Whitelist())
}

// GetDebugLog returns recent recoverable failures: locator misses,
// synthesis failures, persistence failures and malformed input.
func GetDebugLog(c *gin.Context) {
	response.Success(c, eng.Debug().Entries())
}

func ClearDebugLog(c *gin.Context) {
	eng.Debug().Clear()
	response.SuccessWithMessage(c, "debug log cleared", nil)
}
