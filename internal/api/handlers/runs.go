package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"formflow/backend/internal/models"
	"formflow/backend/internal/services"
	"formflow/backend/pkg/database"
	"formflow/backend/pkg/response"
)

func GetRuns(c *gin.Context) {
	var runs []models.MacroRun
	err := database.DB.Order("start_time DESC").Limit(100).Find(&runs).Error
	if err != nil {
		response.InternalServerError(c, "failed to query runs")
		return
	}
	response.Success(c, runs)
}

// GetRunStatus reports one run by its run id.
func GetRunStatus(c *gin.Context) {
	runID := c.Param("id")

	var run models.MacroRun
	err := database.DB.Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			response.NotFound(c, "run not found")
		} else {
			response.InternalServerError(c, "failed to query run")
		}
		return
	}
	response.Success(c, run)
}

func StopRun(c *gin.Context) {
	runID := c.Param("id")
	if !services.GlobalRunner.Stop(runID) {
		response.NotFound(c, "run not active")
		return
	}
	response.SuccessWithMessage(c, "run stopped", nil)
}
