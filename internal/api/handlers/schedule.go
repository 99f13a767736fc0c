package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"formflow/backend/internal/api/middleware"
	"formflow/backend/internal/models"
	"formflow/backend/internal/services"
	"formflow/backend/pkg/database"
	"formflow/backend/pkg/response"
)

func GetSchedules(c *gin.Context) {
	var schedules []models.Schedule
	err := database.DB.Preload("Macro").Order("created_at DESC").Find(&schedules).Error
	if err != nil {
		response.InternalServerError(c, "failed to query schedules")
		return
	}
	response.Success(c, schedules)
}

func GetSchedule(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid schedule id")
		return
	}

	var schedule models.Schedule
	err = database.DB.Preload("Macro").First(&schedule, uint(id)).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			response.NotFound(c, "schedule not found")
		} else {
			response.InternalServerError(c, "failed to query schedule")
		}
		return
	}
	response.Success(c, schedule)
}

// CreateSchedule registers a future macro run, one-shot or recurring.
func CreateSchedule(c *gin.Context) {
	var req struct {
		MacroName  string `json:"macro_name" binding:"required"`
		Date       string `json:"date" binding:"required"`
		Time       string `json:"time" binding:"required"`
		Recurrence string `json:"recurrence" binding:"omitempty,oneof=none daily weekly monthly"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var macro models.Macro
	if err := database.DB.Where("name = ?", req.MacroName).First(&macro).Error; err != nil {
		response.NotFound(c, "macro not found")
		return
	}

	if req.Recurrence == "" {
		req.Recurrence = "none"
	}
	schedule := models.Schedule{
		MacroID:    macro.ID,
		Date:       req.Date,
		Time:       req.Time,
		Recurrence: req.Recurrence,
		Status:     1,
		UserID:     middleware.UserID(c),
	}
	if err := database.DB.Create(&schedule).Error; err != nil {
		response.InternalServerError(c, "failed to create schedule")
		return
	}

	schedule.Macro = macro
	if err := services.GlobalScheduler.AddSchedule(schedule); err != nil {
		database.DB.Delete(&schedule)
		response.BadRequest(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "schedule created", schedule)
}

func DeleteSchedule(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid schedule id")
		return
	}

	var schedule models.Schedule
	if err := database.DB.First(&schedule, uint(id)).Error; err != nil {
		response.NotFound(c, "schedule not found")
		return
	}

	services.GlobalScheduler.RemoveSchedule(schedule.ID)
	if err := database.DB.Delete(&schedule).Error; err != nil {
		response.InternalServerError(c, "failed to delete schedule")
		return
	}
	response.SuccessWithMessage(c, "schedule deleted", nil)
}
