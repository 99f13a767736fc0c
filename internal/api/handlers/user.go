package handlers

import (
	"github.com/gin-gonic/gin"

	"formflow/backend/internal/api/middleware"
	"formflow/backend/internal/models"
	"formflow/backend/pkg/database"
	"formflow/backend/pkg/response"
	"formflow/backend/pkg/utils"
)

func GetAccount(c *gin.Context) {
	var user models.User
	if err := database.DB.First(&user, middleware.UserID(c)).Error; err != nil {
		response.InternalServerError(c, "failed to load user")
		return
	}
	user.Password = ""
	response.Success(c, user)
}

func UpdateAccount(c *gin.Context) {
	userID := middleware.UserID(c)

	var req struct {
		Email    string `json:"email" binding:"omitempty,email"`
		Password string `json:"password" binding:"omitempty,min=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		response.InternalServerError(c, "failed to load user")
		return
	}

	if req.Email != "" && req.Email != user.Email {
		var existing models.User
		if err := database.DB.Where("email = ? AND id != ?", req.Email, userID).First(&existing).Error; err == nil {
			response.BadRequest(c, "email already in use")
			return
		}
		user.Email = req.Email
	}

	if req.Password != "" {
		hashed, err := utils.HashPassword(req.Password)
		if err != nil {
			response.InternalServerError(c, "failed to hash password")
			return
		}
		user.Password = hashed
	}

	if err := database.DB.Save(&user).Error; err != nil {
		response.InternalServerError(c, "failed to update user")
		return
	}

	user.Password = ""
	response.SuccessWithMessage(c, "updated", user)
}
