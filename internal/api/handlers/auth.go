package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"formflow/backend/internal/config"
	"formflow/backend/internal/models"
	"formflow/backend/pkg/auth"
	"formflow/backend/pkg/database"
	"formflow/backend/pkg/response"
	"formflow/backend/pkg/utils"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=6"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var user models.User
	err := database.DB.Where("username = ? OR email = ?", req.Username, req.Username).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			response.Unauthorized(c, "invalid username or password")
		} else {
			response.InternalServerError(c, "database query failed")
		}
		return
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid username or password")
		return
	}

	if user.Status != 1 {
		response.Forbidden(c, "account is disabled")
		return
	}

	cfg, _ := config.LoadConfig()
	token, err := auth.GenerateToken(user.ID, user.Username, cfg.JWT.ExpireTime)
	if err != nil {
		response.InternalServerError(c, "failed to generate token")
		return
	}

	user.Password = ""
	response.Success(c, LoginResponse{Token: token, User: user})
}

func Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var existing models.User
	if err := database.DB.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		response.BadRequest(c, "username already exists")
		return
	}
	if err := database.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		response.BadRequest(c, "email already registered")
		return
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		response.InternalServerError(c, "failed to hash password")
		return
	}

	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hashed,
		Status:   1,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		response.InternalServerError(c, "failed to create user")
		return
	}

	user.Password = ""
	response.SuccessWithMessage(c, "registered", user)
}

func HealthCheck(c *gin.Context) {
	response.Success(c, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}
