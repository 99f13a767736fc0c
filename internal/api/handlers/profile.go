package handlers

import (
	"io"

	"github.com/gin-gonic/gin"

	"formflow/backend/pkg/response"
)

// GetProfile returns the personal data profile used for form filling.
func GetProfile(c *gin.Context) {
	response.Success(c, eng.Profile())
}

// PutProfile replaces the profile from user-edited JSON. Malformed
// JSON rejects the whole update and the previous profile stays.
func PutProfile(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "failed to read request body")
		return
	}
	if err := eng.SetProfileJSON(c.Request.Context(), raw); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "profile updated", eng.Profile())
}
