package handlers

import (
	"github.com/gin-gonic/gin"

	"formflow/backend/internal/matcher"
	"formflow/backend/pkg/response"
)

// GetMappings returns the learned field-to-profile-key mappings,
// site-scoped and global.
func GetMappings(c *gin.Context) {
	response.Success(c, eng.Mappings())
}

// PutMapping sets or clears one mapping. An empty key deletes it; the
// ignore sentinel "-" marks the field as never auto-filled.
func PutMapping(c *gin.Context) {
	var req struct {
		FieldID string `json:"field_id" binding:"required"`
		Site    string `json:"site"`
		Key     string `json:"key"`
		Global  bool   `json:"global"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if !req.Global && req.Site == "" {
		response.BadRequest(c, "site is required for a site-scoped mapping")
		return
	}

	err := eng.CommitMapping(c.Request.Context(), req.FieldID, req.Site, req.Key, req.Global)
	if err != nil {
		response.InternalServerError(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "mapping updated", eng.Mappings())
}

// DeleteMapping removes a mapping so the heuristic takes over again.
func DeleteMapping(c *gin.Context) {
	var req struct {
		FieldID string `json:"field_id" binding:"required"`
		Site    string `json:"site"`
		Global  bool   `json:"global"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	site := req.Site
	if req.Global {
		site = matcher.GlobalContext
	}
	err := eng.CommitMapping(c.Request.Context(), req.FieldID, site, "", req.Global)
	if err != nil {
		response.InternalServerError(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "mapping deleted", eng.Mappings())
}
