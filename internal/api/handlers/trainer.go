package handlers

import (
	"github.com/gin-gonic/gin"

	"formflow/backend/internal/services"
	"formflow/backend/pkg/response"
)

// Fill runs one form-fill pass over an open session's page.
func Fill(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	session, ok := services.GlobalSessions.Get(req.SessionID)
	if !ok {
		response.NotFound(c, "session not found")
		return
	}

	filled := eng.Fill(session.Page)
	response.Success(c, gin.H{
		"filled": filled,
		"queued": eng.Queue().Len(),
	})
}

// GetTrainingQueue lists the fields the matcher could not confidently
// assign, for the operator to correct.
func GetTrainingQueue(c *gin.Context) {
	response.Success(c, eng.Queue().Items())
}

// RunTrainer forces a fill pass over the session's page and returns
// the refreshed queue.
func RunTrainer(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	session, ok := services.GlobalSessions.Get(req.SessionID)
	if !ok {
		response.NotFound(c, "session not found")
		return
	}

	items, err := eng.Trainer(session.Page).Run()
	if err != nil {
		response.InternalServerError(c, err.Error())
		return
	}
	response.Success(c, items)
}

// CommitTraining records the operator's correction for one queued
// field: a profile key, the ignore sentinel, or nothing (skip).
func CommitTraining(c *gin.Context) {
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

	err := eng.CommitMapping(c.Request.Context(), req.FieldID, req.Site, req.Key, req.Global)
	if err != nil {
		response.InternalServerError(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "training committed", gin.H{
		"queued": eng.Queue().Len(),
	})
}
