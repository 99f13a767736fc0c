package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"formflow/backend/internal/models"
	"formflow/backend/internal/recorder"
	"formflow/backend/pkg/response"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StartRecording opens a visible tab at the target URL and begins
// capturing interactions.
func StartRecording(c *gin.Context) {
	var req struct {
		URL  string `json:"url" binding:"required,url"`
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	sessionID := uuid.New().String()
	moves, intervalMs := eng.RecorderOptions()
	opts := recorder.Options{
		RecordMouseMoves:  moves,
		MouseMoveInterval: time.Duration(intervalMs) * time.Millisecond,
	}
	if err := recordings.StartSession(sessionID, req.URL, opts); err != nil {
		response.InternalServerError(c, "failed to start recording: "+err.Error())
		return
	}

	response.SuccessWithMessage(c, "recording started", gin.H{
		"session_id": sessionID,
	})
}

// StopRecording ends the capture. The macro is built here but only
// persisted by SaveRecording; stopping with zero events or without a
// name discards the session.
func StopRecording(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
		Name      string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	macro, err := recordings.StopSession(req.SessionID, req.Name)
	if err != nil {
		switch err {
		case recorder.ErrNoName:
			// Stopped without a name; the client may still save with a
			// name or abandon the capture.
			response.SuccessWithMessage(c, "recording stopped, name required to save", nil)
		case recorder.ErrNothingRecorded:
			recordings.Cleanup(req.SessionID)
			response.BadRequest(c, err.Error())
		default:
			response.InternalServerError(c, "failed to stop recording: "+err.Error())
		}
		return
	}

	response.SuccessWithMessage(c, "recording stopped", macro)
}

func GetRecordingStatus(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.BadRequest(c, "session_id is required")
		return
	}

	recording, events, err := recordings.Status(sessionID)
	if err != nil {
		response.NotFound(c, "recording session not found")
		return
	}
	if events == nil {
		events = make([]models.CapturedEvent, 0)
	}

	response.Success(c, gin.H{
		"is_recording": recording,
		"events":       events,
	})
}

// SaveRecording persists a stopped recording as a named macro.
func SaveRecording(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
		Name      string `json:"name" binding:"required,min=1,max=200"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	session, exists := recordings.Session(req.SessionID)
	if !exists {
		response.NotFound(c, "recording session not found")
		return
	}
	if session.Recording() {
		response.BadRequest(c, "stop the recording first")
		return
	}

	startURL, events := session.Pending()
	if len(events) == 0 {
		recordings.Cleanup(req.SessionID)
		response.BadRequest(c, "nothing recorded")
		return
	}
	macro := models.MacroData{Name: req.Name, StartURL: startURL, Events: events}

	if err := eng.SaveMacro(c.Request.Context(), macro); err != nil {
		response.InternalServerError(c, "failed to save macro: "+err.Error())
		return
	}

	recordings.Cleanup(req.SessionID)
	response.SuccessWithMessage(c, "macro saved", macro)
}

// RecordingWebSocket streams captured events to the client as they
// happen.
func RecordingWebSocket(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, exists := recordings.Session(sessionID)
	if !exists {
		conn.WriteJSON(gin.H{"error": "recording session not found"})
		return
	}
	session.SetWebSocket(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Printf("WebSocket closed: %v", err)
			break
		}
	}
}
