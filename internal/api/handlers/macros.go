package handlers

import (
	"io"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"formflow/backend/internal/api/middleware"
	"formflow/backend/internal/engine"
	"formflow/backend/internal/models"
	"formflow/backend/internal/services"
	"formflow/backend/pkg/response"
)

func GetMacros(c *gin.Context) {
	macros := eng.Macros()
	list := make([]models.MacroData, 0, len(macros))
	for _, m := range macros {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	response.Success(c, list)
}

func GetMacro(c *gin.Context) {
	name := c.Param("name")
	macro, ok := eng.Macro(name)
	if !ok {
		response.NotFound(c, "macro not found")
		return
	}
	response.Success(c, macro)
}

func SaveMacro(c *gin.Context) {
	var macro models.MacroData
	if err := c.ShouldBindJSON(&macro); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := eng.SaveMacro(c.Request.Context(), macro); err != nil {
		if err == engine.ErrEmptyName {
			response.BadRequest(c, err.Error())
		} else {
			response.InternalServerError(c, err.Error())
		}
		return
	}
	response.SuccessWithMessage(c, "macro saved", macro)
}

func DeleteMacro(c *gin.Context) {
	name := c.Param("name")
	if err := eng.DeleteMacro(c.Request.Context(), name); err != nil {
		if err == engine.ErrMacroNotFound {
			response.NotFound(c, "macro not found")
		} else {
			response.InternalServerError(c, err.Error())
		}
		return
	}
	response.SuccessWithMessage(c, "macro deleted", nil)
}

// RunMacro starts an asynchronous playback of a macro and returns the
// run id to poll.
func RunMacro(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	runID, err := services.GlobalRunner.StartRun(req.Name, middleware.UserID(c))
	if err != nil {
		if err == engine.ErrMacroNotFound {
			response.NotFound(c, "macro not found")
		} else {
			response.InternalServerError(c, err.Error())
		}
		return
	}

	response.Success(c, gin.H{
		"run_id": runID,
		"status": models.RunStatusPending,
	})
}

// ExportMacros downloads the macro set as a JSON interchange file.
func ExportMacros(c *gin.Context) {
	data, err := eng.ExportMacros()
	if err != nil {
		response.InternalServerError(c, "failed to export macros")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="macros.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

// ImportMacros replaces the macro set from an uploaded interchange
// file. Malformed JSON rejects the whole import.
func ImportMacros(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "failed to read request body")
		return
	}
	count, err := eng.ImportMacros(c.Request.Context(), raw)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "macros imported", gin.H{"count": count})
}
