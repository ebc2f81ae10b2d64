package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/prepdeck/internal/export"
	"github.com/yoockh/prepdeck/internal/services"
	"github.com/yoockh/prepdeck/internal/utils"
)

type ExportHandler struct {
	svc services.ExportService
}

func NewExportHandler(svc services.ExportService) *ExportHandler {
	return &ExportHandler{svc: svc}
}

// Export streams the file, or with persist=true returns where it was stored.
func (h *ExportHandler) Export(c *gin.Context) {
	const op = "ExportHandler.Export"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	from, err := queryTime(c, "from", false)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "from must be RFC3339 or YYYY-MM-DD", err))
		return
	}
	to, err := queryTime(c, "to", true)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "to must be RFC3339 or YYYY-MM-DD", err))
		return
	}

	format := export.Format(strings.ToLower(c.DefaultQuery("format", string(export.FormatJSON))))
	opts := services.ExportOptions{
		Options: export.Options{
			Format:           format,
			IncludeMetrics:   queryBool(c, "metrics"),
			IncludeResponses: queryBool(c, "responses"),
			IncludeFeedback:  queryBool(c, "feedback"),
			From:             from,
			To:               to,
			DisallowEmpty:    c.Query("allow_empty") != "" && !queryBool(c, "allow_empty"),
		},
		Persist: queryBool(c, "persist"),
	}

	res, err := h.svc.ExportUserData(c.Request.Context(), userID, opts)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("X-Export-Omitted", strings.Join(res.Omitted, ","))
	if res.Truncated {
		c.Header("X-Export-Truncated", "true")
	}
	if opts.Persist {
		c.JSON(http.StatusCreated, gin.H{
			"stored_path": res.StoredPath,
			"filename":    res.Filename,
			"mime_type":   res.MimeType,
			"count":       res.Count,
			"truncated":   res.Truncated,
		})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	c.Data(http.StatusOK, res.MimeType, res.Data)
}
