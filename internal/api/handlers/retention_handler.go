package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/prepdeck/internal/models"
	"github.com/yoockh/prepdeck/internal/services"
	"github.com/yoockh/prepdeck/internal/utils"
)

// SweepEnqueuer queues an asynchronous retention pass and returns its job id.
type SweepEnqueuer func(ctx context.Context, userID string) (string, error)

type RetentionHandler struct {
	svc     services.RetentionService
	enqueue SweepEnqueuer
}

// NewRetentionHandler wires the retention endpoints. enqueue may be nil when
// no sweep queue is configured.
func NewRetentionHandler(svc services.RetentionService, enqueue SweepEnqueuer) *RetentionHandler {
	return &RetentionHandler{svc: svc, enqueue: enqueue}
}

type sessionIDsRequest struct {
	SessionIDs []string `json:"session_ids" binding:"required,min=1"`
}

type applyRequest struct {
	Offset int                     `json:"offset"`
	Policy *models.RetentionPolicy `json:"policy,omitempty"`
}

func (h *RetentionHandler) GetPolicy(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	p, err := h.svc.GetPolicy(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *RetentionHandler) SetPolicy(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var p models.RetentionPolicy
	if err := c.ShouldBindJSON(&p); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "RetentionHandler.SetPolicy", "invalid request body", err))
		return
	}
	saved, err := h.svc.SetPolicy(c.Request.Context(), userID, p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// Apply runs one bounded pass synchronously. Without a policy in the body
// the user's stored policy is used.
func (h *RetentionHandler) Apply(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req applyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "RetentionHandler.Apply", "invalid request body", err))
			return
		}
	}

	var (
		res *models.RetentionResult
		err error
	)
	if req.Policy != nil {
		res, err = h.svc.Apply(c.Request.Context(), userID, *req.Policy, req.Offset)
	} else {
		res, err = h.svc.ApplyUserPolicy(c.Request.Context(), userID, req.Offset)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *RetentionHandler) Sweep(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if h.enqueue == nil {
		writeError(c, utils.E(utils.CodeUnavailable, "RetentionHandler.Sweep", "sweep queue is not configured", nil))
		return
	}
	jobID, err := h.enqueue(c.Request.Context(), userID)
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, "RetentionHandler.Sweep", "failed to enqueue sweep", err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

func (h *RetentionHandler) Restore(c *gin.Context) {
	h.batch(c, "RetentionHandler.Restore", h.svc.Restore)
}

func (h *RetentionHandler) DeleteArchived(c *gin.Context) {
	h.batch(c, "RetentionHandler.DeleteArchived", h.svc.DeleteArchived)
}

func (h *RetentionHandler) batch(c *gin.Context, op string, fn func(context.Context, string, []string) ([]models.ItemOutcome, error)) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req sessionIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "session_ids is required", err))
		return
	}
	out, err := fn(c.Request.Context(), userID, req.SessionIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

func (h *RetentionHandler) MyStats(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	out, err := h.svc.UserStorageStats(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *RetentionHandler) GlobalStats(c *gin.Context) {
	out, err := h.svc.ArchiveStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
