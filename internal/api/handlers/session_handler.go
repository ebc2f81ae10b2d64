package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/prepdeck/internal/models"
	"github.com/yoockh/prepdeck/internal/services"
	"github.com/yoockh/prepdeck/internal/utils"
)

type SessionHandler struct {
	svc services.SessionService
}

func NewSessionHandler(svc services.SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

func (h *SessionHandler) Start(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.StartSessionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.Start", "invalid request body", err))
		return
	}

	sess, err := h.svc.Start(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *SessionHandler) Query(c *gin.Context) {
	const op = "SessionHandler.Query"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	page, err := queryInt(c, "page", 1)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "page must be an integer", err))
		return
	}
	size, err := queryInt(c, "page_size", 0)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "page_size must be an integer", err))
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

	f := models.SessionFilter{
		Status:        models.SessionStatus(c.Query("status")),
		InterviewType: models.InterviewType(c.Query("type")),
		Interviewer:   c.Query("interviewer"),
		Difficulty:    models.Difficulty(c.Query("difficulty")),
		From:          from,
		To:            to,
		Search:        c.Query("q"),
	}
	out, err := h.svc.Query(c.Request.Context(), userID, f, page, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	sess, ok := ownedSession(c, h.svc, "SessionHandler.Get", userID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *SessionHandler) AppendResponse(c *gin.Context) {
	const op = "SessionHandler.AppendResponse"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	sess, ok := ownedSession(c, h.svc, op, userID)
	if !ok {
		return
	}

	var req models.Response
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}
	updated, err := h.svc.AppendResponse(c.Request.Context(), sess.SessionID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *SessionHandler) Complete(c *gin.Context) {
	const op = "SessionHandler.Complete"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	sess, ok := ownedSession(c, h.svc, op, userID)
	if !ok {
		return
	}

	var fb models.Feedback
	if err := c.ShouldBindJSON(&fb); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "feedback is required", err))
		return
	}
	done, err := h.svc.Complete(c.Request.Context(), sess.SessionID, fb)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, done)
}

func (h *SessionHandler) Abandon(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	sess, ok := ownedSession(c, h.svc, "SessionHandler.Abandon", userID)
	if !ok {
		return
	}
	out, err := h.svc.Abandon(c.Request.Context(), sess.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	sess, ok := ownedSession(c, h.svc, "SessionHandler.Delete", userID)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), sess.SessionID, queryBool(c, "confirm")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) Events(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	sess, ok := ownedSession(c, h.svc, "SessionHandler.Events", userID)
	if !ok {
		return
	}
	limit, _ := queryInt(c, "limit", 50)
	events, err := h.svc.Events(c.Request.Context(), sess.SessionID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
