package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/prepdeck/internal/api/handlers"
	"github.com/yoockh/prepdeck/internal/api/middleware"
	"github.com/yoockh/prepdeck/internal/export"
	"github.com/yoockh/prepdeck/internal/models"
	"github.com/yoockh/prepdeck/internal/observability"
	"github.com/yoockh/prepdeck/internal/repositories/memory"
	"github.com/yoockh/prepdeck/internal/services"
	"github.com/yoockh/prepdeck/internal/utils"
)

// headerAuth stands in for the identity provider: X-User and X-Role.
func headerAuth(c *gin.Context) {
	user := c.GetHeader("X-User")
	if user == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Set(middleware.CtxUserID, user)
	c.Set(middleware.CtxRole, c.GetHeader("X-Role"))
	c.Next()
}

type apiClient struct {
	t      *testing.T
	engine *gin.Engine
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	reg := prometheus.NewRegistry()
	deps := services.Deps{
		Sessions: memory.NewSessionRepo(),
		Metrics:  observability.NewMetrics(reg),
		Logger:   logger,
	}
	policy := models.RetentionPolicy{ArchiveAfterDays: 0, DeleteAfterDays: 365, ApplyTo: []models.SessionStatus{models.StatusCompleted, models.StatusAbandoned}}

	sessions := services.NewSessionService(deps, 100)
	enqueue := func(context.Context, string) (string, error) { return "job-1", nil }

	r := gin.New()
	RegisterRoutes(r, Deps{
		Session:   handlers.NewSessionHandler(sessions),
		Analytics: handlers.NewAnalyticsHandler(services.NewAnalyticsService(deps, 0, 0)),
		Retention: handlers.NewRetentionHandler(services.NewRetentionService(deps, nil, policy, 100), enqueue),
		Export:    handlers.NewExportHandler(services.NewExportService(deps, nil, 0)),
		WS:        handlers.NewWSHandler(sessions, nil, logger, nil),
		Auth:      headerAuth,
		Gatherer:  reg,
	})
	return &apiClient{t: t, engine: r}
}

func (a *apiClient) do(method, path, user string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User", user)
	}
	if user == "root" {
		req.Header.Set("X-Role", "admin")
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func startBody(id string) map[string]any {
	return map[string]any{
		"session_id": id,
		"configuration": map[string]any{
			"interviewer":    "ava",
			"interview_type": "technical",
			"difficulty":     "moderate",
		},
		"questions": []map[string]any{
			{"id": "q1", "text": "What is a goroutine?", "expected_duration_seconds": 20},
		},
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRoutes_SessionLifecycle(t *testing.T) {
	api := newAPI(t)

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/ping", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/sessions", "", nil).Code)

	w := api.do(http.MethodPost, "/sessions", "u1", startBody("s1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/sessions/s1", "u2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, "/sessions/s1/responses", "u1", map[string]any{
		"question_id":   "q1",
		"transcription": "a lightweight thread managed by the go runtime",
		"confidence":    0.9,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sess := decode[models.InterviewSession](t, w)
	require.NotNil(t, sess.Metrics)
	assert.InDelta(t, 0.9, sess.Metrics.AverageConfidence, 1e-9)

	w = api.do(http.MethodPost, "/sessions/s1/complete", "u1", map[string]any{"overall_score": 81, "strengths": []string{"clarity"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodPost, "/sessions/s1/abandon", "u1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, utils.CodeInvalidTransition, decode[handlers.APIError](t, w).Code)

	w = api.do(http.MethodGet, "/sessions?status=completed&q=goroutine", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[models.SessionPage](t, w)
	assert.Equal(t, int64(1), page.Total)

	w = api.do(http.MethodGet, "/sessions?from=not-a-date", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/analytics", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	an := decode[models.UserAnalytics](t, w)
	assert.Equal(t, 1, an.TotalSessions)
	require.Len(t, an.ScoreTrend, 1)
	assert.Equal(t, 81.0, an.ScoreTrend[0].OverallScore)

	w = api.do(http.MethodDelete, "/sessions/s1", "u1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = api.do(http.MethodDelete, "/sessions/s1?confirm=true", "u1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = api.do(http.MethodGet, "/sessions/s1", "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_RetentionAndExport(t *testing.T) {
	api := newAPI(t)

	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/sessions", "u1", startBody("s1")).Code)
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/sessions/s1/abandon", "u1", nil).Code)

	w := api.do(http.MethodGet, "/export?format=csv&feedback=true", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	assert.Equal(t, strings.Join(export.OmittedFields, ","), w.Header().Get("X-Export-Omitted"))
	rows, err := export.ParseCSV(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusAbandoned, rows[0].Status)

	w = api.do(http.MethodGet, "/export?format=json&allow_empty=false&from=2001-01-01&to=2001-01-02", "u1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = api.do(http.MethodPost, "/retention/apply", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[models.RetentionResult](t, w)
	assert.Equal(t, 1, res.Archived)
	assert.True(t, res.Done)

	w = api.do(http.MethodPost, "/retention/delete", "u1", map[string]any{"session_ids": []string{"s1", "nope"}})
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[struct {
		Results []models.ItemOutcome `json:"results"`
	}](t, w)
	require.Len(t, out.Results, 2)
	assert.True(t, out.Results[0].OK)
	assert.Equal(t, "NOT_FOUND", out.Results[1].Code)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/retention/restore", "u1", map[string]any{}).Code)
	assert.Equal(t, http.StatusAccepted, api.do(http.MethodPost, "/retention/sweep", "u1", nil).Code)

	w = api.do(http.MethodPut, "/retention/policy", "u1", map[string]any{"archive_after_days": 5, "delete_after_days": 10, "apply_to": []string{"completed"}})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "no policy store configured")

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/retention/stats", "u1", nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/admin/retention/stats", "u1", nil).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/admin/retention/stats", "root", nil).Code)

	w = api.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "prepdeck_session_transitions_total")
}

func TestRoutes_CaptureWebSocket(t *testing.T) {
	api := newAPI(t)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/sessions", "u1", startBody("s1")).Code)

	srv := httptest.NewServer(api.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/s1"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"X-User": {"u1"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello map[string]any
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "status", hello["type"])
	assert.Equal(t, "in-progress", hello["status"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus"}))
	var bad map[string]any
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, "error", bad["type"])

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":     "response",
		"response": map[string]any{"question_id": "q1", "transcription": "green threads", "confidence": 0.6},
	}))
	var update struct {
		Type    string                 `json:"type"`
		Metrics *models.SessionMetrics `json:"metrics"`
	}
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "metrics", update.Type)
	require.NotNil(t, update.Metrics)
	assert.InDelta(t, 0.6, update.Metrics.AverageConfidence, 1e-9)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "complete", "feedback": map[string]any{"overall_score": 64}}))
	var done map[string]any
	require.NoError(t, conn.ReadJSON(&done))
	assert.Equal(t, "completed", done["status"])
}
