package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yoockh/prepdeck/internal/lifecycle"
	"github.com/yoockh/prepdeck/internal/metrics"
	"github.com/yoockh/prepdeck/internal/models"
	"github.com/yoockh/prepdeck/internal/utils"
)

const defaultPageSize = 20

type SessionService interface {
	Start(ctx context.Context, userID string, in StartSessionInput) (*models.InterviewSession, error)
	Get(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	Query(ctx context.Context, userID string, f models.SessionFilter, page, pageSize int) (*models.SessionPage, error)
	AppendResponse(ctx context.Context, sessionID string, r models.Response) (*models.InterviewSession, error)
	Complete(ctx context.Context, sessionID string, fb models.Feedback) (*models.InterviewSession, error)
	Abandon(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	Delete(ctx context.Context, sessionID string, confirm bool) error
	Events(ctx context.Context, sessionID string, limit int) ([]models.SessionEvent, error)
}

// StartSessionInput is what the capture pipeline and job-posting registry
// supply when a session is created.
type StartSessionInput struct {
	SessionID     string                      `json:"session_id,omitempty" validate:"omitempty,max=64"`
	JobPostingID  string                      `json:"job_posting_id,omitempty"`
	Configuration models.SessionConfiguration `json:"configuration" validate:"required"`
	Questions     []models.Question           `json:"questions" validate:"required,min=1,dive"`
}

type sessionService struct {
	d           Deps
	maxPageSize int
}

func NewSessionService(d Deps, maxPageSize int) SessionService {
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &sessionService{d: d.withDefaults(), maxPageSize: maxPageSize}
}

func (s *sessionService) Start(ctx context.Context, userID string, in StartSessionInput) (*models.InterviewSession, error) {
	const op = "SessionService.Start"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if err := validate.Struct(in); err != nil {
		return nil, validationErr(op, err)
	}
	seen := make(map[string]struct{}, len(in.Questions))
	for _, q := range in.Questions {
		if _, dup := seen[q.ID]; dup {
			return nil, utils.E(utils.CodeInvalidArgument, op, "duplicate question id "+q.ID, nil)
		}
		seen[q.ID] = struct{}{}
	}

	id := in.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	session := &models.InterviewSession{
		SessionID:     id,
		CandidateID:   userID,
		JobPostingID:  in.JobPostingID,
		Configuration: in.Configuration,
		Questions:     in.Questions,
		Responses:     []models.Response{},
		Status:        models.StatusInProgress,
		StartedAt:     s.d.Now(),
	}

	if err := s.d.Sessions.Create(ctx, session); err != nil {
		return nil, storeErr(op, err)
	}
	s.d.invalidate(ctx, userID)
	s.d.Logger.WithField("session_id", id).WithField("user_id", userID).Info("session started")
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	const op = "SessionService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	out, err := s.d.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

func (s *sessionService) Query(ctx context.Context, userID string, f models.SessionFilter, page, pageSize int) (*models.SessionPage, error) {
	const op = "SessionService.Query"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if err := checkFilter(f); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, err.Error(), nil)
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	rows, total, err := s.d.Sessions.Query(ctx, userID, f, page, pageSize)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to query sessions", err)
	}
	return &models.SessionPage{Sessions: rows, Total: total, Page: page, PageSize: pageSize}, nil
}

func checkFilter(f models.SessionFilter) error {
	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("unknown status %q", f.Status)
	}
	if f.InterviewType != "" && !f.InterviewType.Valid() {
		return fmt.Errorf("unknown interview type %q", f.InterviewType)
	}
	if f.Difficulty != "" && !f.Difficulty.Valid() {
		return fmt.Errorf("unknown difficulty %q", f.Difficulty)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return errors.New("date range start is after its end")
	}
	return nil
}

func (s *sessionService) AppendResponse(ctx context.Context, sessionID string, r models.Response) (*models.InterviewSession, error) {
	const op = "SessionService.AppendResponse"

	if err := validate.Struct(r); err != nil {
		return nil, validationErr(op, err)
	}
	if r.AnsweredAt.IsZero() {
		r.AnsweredAt = s.d.Now()
	}

	_, after, err := s.d.mutate(ctx, op, sessionID, func(cur *models.InterviewSession) (models.SessionPatch, error) {
		if cur.Status != models.StatusInProgress {
			return models.SessionPatch{}, utils.E(utils.CodeInvalidArgument, op, "responses are accepted only while in-progress, session is "+string(cur.Status), nil)
		}
		if len(cur.Responses) >= len(cur.Questions) {
			return models.SessionPatch{}, utils.E(utils.CodeInvalidArgument, op, "every question already has a response", nil)
		}
		known := false
		for _, q := range cur.Questions {
			if q.ID == r.QuestionID {
				known = true
				break
			}
		}
		if !known {
			return models.SessionPatch{}, utils.E(utils.CodeInvalidArgument, op, "unknown question_id "+r.QuestionID, nil)
		}
		for _, prev := range cur.Responses {
			if prev.QuestionID == r.QuestionID {
				return models.SessionPatch{}, utils.E(utils.CodeInvalidArgument, op, "question "+r.QuestionID+" already answered", nil)
			}
		}

		responses := append(append([]models.Response{}, cur.Responses...), r)
		m, err := metrics.Compute(cur.Questions, responses)
		if err != nil {
			return models.SessionPatch{}, err
		}
		return models.SessionPatch{Responses: responses, Metrics: m}, nil
	})
	if err != nil {
		return nil, err
	}
	s.d.invalidate(ctx, after.CandidateID)
	return after, nil
}

func (s *sessionService) Complete(ctx context.Context, sessionID string, fb models.Feedback) (*models.InterviewSession, error) {
	const op = "SessionService.Complete"

	if err := validate.Struct(fb); err != nil {
		return nil, validationErr(op, err)
	}

	before, after, err := s.d.mutate(ctx, op, sessionID, func(cur *models.InterviewSession) (models.SessionPatch, error) {
		next, err := checkTransition(op, cur, models.StatusCompleted, lifecycle.Request{HasFeedback: true})
		if err != nil {
			return models.SessionPatch{}, err
		}
		now := s.d.Now()
		feedback := fb
		return models.SessionPatch{Status: &next, Feedback: &feedback, CompletedAt: &now}, nil
	})
	if err != nil {
		return nil, err
	}
	s.d.transitioned(ctx, op, after, before.Status, map[string]any{"overall_score": fb.OverallScore})
	return after, nil
}

func (s *sessionService) Abandon(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	const op = "SessionService.Abandon"

	before, after, err := s.d.mutate(ctx, op, sessionID, func(cur *models.InterviewSession) (models.SessionPatch, error) {
		next, err := checkTransition(op, cur, models.StatusAbandoned, lifecycle.Request{})
		if err != nil {
			return models.SessionPatch{}, err
		}
		return models.SessionPatch{Status: &next}, nil
	})
	if err != nil {
		return nil, err
	}
	s.d.transitioned(ctx, op, after, before.Status, map[string]any{"responses": len(after.Responses)})
	return after, nil
}

// Delete moves a session to deleted through the state machine and then
// removes the record. Completed or abandoned sessions need confirm.
func (s *sessionService) Delete(ctx context.Context, sessionID string, confirm bool) error {
	const op = "SessionService.Delete"

	_, err := purge(ctx, s.d, op, sessionID, nil, confirm)
	return err
}

func (s *sessionService) Events(ctx context.Context, sessionID string, limit int) ([]models.SessionEvent, error) {
	const op = "SessionService.Events"

	if s.d.Events == nil {
		return []models.SessionEvent{}, nil
	}
	rows, err := s.d.Events.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list session events", err)
	}
	return rows, nil
}

// purge transitions a session to deleted and physically removes it. guard may
// reject the session before the state machine runs.
func purge(ctx context.Context, d Deps, op, sessionID string, guard func(*models.InterviewSession) error, confirm bool) (*models.InterviewSession, error) {
	before, after, err := d.mutate(ctx, op, sessionID, func(cur *models.InterviewSession) (models.SessionPatch, error) {
		if guard != nil {
			if err := guard(cur); err != nil {
				return models.SessionPatch{}, err
			}
		}
		next, err := checkTransition(op, cur, models.StatusDeleted, lifecycle.Request{Confirmed: confirm})
		if err != nil {
			return models.SessionPatch{}, err
		}
		now := d.Now()
		return models.SessionPatch{Status: &next, DeletedAt: &now}, nil
	})
	if err != nil {
		return nil, err
	}
	if err := d.Sessions.Delete(ctx, sessionID); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to remove session", err)
	}
	d.transitioned(ctx, op, after, before.Status, nil)
	return after, nil
}
