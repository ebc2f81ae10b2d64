package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionStatus string

const (
	StatusInProgress SessionStatus = "in-progress"
	StatusCompleted  SessionStatus = "completed"
	StatusAbandoned  SessionStatus = "abandoned"
	StatusArchived   SessionStatus = "archived"
	StatusDeleted    SessionStatus = "deleted"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []SessionStatus{StatusInProgress, StatusCompleted, StatusAbandoned, StatusArchived, StatusDeleted}

func (s SessionStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a natural end of an active session.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

type InterviewType string

const (
	InterviewTechnical  InterviewType = "technical"
	InterviewBehavioral InterviewType = "behavioral"
	InterviewCaseStudy  InterviewType = "case-study"
)

func (t InterviewType) Valid() bool {
	return t == InterviewTechnical || t == InterviewBehavioral || t == InterviewCaseStudy
}

type Difficulty string

const (
	DifficultyBeginner Difficulty = "beginner"
	DifficultyModerate Difficulty = "moderate"
	DifficultyAdvanced Difficulty = "advanced"
)

func (d Difficulty) Valid() bool {
	return d == DifficultyBeginner || d == DifficultyModerate || d == DifficultyAdvanced
}

// InterviewSession is one attempt at a mock interview by a candidate.
type InterviewSession struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	SessionID    string             `bson:"session_id" json:"session_id"`
	CandidateID  string             `bson:"candidate_id" json:"candidate_id"`
	JobPostingID string             `bson:"job_posting_id,omitempty" json:"job_posting_id,omitempty"`

	// set once at creation
	Configuration SessionConfiguration `bson:"configuration" json:"configuration"`
	Questions     []Question           `bson:"questions" json:"questions"`

	Responses []Response      `bson:"responses" json:"responses"`
	Metrics   *SessionMetrics `bson:"metrics,omitempty" json:"metrics,omitempty"`
	Feedback  *Feedback       `bson:"feedback,omitempty" json:"feedback,omitempty"`

	Status       SessionStatus `bson:"status" json:"status"`
	ArchivedFrom SessionStatus `bson:"archived_from,omitempty" json:"archived_from,omitempty"`

	StartedAt   time.Time  `bson:"started_at" json:"started_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	ArchivedAt  *time.Time `bson:"archived_at,omitempty" json:"archived_at,omitempty"`
	DeletedAt   *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`

	// optimistic concurrency stamp, bumped on every write
	Version int64 `bson:"version" json:"version"`
}

type SessionConfiguration struct {
	Interviewer    string              `bson:"interviewer" json:"interviewer" validate:"required"`
	InterviewType  InterviewType       `bson:"interview_type" json:"interview_type" validate:"required,oneof=technical behavioral case-study"`
	Difficulty     Difficulty          `bson:"difficulty" json:"difficulty" validate:"required,oneof=beginner moderate advanced"`
	TopicFocus     string              `bson:"topic_focus,omitempty" json:"topic_focus,omitempty"`
	Purpose        string              `bson:"purpose,omitempty" json:"purpose,omitempty"`
	ResumeSnapshot string              `bson:"resume_snapshot,omitempty" json:"resume_snapshot,omitempty"`
	JobPosting     *JobPostingSnapshot `bson:"job_posting,omitempty" json:"job_posting,omitempty"`
}

// JobPostingSnapshot is copied from the job-posting registry at creation time.
type JobPostingSnapshot struct {
	ID           string   `bson:"id,omitempty" json:"id,omitempty"`
	Title        string   `bson:"title,omitempty" json:"title,omitempty"`
	Company      string   `bson:"company,omitempty" json:"company,omitempty"`
	Description  string   `bson:"description,omitempty" json:"description,omitempty"`
	Requirements []string `bson:"requirements,omitempty" json:"requirements,omitempty"`
}

type Question struct {
	ID               string   `bson:"id" json:"id" validate:"required"`
	Text             string   `bson:"text" json:"text" validate:"required"`
	Type             string   `bson:"type,omitempty" json:"type,omitempty"`
	DifficultyWeight float64  `bson:"difficulty_weight" json:"difficulty_weight" validate:"gte=0"`
	ExpectedDuration int      `bson:"expected_duration_seconds" json:"expected_duration_seconds" validate:"gte=0"`
	FollowUps        []string `bson:"follow_ups,omitempty" json:"follow_ups,omitempty"`
}

type Response struct {
	QuestionID      string         `bson:"question_id" json:"question_id" validate:"required"`
	Transcription   string         `bson:"transcription" json:"transcription"`
	DurationSeconds float64        `bson:"duration_seconds" json:"duration_seconds" validate:"gte=0"`
	Confidence      float64        `bson:"confidence" json:"confidence" validate:"gte=0,lte=1"`
	AudioURL        string         `bson:"audio_url,omitempty" json:"audio_url,omitempty"`
	FacialSamples   []FacialSample `bson:"facial_samples,omitempty" json:"facial_samples,omitempty" validate:"dive"`
	AnsweredAt      time.Time      `bson:"answered_at" json:"answered_at"`
}

type FacialSample struct {
	Timestamp  time.Time          `bson:"timestamp" json:"timestamp" validate:"required"`
	Emotions   map[string]float64 `bson:"emotions" json:"emotions"`
	EyeContact bool               `bson:"eye_contact" json:"eye_contact"`
	HeadPose   HeadPose           `bson:"head_pose" json:"head_pose"`
}

type HeadPose struct {
	Pitch float64 `bson:"pitch" json:"pitch"`
	Yaw   float64 `bson:"yaw" json:"yaw"`
	Roll  float64 `bson:"roll" json:"roll"`
}

type MoodPoint struct {
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
	Mood       string    `bson:"mood" json:"mood"`
	Confidence float64   `bson:"confidence" json:"confidence"`
}

// SessionMetrics is derived from responses only; never edited by hand.
type SessionMetrics struct {
	EyeContactPercentage float64            `bson:"eye_contact_percentage" json:"eye_contact_percentage"`
	MoodTimeline         []MoodPoint        `bson:"mood_timeline" json:"mood_timeline"`
	MoodDistribution     map[string]float64 `bson:"mood_distribution,omitempty" json:"mood_distribution,omitempty"`
	AverageConfidence    float64            `bson:"average_confidence" json:"average_confidence"`
	ResponseQuality      float64            `bson:"response_quality" json:"response_quality"`
	OverallEngagement    float64            `bson:"overall_engagement" json:"overall_engagement"`
}

type Feedback struct {
	Strengths    []string `bson:"strengths" json:"strengths"`
	Weaknesses   []string `bson:"weaknesses" json:"weaknesses"`
	Suggestions  []string `bson:"suggestions" json:"suggestions"`
	Notes        string   `bson:"notes,omitempty" json:"notes,omitempty"`
	OverallScore float64  `bson:"overall_score" json:"overall_score" validate:"gte=0"`
}

// SessionPatch lists the only fields that may change after creation.
// Nil pointers are left untouched. CandidateID, StartedAt, Configuration
// and Questions are intentionally absent.
type SessionPatch struct {
	Status       *SessionStatus
	ArchivedFrom *SessionStatus
	Responses    []Response
	Metrics      *SessionMetrics
	Feedback     *Feedback
	CompletedAt  *time.Time
	ArchivedAt   *time.Time
	DeletedAt    *time.Time

	// ClearArchive unsets archived_at and archived_from (restore).
	ClearArchive bool
}

// Apply merges p into s. Version is managed by the store.
func (p SessionPatch) Apply(s *InterviewSession) {
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.ArchivedFrom != nil {
		s.ArchivedFrom = *p.ArchivedFrom
	}
	if p.Responses != nil {
		s.Responses = p.Responses
	}
	if p.Metrics != nil {
		s.Metrics = p.Metrics
	}
	if p.Feedback != nil {
		s.Feedback = p.Feedback
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		s.CompletedAt = &t
	}
	if p.ArchivedAt != nil {
		t := *p.ArchivedAt
		s.ArchivedAt = &t
	}
	if p.DeletedAt != nil {
		t := *p.DeletedAt
		s.DeletedAt = &t
	}
	if p.ClearArchive {
		s.ArchivedAt = nil
		s.ArchivedFrom = ""
	}
}

// Clone returns a deep copy so callers never share slices or maps with the store.
func (s *InterviewSession) Clone() *InterviewSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Configuration.JobPosting = s.Configuration.JobPosting.clone()
	out.Questions = cloneQuestions(s.Questions)
	out.Responses = cloneResponses(s.Responses)
	out.Metrics = s.Metrics.Clone()
	if s.Feedback != nil {
		fb := *s.Feedback
		fb.Strengths = append([]string(nil), s.Feedback.Strengths...)
		fb.Weaknesses = append([]string(nil), s.Feedback.Weaknesses...)
		fb.Suggestions = append([]string(nil), s.Feedback.Suggestions...)
		out.Feedback = &fb
	}
	out.CompletedAt = cloneTime(s.CompletedAt)
	out.ArchivedAt = cloneTime(s.ArchivedAt)
	out.DeletedAt = cloneTime(s.DeletedAt)
	return &out
}

func (m *SessionMetrics) Clone() *SessionMetrics {
	if m == nil {
		return nil
	}
	out := *m
	out.MoodTimeline = append([]MoodPoint(nil), m.MoodTimeline...)
	if m.MoodDistribution != nil {
		out.MoodDistribution = make(map[string]float64, len(m.MoodDistribution))
		for k, v := range m.MoodDistribution {
			out.MoodDistribution[k] = v
		}
	}
	return &out
}

func (j *JobPostingSnapshot) clone() *JobPostingSnapshot {
	if j == nil {
		return nil
	}
	out := *j
	out.Requirements = append([]string(nil), j.Requirements...)
	return &out
}

func cloneQuestions(in []Question) []Question {
	if in == nil {
		return nil
	}
	out := make([]Question, len(in))
	for i, q := range in {
		q.FollowUps = append([]string(nil), q.FollowUps...)
		out[i] = q
	}
	return out
}

func cloneResponses(in []Response) []Response {
	if in == nil {
		return nil
	}
	out := make([]Response, len(in))
	for i, r := range in {
		if r.FacialSamples != nil {
			samples := make([]FacialSample, len(r.FacialSamples))
			for j, fs := range r.FacialSamples {
				if fs.Emotions != nil {
					em := make(map[string]float64, len(fs.Emotions))
					for k, v := range fs.Emotions {
						em[k] = v
					}
					fs.Emotions = em
				}
				samples[j] = fs
			}
			r.FacialSamples = samples
		}
		out[i] = r
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
