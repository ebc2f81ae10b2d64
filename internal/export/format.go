// Package export renders a candidate's sessions as downloadable CSV or JSON
// and parses those files back.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yoockh/prepdeck/internal/models"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

func (f Format) Valid() bool { return f == FormatJSON || f == FormatCSV }

// ErrEmpty is returned when no session matches and the caller disallowed an
// empty export.
var ErrEmpty = errors.New("export matched no sessions")

// OmittedFields are never exported. Raw audio lives outside the session
// store and the version stamp is storage bookkeeping.
var OmittedFields = []string{"responses.audio_url", "version"}

type Options struct {
	Format           Format
	IncludeMetrics   bool
	IncludeResponses bool
	IncludeFeedback  bool
	From             *time.Time
	To               *time.Time
	DisallowEmpty    bool
}

type Result struct {
	Data     []byte
	MimeType string
	Filename string
	Count    int
	Omitted  []string
}

// Record is the exported shape of one session.
type Record struct {
	SessionID     string                      `json:"session_id"`
	CandidateID   string                      `json:"candidate_id,omitempty"`
	JobPostingID  string                      `json:"job_posting_id,omitempty"`
	Status        models.SessionStatus        `json:"status"`
	ArchivedFrom  models.SessionStatus        `json:"archived_from,omitempty"`
	StartedAt     time.Time                   `json:"started_at"`
	CompletedAt   *time.Time                  `json:"completed_at,omitempty"`
	ArchivedAt    *time.Time                  `json:"archived_at,omitempty"`
	Configuration models.SessionConfiguration `json:"configuration"`
	Questions     []models.Question           `json:"questions,omitempty"`
	Responses     []models.Response           `json:"responses,omitempty"`
	Metrics       *models.SessionMetrics      `json:"metrics,omitempty"`
	Feedback      *models.Feedback            `json:"feedback,omitempty"`
}

// Render filters sessions by the date range and encodes them.
func Render(userID string, sessions []models.InterviewSession, opts Options, now time.Time) (*Result, error) {
	if !opts.Format.Valid() {
		return nil, fmt.Errorf("unknown export format %q", opts.Format)
	}

	records := make([]Record, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		if s.Status == models.StatusDeleted || !inRange(s.StartedAt, opts.From, opts.To) {
			continue
		}
		records = append(records, toRecord(s, opts))
	}
	if len(records) == 0 && opts.DisallowEmpty {
		return nil, ErrEmpty
	}

	res := &Result{
		Count:    len(records),
		Omitted:  append([]string(nil), OmittedFields...),
		Filename: fmt.Sprintf("interviews-%s-%s.%s", userID, now.UTC().Format("20060102T150405Z"), opts.Format),
	}
	var err error
	switch opts.Format {
	case FormatCSV:
		res.MimeType = "text/csv"
		res.Data, err = encodeCSV(records, opts)
	default:
		res.MimeType = "application/json"
		res.Data, err = json.Marshal(records)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

func toRecord(s *models.InterviewSession, opts Options) Record {
	r := Record{
		SessionID:     s.SessionID,
		CandidateID:   s.CandidateID,
		JobPostingID:  s.JobPostingID,
		Status:        s.Status,
		ArchivedFrom:  s.ArchivedFrom,
		StartedAt:     s.StartedAt.UTC(),
		CompletedAt:   utc(s.CompletedAt),
		ArchivedAt:    utc(s.ArchivedAt),
		Configuration: s.Configuration,
		Questions:     s.Questions,
	}
	if opts.IncludeResponses {
		r.Responses = make([]models.Response, len(s.Responses))
		for i, resp := range s.Responses {
			resp.AudioURL = ""
			resp.AnsweredAt = resp.AnsweredAt.UTC()
			r.Responses[i] = resp
		}
	}
	if opts.IncludeMetrics && s.Metrics != nil {
		r.Metrics = s.Metrics.Clone()
	}
	if opts.IncludeFeedback && s.Feedback != nil {
		fb := *s.Feedback
		r.Feedback = &fb
	}
	return r
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

const (
	colID          = "id"
	colStartedAt   = "started_at"
	colCompletedAt = "completed_at"
	colStatus      = "status"
	colType        = "interview_type"
	colInterviewer = "interviewer"
	colDifficulty  = "difficulty"
	colScore       = "overall_score"
	colEyeContact  = "eye_contact_percentage"
	colConfidence  = "average_confidence"
)

// Columns returns the CSV header for opts in its fixed order.
func Columns(opts Options) []string {
	cols := []string{colID, colStartedAt, colCompletedAt, colStatus, colType, colInterviewer, colDifficulty}
	if opts.IncludeFeedback {
		cols = append(cols, colScore)
	}
	if opts.IncludeMetrics {
		cols = append(cols, colEyeContact, colConfidence)
	}
	return cols
}

func encodeCSV(records []Record, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	cols := Columns(opts)
	if err := w.Write(cols); err != nil {
		return nil, err
	}

	row := make([]string, len(cols))
	for _, r := range records {
		for i, c := range cols {
			row[i] = cell(r, c)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cell(r Record, col string) string {
	switch col {
	case colID:
		return r.SessionID
	case colStartedAt:
		return r.StartedAt.Format(time.RFC3339Nano)
	case colCompletedAt:
		if r.CompletedAt == nil {
			return ""
		}
		return r.CompletedAt.Format(time.RFC3339Nano)
	case colStatus:
		return string(r.Status)
	case colType:
		return string(r.Configuration.InterviewType)
	case colInterviewer:
		return r.Configuration.Interviewer
	case colDifficulty:
		return string(r.Configuration.Difficulty)
	case colScore:
		if r.Feedback == nil {
			return ""
		}
		return strconv.FormatFloat(r.Feedback.OverallScore, 'f', -1, 64)
	case colEyeContact:
		if r.Metrics == nil {
			return ""
		}
		return strconv.FormatFloat(r.Metrics.EyeContactPercentage, 'f', -1, 64)
	case colConfidence:
		if r.Metrics == nil {
			return ""
		}
		return strconv.FormatFloat(r.Metrics.AverageConfidence, 'f', -1, 64)
	}
	return ""
}

// ParseJSON decodes a JSON export.
func ParseJSON(data []byte) ([]Record, error) {
	var out []Record
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse json export: %w", err)
	}
	return out, nil
}

// ParseCSV decodes a CSV export. Columns absent from the header leave their
// fields unset; empty cells decode to nil.
func ParseCSV(data []byte) ([]Record, error) {
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv export: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("parse csv export: missing header")
	}

	header := rows[0]
	out := make([]Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		var r Record
		for i, col := range header {
			if err := setCell(&r, strings.TrimSpace(col), row[i]); err != nil {
				return nil, fmt.Errorf("parse csv export: row %d column %s: %w", n+1, col, err)
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func setCell(r *Record, col, v string) error {
	switch col {
	case colID:
		r.SessionID = v
	case colStartedAt:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return err
		}
		r.StartedAt = t
	case colCompletedAt:
		if v == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return err
		}
		r.CompletedAt = &t
	case colStatus:
		r.Status = models.SessionStatus(v)
	case colType:
		r.Configuration.InterviewType = models.InterviewType(v)
	case colInterviewer:
		r.Configuration.Interviewer = v
	case colDifficulty:
		r.Configuration.Difficulty = models.Difficulty(v)
	case colScore:
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		r.Feedback = &models.Feedback{OverallScore: f}
	case colEyeContact, colConfidence:
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		if r.Metrics == nil {
			r.Metrics = &models.SessionMetrics{}
		}
		if col == colEyeContact {
			r.Metrics.EyeContactPercentage = f
		} else {
			r.Metrics.AverageConfidence = f
		}
	}
	return nil
}
