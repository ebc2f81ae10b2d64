package models

import "time"

type ScorePoint struct {
	StartedAt    time.Time `json:"started_at"`
	SessionID    string    `json:"session_id"`
	OverallScore float64   `json:"overall_score"`
}

type TermFrequency struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// UserAnalytics is a read-only projection over one candidate's sessions.
type UserAnalytics struct {
	UserID                 string                `json:"user_id"`
	TotalSessions          int                   `json:"total_sessions"`
	ByStatus               map[SessionStatus]int `json:"by_status"`
	ByInterviewType        map[InterviewType]int `json:"by_interview_type"`
	ByDifficulty           map[Difficulty]int    `json:"by_difficulty"`
	ScoreTrend             []ScorePoint          `json:"score_trend"`
	AverageScore           float64               `json:"average_score"`
	Strengths              []TermFrequency       `json:"strengths"`
	Weaknesses             []TermFrequency       `json:"weaknesses"`
	AverageDurationSeconds float64               `json:"average_duration_seconds"`
	GeneratedAt            time.Time             `json:"generated_at"`
	// Truncated is set when only part of the history was read. TotalSessions
	// still reports the full count; the breakdowns cover the part read.
	Truncated bool `json:"truncated,omitempty"`
}
