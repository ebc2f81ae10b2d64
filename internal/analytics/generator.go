// Package analytics builds the read-only progress projection of a candidate's
// sessions. Nothing here is written back to the store.
package analytics

import (
	"sort"
	"time"

	"github.com/yoockh/prepdeck/internal/models"
)

// Generate aggregates sessions into a UserAnalytics. An empty input yields
// zeroed counts and empty, non-nil lists.
func Generate(userID string, sessions []models.InterviewSession, now time.Time) *models.UserAnalytics {
	out := &models.UserAnalytics{
		UserID:          userID,
		TotalSessions:   len(sessions),
		ByStatus:        map[models.SessionStatus]int{},
		ByInterviewType: map[models.InterviewType]int{},
		ByDifficulty:    map[models.Difficulty]int{},
		ScoreTrend:      []models.ScorePoint{},
		GeneratedAt:     now,
	}

	strengths := map[string]int{}
	weaknesses := map[string]int{}
	var (
		scoreSum    float64
		durationSum time.Duration
		durations   int
	)

	for i := range sessions {
		s := &sessions[i]
		out.ByStatus[s.Status]++
		if s.Configuration.InterviewType != "" {
			out.ByInterviewType[s.Configuration.InterviewType]++
		}
		if s.Configuration.Difficulty != "" {
			out.ByDifficulty[s.Configuration.Difficulty]++
		}

		if s.Feedback != nil {
			for _, t := range s.Feedback.Strengths {
				strengths[t]++
			}
			for _, t := range s.Feedback.Weaknesses {
				weaknesses[t]++
			}
		}

		if s.Status != models.StatusCompleted {
			continue
		}
		if s.Feedback != nil {
			out.ScoreTrend = append(out.ScoreTrend, models.ScorePoint{
				StartedAt:    s.StartedAt,
				SessionID:    s.SessionID,
				OverallScore: s.Feedback.OverallScore,
			})
			scoreSum += s.Feedback.OverallScore
		}
		// sessions without completed_at are left out, not counted as zero
		if s.CompletedAt != nil {
			durationSum += s.CompletedAt.Sub(s.StartedAt)
			durations++
		}
	}

	sort.SliceStable(out.ScoreTrend, func(i, j int) bool {
		a, b := out.ScoreTrend[i], out.ScoreTrend[j]
		if !a.StartedAt.Equal(b.StartedAt) {
			return a.StartedAt.Before(b.StartedAt)
		}
		return a.SessionID < b.SessionID
	})
	if n := len(out.ScoreTrend); n > 0 {
		out.AverageScore = scoreSum / float64(n)
	}
	if durations > 0 {
		out.AverageDurationSeconds = (durationSum / time.Duration(durations)).Seconds()
	}
	out.Strengths = Frequencies(strengths)
	out.Weaknesses = Frequencies(weaknesses)
	return out
}

// Frequencies sorts term counts by count descending, ties alphabetically.
func Frequencies(counts map[string]int) []models.TermFrequency {
	out := make([]models.TermFrequency, 0, len(counts))
	for term, n := range counts {
		out = append(out, models.TermFrequency{Term: term, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	return out
}
