package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/prepdeck/internal/models"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func completed(id string, started time.Time, dur time.Duration, score float64, strengths, weaknesses []string) models.InterviewSession {
	end := started.Add(dur)
	return models.InterviewSession{
		SessionID: id,
		Status:    models.StatusCompleted,
		StartedAt: started,
		Configuration: models.SessionConfiguration{
			InterviewType: models.InterviewTechnical,
			Difficulty:    models.DifficultyModerate,
		},
		CompletedAt: &end,
		Feedback:    &models.Feedback{OverallScore: score, Strengths: strengths, Weaknesses: weaknesses},
	}
}

func TestGenerate_Empty(t *testing.T) {
	out := Generate("u1", nil, t0)

	assert.Equal(t, "u1", out.UserID)
	assert.Zero(t, out.TotalSessions)
	assert.Empty(t, out.ByStatus)
	assert.NotNil(t, out.ScoreTrend)
	assert.NotNil(t, out.Strengths)
	assert.NotNil(t, out.Weaknesses)
	assert.Zero(t, out.AverageDurationSeconds)
	assert.Zero(t, out.AverageScore)
}

func TestGenerate_Aggregates(t *testing.T) {
	a := completed("a", t0.Add(48*time.Hour), 30*time.Minute, 80, []string{"clarity", "structure"}, []string{"pace"})
	b := completed("b", t0, 10*time.Minute, 60, []string{"structure"}, []string{"depth", "pace"})
	noEnd := completed("c", t0.Add(24*time.Hour), 0, 70, nil, nil)
	noEnd.CompletedAt = nil
	open := models.InterviewSession{
		SessionID: "d",
		Status:    models.StatusInProgress,
		StartedAt: t0,
		Configuration: models.SessionConfiguration{
			InterviewType: models.InterviewBehavioral,
			Difficulty:    models.DifficultyAdvanced,
		},
	}

	out := Generate("u1", []models.InterviewSession{a, b, noEnd, open}, t0)

	assert.Equal(t, 4, out.TotalSessions)
	assert.Equal(t, 3, out.ByStatus[models.StatusCompleted])
	assert.Equal(t, 1, out.ByStatus[models.StatusInProgress])
	assert.Equal(t, 3, out.ByInterviewType[models.InterviewTechnical])
	assert.Equal(t, 1, out.ByDifficulty[models.DifficultyAdvanced])

	require.Len(t, out.ScoreTrend, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{out.ScoreTrend[0].SessionID, out.ScoreTrend[1].SessionID, out.ScoreTrend[2].SessionID})
	assert.InDelta(t, 70.0, out.AverageScore, 1e-9)

	// c has no completed_at and is excluded
	assert.InDelta(t, (20 * time.Minute).Seconds(), out.AverageDurationSeconds, 1e-9)

	assert.Equal(t, []models.TermFrequency{{Term: "structure", Count: 2}, {Term: "clarity", Count: 1}}, out.Strengths)
	assert.Equal(t, []models.TermFrequency{{Term: "pace", Count: 2}, {Term: "depth", Count: 1}}, out.Weaknesses)
}

func TestFrequencies_TiesAlphabetical(t *testing.T) {
	out := Frequencies(map[string]int{"zeal": 1, "apt": 1, "mid": 3})
	assert.Equal(t, []models.TermFrequency{{Term: "mid", Count: 3}, {Term: "apt", Count: 1}, {Term: "zeal", Count: 1}}, out)
}
