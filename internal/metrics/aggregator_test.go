package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/prepdeck/internal/models"
	"github.com/yoockh/prepdeck/internal/utils"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func sample(offset time.Duration, eye bool, emotions map[string]float64) models.FacialSample {
	return models.FacialSample{Timestamp: t0.Add(offset), EyeContact: eye, Emotions: emotions}
}

func threeQuestions() []models.Question {
	return []models.Question{
		{ID: "q1", Text: "Tell me about yourself", ExpectedDuration: 10},
		{ID: "q2", Text: "Describe a conflict", ExpectedDuration: 10},
		{ID: "q3", Text: "Why this role", ExpectedDuration: 10},
	}
}

func TestCompute_ModerateScenario(t *testing.T) {
	calm := map[string]float64{"calm": 0.7, "happy": 0.2}
	responses := []models.Response{
		{QuestionID: "q1", Transcription: "one two three", Confidence: 0.9, FacialSamples: []models.FacialSample{sample(0, true, calm)}},
		{QuestionID: "q2", Transcription: "four five", Confidence: 0.6, FacialSamples: []models.FacialSample{sample(time.Minute, true, calm)}},
		{QuestionID: "q3", Transcription: "six", Confidence: 0.8, FacialSamples: []models.FacialSample{sample(2*time.Minute, true, calm)}},
	}

	m, err := Compute(threeQuestions(), responses)
	require.NoError(t, err)

	assert.InDelta(t, 0.7667, m.AverageConfidence, 0.0001)
	assert.Equal(t, 1.0, m.EyeContactPercentage)
	require.Len(t, m.MoodTimeline, 3)
	assert.Equal(t, "calm", m.MoodTimeline[0].Mood)
	assert.InDelta(t, 0.7, m.MoodTimeline[0].Confidence, 1e-9)
	assert.Equal(t, map[string]float64{"calm": 1}, m.MoodDistribution)
}

func TestCompute_Idempotent(t *testing.T) {
	responses := []models.Response{
		{QuestionID: "q1", Transcription: "a fairly long answer with many words in it", Confidence: 0.4, FacialSamples: []models.FacialSample{
			sample(3*time.Second, false, map[string]float64{"nervous": 0.5, "calm": 0.5}),
			sample(time.Second, true, map[string]float64{"happy": 0.9}),
		}},
		{QuestionID: "q2", Transcription: "", Confidence: 0.2},
	}

	first, err := Compute(threeQuestions(), responses)
	require.NoError(t, err)
	second, err := Compute(threeQuestions(), responses)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// timeline is ordered by timestamp and ties resolve alphabetically
	require.Len(t, first.MoodTimeline, 2)
	assert.Equal(t, "happy", first.MoodTimeline[0].Mood)
	assert.Equal(t, "calm", first.MoodTimeline[1].Mood)
	assert.Equal(t, 0.5, first.EyeContactPercentage)
}

func TestCompute_NoResponses(t *testing.T) {
	m, err := Compute(threeQuestions(), nil)
	assert.Nil(t, m)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	assert.True(t, errors.Is(err, ErrNoResponses))
}

func TestCompute_NoFacialSamples(t *testing.T) {
	m, err := Compute(threeQuestions(), []models.Response{{QuestionID: "q1", Transcription: "hi", Confidence: 1}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.EyeContactPercentage)
	assert.Empty(t, m.MoodTimeline)
	assert.Nil(t, m.MoodDistribution)
}

func TestCompute_QualityWeighting(t *testing.T) {
	// 20 words against a 10 second question (20 expected words) is fully adequate
	words := "w w w w w w w w w w w w w w w w w w w w"
	m, err := Compute(threeQuestions(), []models.Response{{QuestionID: "q1", Transcription: words, Confidence: 0.5}})
	require.NoError(t, err)
	assert.InDelta(t, 0.4*1+0.6*0.5, m.ResponseQuality, 1e-9)
	assert.InDelta(t, (0+m.ResponseQuality)/2, m.OverallEngagement, 1e-9)

	// half the expected words
	m, err = Compute(threeQuestions(), []models.Response{{QuestionID: "q1", Transcription: "w w w w w w w w w w", Confidence: 1}})
	require.NoError(t, err)
	assert.InDelta(t, 0.4*0.5+0.6*1, m.ResponseQuality, 1e-9)
}

func TestLengthAdequacy(t *testing.T) {
	assert.Equal(t, 0.0, lengthAdequacy("", 30))
	assert.Equal(t, 1.0, lengthAdequacy("anything", 0))
	assert.Equal(t, 0.0, lengthAdequacy("   ", 0))
	assert.Equal(t, 1.0, lengthAdequacy("a b c d e", 1))
}
