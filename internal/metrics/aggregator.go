// Package metrics derives a session's behavioural metrics from its responses.
//
// Compute is total: it rebuilds every field from the full response list, so
// two calls over the same responses always yield identical metrics.
package metrics

import (
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/yoockh/prepdeck/internal/models"
	"github.com/yoockh/prepdeck/internal/utils"
)

const (
	lengthWeight     = 0.4
	confidenceWeight = 0.6

	// speaking rate used to turn an expected duration into an expected word count
	wordsPerSecond = 2.0
)

var ErrNoResponses = errors.New("no responses to aggregate")

// Compute builds metrics for responses answered against questions.
func Compute(questions []models.Question, responses []models.Response) (*models.SessionMetrics, error) {
	const op = "metrics.Compute"

	if len(responses) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "metrics are undefined for a session without responses", ErrNoResponses)
	}

	expected := make(map[string]int, len(questions))
	for _, q := range questions {
		expected[q.ID] = q.ExpectedDuration
	}

	var (
		samples, eyeContact int
		confSum, lengthSum  float64
		timeline            []models.MoodPoint
	)
	for _, r := range responses {
		confSum += r.Confidence
		lengthSum += lengthAdequacy(r.Transcription, expected[r.QuestionID])

		for _, fs := range r.FacialSamples {
			samples++
			if fs.EyeContact {
				eyeContact++
			}
			if mood, score, ok := dominantMood(fs.Emotions); ok {
				timeline = append(timeline, models.MoodPoint{
					Timestamp:  fs.Timestamp,
					Mood:       mood,
					Confidence: score,
				})
			}
		}
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Timestamp.Before(timeline[j].Timestamp)
	})

	n := float64(len(responses))
	out := &models.SessionMetrics{
		MoodTimeline:      timeline,
		MoodDistribution:  distribution(timeline),
		AverageConfidence: confSum / n,
	}
	if samples > 0 {
		out.EyeContactPercentage = float64(eyeContact) / float64(samples)
	}
	if out.MoodTimeline == nil {
		out.MoodTimeline = []models.MoodPoint{}
	}

	out.ResponseQuality = clamp01(lengthWeight*(lengthSum/n) + confidenceWeight*out.AverageConfidence)
	out.OverallEngagement = (out.EyeContactPercentage + out.ResponseQuality) / 2
	return out, nil
}

// lengthAdequacy scores a transcription against the word count expected
// for the question's duration, in [0,1].
func lengthAdequacy(transcription string, expectedSeconds int) float64 {
	words := len(strings.Fields(transcription))
	if expectedSeconds <= 0 {
		if words > 0 {
			return 1
		}
		return 0
	}
	return clamp01(float64(words) / (float64(expectedSeconds) * wordsPerSecond))
}

// dominantMood picks the highest scoring emotion; ties go to the
// alphabetically first name so the result does not depend on map order.
func dominantMood(emotions map[string]float64) (string, float64, bool) {
	if len(emotions) == 0 {
		return "", 0, false
	}
	names := make([]string, 0, len(emotions))
	for k := range emotions {
		names = append(names, k)
	}
	sort.Strings(names)

	best := names[0]
	for _, name := range names[1:] {
		if emotions[name] > emotions[best] {
			best = name
		}
	}
	return best, emotions[best], true
}

func distribution(timeline []models.MoodPoint) map[string]float64 {
	if len(timeline) == 0 {
		return nil
	}
	counts := map[string]int{}
	for _, p := range timeline {
		counts[p.Mood]++
	}
	out := make(map[string]float64, len(counts))
	for mood, c := range counts {
		out[mood] = float64(c) / float64(len(timeline))
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
