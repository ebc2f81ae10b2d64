package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/prepdeck/internal/models"
)

func TestTransition_LegalEdges(t *testing.T) {
	tests := []struct {
		name string
		from models.SessionStatus
		to   models.SessionStatus
		req  Request
	}{
		{"complete with feedback", models.StatusInProgress, models.StatusCompleted, Request{HasFeedback: true}},
		{"abandon", models.StatusInProgress, models.StatusAbandoned, Request{}},
		{"archive completed", models.StatusCompleted, models.StatusArchived, Request{}},
		{"archive abandoned", models.StatusAbandoned, models.StatusArchived, Request{}},
		{"restore completed", models.StatusArchived, models.StatusCompleted, Request{ArchivedFrom: models.StatusCompleted}},
		{"restore abandoned", models.StatusArchived, models.StatusAbandoned, Request{ArchivedFrom: models.StatusAbandoned}},
		{"delete archived", models.StatusArchived, models.StatusDeleted, Request{}},
		{"confirmed delete completed", models.StatusCompleted, models.StatusDeleted, Request{Confirmed: true}},
		{"confirmed delete abandoned", models.StatusAbandoned, models.StatusDeleted, Request{Confirmed: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Transition(tt.from, tt.to, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.to, next)
		})
	}
}

func TestTransition_RejectedEdges(t *testing.T) {
	tests := []struct {
		name string
		from models.SessionStatus
		to   models.SessionStatus
		req  Request
	}{
		{"reopen archived", models.StatusArchived, models.StatusInProgress, Request{ArchivedFrom: models.StatusCompleted}},
		{"complete without feedback", models.StatusInProgress, models.StatusCompleted, Request{}},
		{"archive in-progress", models.StatusInProgress, models.StatusArchived, Request{}},
		{"delete in-progress", models.StatusInProgress, models.StatusDeleted, Request{Confirmed: true}},
		{"unconfirmed delete completed", models.StatusCompleted, models.StatusDeleted, Request{}},
		{"restore to other terminal", models.StatusArchived, models.StatusAbandoned, Request{ArchivedFrom: models.StatusCompleted}},
		{"restore without origin", models.StatusArchived, models.StatusCompleted, Request{}},
		{"resurrect deleted", models.StatusDeleted, models.StatusArchived, Request{}},
		{"reopen completed", models.StatusCompleted, models.StatusInProgress, Request{}},
		{"self loop", models.StatusCompleted, models.StatusCompleted, Request{HasFeedback: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Transition(tt.from, tt.to, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.from, next)

			var te *TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.from, te.From)
			assert.Equal(t, tt.to, te.To)
			assert.Contains(t, err.Error(), string(tt.from))
			assert.Contains(t, err.Error(), string(tt.to))
		})
	}
}

func TestTransition_OnlyTableEdgesAccepted(t *testing.T) {
	permissive := Request{HasFeedback: true, Confirmed: true}
	for _, from := range models.AllStatuses {
		for _, to := range models.AllStatuses {
			req := permissive
			req.ArchivedFrom = to
			_, err := Transition(from, to, req)
			if Allowed(from, to) {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.Error(t, err, "%s -> %s", from, to)
			}
		}
	}
}
