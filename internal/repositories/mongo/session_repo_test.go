package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/yoockh/prepdeck/internal/models"
)

func TestPatchDoc(t *testing.T) {
	status := models.StatusArchived
	from := models.StatusCompleted
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))

	set, unset := patchDoc(models.SessionPatch{Status: &status, ArchivedFrom: &from, ArchivedAt: &at})
	assert.Equal(t, bson.M{"status": status, "archived_from": from, "archived_at": at.UTC()}, set)
	assert.Empty(t, unset)

	set, unset = patchDoc(models.SessionPatch{ClearArchive: true})
	assert.Empty(t, set)
	assert.Equal(t, bson.M{"archived_at": "", "archived_from": ""}, unset)
}

func TestQueryFilter(t *testing.T) {
	assert.Equal(t, bson.M{"candidate_id": "u1"}, queryFilter("u1", models.SessionFilter{}))

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := queryFilter("u1", models.SessionFilter{
		Status:     models.StatusCompleted,
		Difficulty: models.DifficultyAdvanced,
		From:       &from,
		Search:     "a.b",
	})
	assert.Equal(t, models.StatusCompleted, f["status"])
	assert.Equal(t, models.DifficultyAdvanced, f["configuration.difficulty"])
	assert.Equal(t, bson.M{"$gte": from}, f["started_at"])

	or, ok := f["$or"].(bson.A)
	if assert.True(t, ok) {
		assert.Len(t, or, 2)
		assert.Equal(t, bson.M{"questions.text": bson.M{"$regex": `a\.b`, "$options": "i"}}, or[0])
	}
}
