package workers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/prepdeck/internal/models"
)

type stubSweeper struct {
	res  *models.RetentionResult
	err  error
	seen []int
}

func (s *stubSweeper) ApplyUserPolicy(_ context.Context, _ string, offset int) (*models.RetentionResult, error) {
	s.seen = append(s.seen, offset)
	return s.res, s.err
}

func TestParseSweepJob(t *testing.T) {
	job, err := ParseSweepJob(map[string]any{"job_id": "j1", "user_id": "u1", "offset": "40"})
	require.NoError(t, err)
	assert.Equal(t, SweepJob{JobID: "j1", UserID: "u1", Offset: 40}, job)

	job, err = ParseSweepJob(map[string]any{"user_id": "u1"})
	require.NoError(t, err)
	assert.Zero(t, job.Offset)

	_, err = ParseSweepJob(map[string]any{"offset": "1"})
	assert.Error(t, err)
	_, err = ParseSweepJob(map[string]any{"user_id": "u1", "offset": "-3"})
	assert.Error(t, err)
}

func TestProcess_ContinuesUntilDone(t *testing.T) {
	sw := &stubSweeper{res: &models.RetentionResult{Archived: 3, NextOffset: 1000}}
	p := &RetentionWorkerPool{Sweeper: sw}
	p.defaults()

	res, next, err := p.process(context.Background(), SweepJob{JobID: "j1", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Archived)
	require.NotNil(t, next)
	assert.Equal(t, SweepJob{JobID: "j1", UserID: "u1", Offset: 1000}, *next)

	sw.res = &models.RetentionResult{Done: true}
	_, next, err = p.process(context.Background(), *next)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Equal(t, []int{0, 1000}, sw.seen)
}

func TestProcess_Error(t *testing.T) {
	p := &RetentionWorkerPool{Sweeper: &stubSweeper{err: errors.New("store down")}}
	p.defaults()
	_, next, err := p.process(context.Background(), SweepJob{UserID: "u1"})
	assert.Error(t, err)
	assert.Nil(t, next)
}

func TestStartRequiresDependencies(t *testing.T) {
	p := &RetentionWorkerPool{}
	assert.Error(t, p.Start(context.Background()))
}
