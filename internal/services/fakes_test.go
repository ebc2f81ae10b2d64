package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/prepdeck/internal/models"
	"github.com/yoockh/prepdeck/internal/observability"
	"github.com/yoockh/prepdeck/internal/repositories/memory"
	"github.com/yoockh/prepdeck/internal/utils"
)

var epoch = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	b, ok := c.data[key]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = b
	c.mu.Unlock()
	return nil
}

func (c *memCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.data, k)
	}
	c.mu.Unlock()
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type memEvents struct {
	mu   sync.Mutex
	rows []models.SessionEvent
}

func (e *memEvents) Insert(_ context.Context, ev *models.SessionEvent) error {
	e.mu.Lock()
	e.rows = append(e.rows, *ev)
	e.mu.Unlock()
	return nil
}

func (e *memEvents) ListBySession(_ context.Context, sessionID string, limit int) ([]models.SessionEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := []models.SessionEvent{}
	for _, ev := range e.rows {
		if ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memPolicies struct {
	mu   sync.Mutex
	rows map[string]models.UserRetentionPolicy
}

func (p *memPolicies) GetByUserID(_ context.Context, userID string) (*models.UserRetentionPolicy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	row, ok := p.rows[userID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &row, nil
}

func (p *memPolicies) Upsert(_ context.Context, row *models.UserRetentionPolicy) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rows == nil {
		p.rows = map[string]models.UserRetentionPolicy{}
	}
	p.rows[row.UserID] = *row
	return nil
}

type memUploader struct {
	objects map[string][]byte
}

func (u *memUploader) Upload(_ context.Context, name, _ string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	if u.objects == nil {
		u.objects = map[string][]byte{}
	}
	u.objects[name] = buf.Bytes()
	return "mem://" + name, nil
}

type fixture struct {
	deps   Deps
	clock  *clock
	cache  *memCache
	events *memEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{
		clock:  &clock{now: epoch},
		cache:  newMemCache(),
		events: &memEvents{},
	}
	f.deps = Deps{
		Sessions: memory.NewSessionRepo(),
		Events:   f.events,
		Cache:    f.cache,
		Metrics:  observability.NewMetrics(prometheus.NewRegistry()),
		Logger:   logger,
		Now:      f.clock.Now,
	}
	return f
}

func startInput(id string, questions int) StartSessionInput {
	in := StartSessionInput{
		SessionID: id,
		Configuration: models.SessionConfiguration{
			Interviewer:   "ava",
			InterviewType: models.InterviewTechnical,
			Difficulty:    models.DifficultyModerate,
		},
	}
	for i := 0; i < questions; i++ {
		in.Questions = append(in.Questions, models.Question{
			ID:               string(rune('a' + i)),
			Text:             "Question " + string(rune('A'+i)),
			ExpectedDuration: 30,
		})
	}
	return in
}

// seed stores a session directly, bypassing the lifecycle.
func seed(t *testing.T, f *fixture, id, user string, status models.SessionStatus, completedAt time.Time) {
	t.Helper()
	s := &models.InterviewSession{
		SessionID:   id,
		CandidateID: user,
		Configuration: models.SessionConfiguration{
			Interviewer:   "ava",
			InterviewType: models.InterviewBehavioral,
			Difficulty:    models.DifficultyBeginner,
		},
		Questions: []models.Question{{ID: "q1", Text: "Tell me about yourself"}},
		Status:    status,
		StartedAt: completedAt.Add(-time.Hour),
	}
	if status == models.StatusCompleted {
		end := completedAt
		s.CompletedAt = &end
		s.Feedback = &models.Feedback{OverallScore: 70}
	}
	if err := f.deps.Sessions.Create(context.Background(), s); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}
