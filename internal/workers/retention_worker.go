package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/prepdeck/internal/models"
)

const (
	DefaultSweepStream = "retention:jobs"
	DefaultSweepGroup  = "retention-workers"
)

// Sweeper applies a user's stored retention policy from offset.
type Sweeper interface {
	ApplyUserPolicy(ctx context.Context, userID string, offset int) (*models.RetentionResult, error)
}

// SweepJob is one bounded retention pass queued on the stream.
type SweepJob struct {
	JobID  string
	UserID string
	Offset int
}

// RetentionWorkerPool consumes sweep jobs from a redis stream consumer group.
// A pass that does not finish re-queues itself at its next offset.
type RetentionWorkerPool struct {
	Redis      *redis.Client
	Sweeper    Sweeper
	NumWorkers int
	Logger     *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *RetentionWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Sweeper == nil {
		return errors.New("RetentionWorkerPool missing dependency: Redis/Sweeper must be set")
	}
	p.defaults()

	// BUSYGROUP means the group already exists
	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err()

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	p.Logger.WithFields(logrus.Fields{"stream": p.Stream, "workers": p.NumWorkers}).Info("retention workers started")
	return nil
}

func (p *RetentionWorkerPool) defaults() {
	if p.Stream == "" {
		p.Stream = DefaultSweepStream
	}
	if p.Group == "" {
		p.Group = DefaultSweepGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "sweeper"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
}

func (p *RetentionWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    5,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("xreadgroup failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *RetentionWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	job, err := ParseSweepJob(msg.Values)
	log := p.Logger.WithField("redis_id", msg.ID)
	if err != nil {
		log.WithError(err).Warn("dropping malformed sweep job")
		return
	}
	log = log.WithFields(logrus.Fields{"job_id": job.JobID, "user_id": job.UserID, "offset": job.Offset})

	res, next, err := p.process(ctx, job)
	if err != nil {
		log.WithError(err).Error("retention sweep failed")
		p.publish(ctx, job, map[string]any{"type": "retention", "status": "failed", "job_id": job.JobID})
		return
	}

	if next != nil {
		if _, err := EnqueueSweep(ctx, p.Redis, p.Stream, *next); err != nil {
			log.WithError(err).Error("failed to requeue sweep continuation")
		}
	}
	status := "done"
	if next != nil {
		status = "continued"
	}
	p.publish(ctx, job, map[string]any{"type": "retention", "status": status, "job_id": job.JobID, "result": res})
}

// process runs one pass and returns the continuation job, if any.
func (p *RetentionWorkerPool) process(ctx context.Context, job SweepJob) (*models.RetentionResult, *SweepJob, error) {
	res, err := p.Sweeper.ApplyUserPolicy(ctx, job.UserID, job.Offset)
	if err != nil {
		return nil, nil, err
	}
	if res.Done {
		return res, nil, nil
	}
	next := SweepJob{JobID: job.JobID, UserID: job.UserID, Offset: res.NextOffset}
	return res, &next, nil
}

func (p *RetentionWorkerPool) publish(ctx context.Context, job SweepJob, payload map[string]any) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = p.Redis.Publish(ctx, SweepStatusChannel(job.UserID), string(b)).Err()
}

// SweepStatusChannel is where sweep progress for a user is published.
func SweepStatusChannel(userID string) string { return "retention:" + userID + ":status" }

// EnqueueSweep queues a pass for job.UserID and returns the job id.
func EnqueueSweep(ctx context.Context, rdb *redis.Client, stream string, job SweepJob) (string, error) {
	if stream == "" {
		stream = DefaultSweepStream
	}
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"job_id":  job.JobID,
			"user_id": job.UserID,
			"offset":  strconv.Itoa(job.Offset),
		},
	}).Err()
	if err != nil {
		return "", err
	}
	return job.JobID, nil
}

func ParseSweepJob(values map[string]any) (SweepJob, error) {
	get := func(k string) string {
		s, _ := values[k].(string)
		return s
	}
	job := SweepJob{JobID: get("job_id"), UserID: get("user_id")}
	if job.UserID == "" {
		return SweepJob{}, errors.New("sweep job has no user_id")
	}
	if raw := get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return SweepJob{}, errors.New("sweep job has an invalid offset")
		}
		job.Offset = n
	}
	return job, nil
}
