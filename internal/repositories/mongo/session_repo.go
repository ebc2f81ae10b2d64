package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/yoockh/prepdeck/internal/models"
	"github.com/yoockh/prepdeck/internal/repositories"
	"github.com/yoockh/prepdeck/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const SessionsCollection = "interview_sessions"

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) repositories.SessionRepository {
	return &sessionRepo{col: db.Collection(SessionsCollection)}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.InterviewSession) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	s.Version = 1
	_, err := r.col.InsertOne(ctx, s)
	if mongo.IsDuplicateKeyError(err) {
		return utils.ErrConflict
	}
	return err
}

func (r *sessionRepo) Get(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	var s models.InterviewSession
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) Update(ctx context.Context, sessionID string, expectedVersion int64, patch models.SessionPatch) (*models.InterviewSession, error) {
	set, unset := patchDoc(patch)
	update := bson.M{"$inc": bson.M{"version": 1}}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var out models.InterviewSession
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"session_id": sessionID, "version": expectedVersion},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// either the id is unknown or the version moved on
		n, cerr := r.col.CountDocuments(ctx, bson.M{"session_id": sessionID}, options.Count().SetLimit(1))
		if cerr != nil {
			return nil, cerr
		}
		if n == 0 {
			return nil, utils.ErrNotFound
		}
		return nil, utils.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func patchDoc(p models.SessionPatch) (bson.M, bson.M) {
	set := bson.M{}
	unset := bson.M{}
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.ArchivedFrom != nil {
		set["archived_from"] = *p.ArchivedFrom
	}
	if p.Responses != nil {
		set["responses"] = p.Responses
	}
	if p.Metrics != nil {
		set["metrics"] = p.Metrics
	}
	if p.Feedback != nil {
		set["feedback"] = p.Feedback
	}
	if p.CompletedAt != nil {
		set["completed_at"] = p.CompletedAt.UTC()
	}
	if p.ArchivedAt != nil {
		set["archived_at"] = p.ArchivedAt.UTC()
	}
	if p.DeletedAt != nil {
		set["deleted_at"] = p.DeletedAt.UTC()
	}
	if p.ClearArchive {
		unset["archived_at"] = ""
		unset["archived_from"] = ""
	}
	return set, unset
}

func (r *sessionRepo) Query(ctx context.Context, candidateID string, f models.SessionFilter, page, pageSize int) ([]models.InterviewSession, int64, error) {
	filter := queryFilter(candidateID, f)

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 || pageSize < 1 {
		return []models.InterviewSession{}, total, nil
	}

	cur, err := r.col.Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "started_at", Value: -1}, {Key: "session_id", Value: 1}}).
			SetSkip(int64((page-1)*pageSize)).
			SetLimit(int64(pageSize)),
	)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := []models.InterviewSession{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func queryFilter(candidateID string, f models.SessionFilter) bson.M {
	filter := bson.M{"candidate_id": candidateID}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.InterviewType != "" {
		filter["configuration.interview_type"] = f.InterviewType
	}
	if f.Interviewer != "" {
		filter["configuration.interviewer"] = f.Interviewer
	}
	if f.Difficulty != "" {
		filter["configuration.difficulty"] = f.Difficulty
	}
	if f.From != nil || f.To != nil {
		rng := bson.M{}
		if f.From != nil {
			rng["$gte"] = f.From.UTC()
		}
		if f.To != nil {
			rng["$lte"] = f.To.UTC()
		}
		filter["started_at"] = rng
	}
	if f.Search != "" {
		rx := bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"questions.text": rx},
			bson.M{"feedback.notes": rx},
		}
	}
	return filter
}

func (r *sessionRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"session_id": sessionID})
	return err
}

func (r *sessionRepo) StorageStats(ctx context.Context, candidateID string) ([]models.StatusUsage, error) {
	match := bson.M{}
	if candidateID != "" {
		match["candidate_id"] = candidateID
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
			"bytes": bson.M{"$sum": bson.M{"$bsonSize": "$$ROOT"}},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.StatusUsage{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
