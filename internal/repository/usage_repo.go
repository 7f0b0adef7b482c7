package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// UsageRecord is one append-only ledger entry for a model call. Cost is
// computed from the backend's returned token counts, never from estimates.
type UsageRecord struct {
	SessionID    string    `bson:"sessionId"`
	SurveyID     string    `bson:"surveyId"`
	Operation    string    `bson:"operation"` // interviewer, summarize, coverage, quality, completion
	InputTokens  int       `bson:"inputTokens"`
	OutputTokens int       `bson:"outputTokens"`
	Cost         float64   `bson:"cost"`
	CreatedAt    time.Time `bson:"createdAt"`
}

type UsageRepo interface {
	Record(ctx context.Context, rec *UsageRecord) error
}

type usageRepo struct {
	collection *mongo.Collection
}

func NewUsageRepo(db *mongo.Database) UsageRepo {
	return &usageRepo{
		collection: db.Collection("ai_usage"),
	}
}

func (r *usageRepo) Record(ctx context.Context, rec *UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, rec)
	return err
}
