package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"voxpop/internal/model"
)

type SessionRepo interface {
	Create(ctx context.Context, session *model.Session) error
	GetByToken(ctx context.Context, token string) (*model.Session, error)
	// UpdateCAS writes the session only if its persisted revision still equals
	// expectedRevision, bumping the revision on success. Returns
	// model.ErrConflict when a concurrent request won the race.
	UpdateCAS(ctx context.Context, session *model.Session, expectedRevision int64) error
	CountByOriginSince(ctx context.Context, origin string, since time.Time) (int64, error)
}

type sessionRepo struct {
	collection *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepo {
	return &sessionRepo{
		collection: db.Collection("sessions"),
	}
}

func (r *sessionRepo) Create(ctx context.Context, session *model.Session) error {
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	session.Revision = 1

	result, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		return err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		session.ID = oid.Hex()
	}
	return nil
}

func (r *sessionRepo) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	var session model.Session
	err := r.collection.FindOne(ctx, bson.M{"token": token}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) UpdateCAS(ctx context.Context, session *model.Session, expectedRevision int64) error {
	oid, err := primitive.ObjectIDFromHex(session.ID)
	if err != nil {
		return err
	}

	next := *session
	next.Revision = expectedRevision + 1
	update := bson.M{"$set": bson.M{
		"status":   next.Status,
		"state":    next.State,
		"revision": next.Revision,
		"endedAt":  next.EndedAt,
	}}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid, "revision": expectedRevision}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return model.ErrConflict
	}
	session.Revision = next.Revision
	return nil
}

func (r *sessionRepo) CountByOriginSince(ctx context.Context, origin string, since time.Time) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{
		"origin":    origin,
		"startedAt": bson.M{"$gte": since},
	})
}
