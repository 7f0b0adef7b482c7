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

type ConversationRepo interface {
	Create(ctx context.Context, conv *model.Conversation) error
	GetBySessionID(ctx context.Context, sessionID string) (*model.Conversation, error)
	Update(ctx context.Context, conv *model.Conversation) error
}

type conversationRepo struct {
	collection *mongo.Collection
}

func NewConversationRepo(db *mongo.Database) ConversationRepo {
	return &conversationRepo{
		collection: db.Collection("conversations"),
	}
}

func (r *conversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	conv.UpdatedAt = time.Now()
	result, err := r.collection.InsertOne(ctx, conv)
	if err != nil {
		return err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		conv.ID = oid.Hex()
	}
	return nil
}

func (r *conversationRepo) GetBySessionID(ctx context.Context, sessionID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.collection.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) Update(ctx context.Context, conv *model.Conversation) error {
	oid, err := primitive.ObjectIDFromHex(conv.ID)
	if err != nil {
		return err
	}
	conv.UpdatedAt = time.Now()
	update := bson.M{"$set": bson.M{
		"exchanges": conv.Exchanges,
		"usage":     conv.Usage,
		"updatedAt": conv.UpdatedAt,
	}}
	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	return err
}
