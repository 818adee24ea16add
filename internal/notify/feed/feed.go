package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agenda/backend/internal/notify"
)

var ErrNotFound = errors.New("notification not found")

// Notification is one entry in a provider's in-app feed.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User      string             `bson:"user" json:"user"`
	Content   string             `bson:"content" json:"content"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Feed stores in-app notifications in MongoDB. It implements notify.Sink
// for new-booking events and serves the provider's feed reads.
type Feed struct {
	coll     *mongo.Collection
	pageSize int
}

func New(client *mongo.Client, database string, pageSize int) (*Feed, error) {
	f := &Feed{
		coll:     client.Database(database).Collection("notifications"),
		pageSize: pageSize,
	}
	if err := f.ensureIndexes(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Feed) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := f.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create notification indexes: %w", err)
	}
	return nil
}

func (f *Feed) Emit(ctx context.Context, ev notify.Event) error {
	_, err := f.coll.InsertOne(ctx, Notification{
		User:      ev.RecipientID.String(),
		Content:   ev.Content,
		Read:      false,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListForRecipient returns the recipient's most recent notifications,
// newest first.
func (f *Feed) ListForRecipient(ctx context.Context, recipientID uuid.UUID) ([]Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(f.pageSize))

	cur, err := f.coll.Find(ctx, bson.M{"user": recipientID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]Notification, 0, f.pageSize)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return out, nil
}

// MarkRead flips the read flag and returns the updated notification.
func (f *Feed) MarkRead(ctx context.Context, id string, recipientID uuid.UUID) (Notification, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Notification{}, ErrNotFound
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var n Notification
	err = f.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "user": recipientID.String()},
		bson.M{"$set": bson.M{"read": true}},
		opts,
	).Decode(&n)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return n, nil
}
