package dbmongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roomchat/internal/common"
)

type roomGroupDoc struct {
	RoomID    string     `bson:"_id"`
	GroupID   string     `bson:"group_id"`
	CreatedAt time.Time  `bson:"created_at"`
	RetiredAt *time.Time `bson:"retired_at,omitempty"`
}

// RoomGroupStore keeps one document per room keyed by the room id, so a room
// can only ever be bound once. Retiring sets retired_at and keeps the
// document.
type RoomGroupStore struct {
	coll *mongo.Collection
}

func NewRoomGroupStore(db *mongo.Database) *RoomGroupStore {
	return &RoomGroupStore{coll: db.Collection(RoomGroupsCollection)}
}

func (s *RoomGroupStore) SetGroupID(ctx context.Context, roomID, groupID string) error {
	update := bson.M{"$setOnInsert": bson.M{
		"group_id":   groupID,
		"created_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc roomGroupDoc
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": roomID}, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// lost an upsert race; the winner's document is now readable
		bound, gerr := s.GroupID(ctx, roomID)
		if gerr != nil {
			return gerr
		}
		doc.GroupID = bound
		err = nil
	}
	if err != nil {
		return fmt.Errorf("bind room %s: %w", roomID, err)
	}
	if doc.RetiredAt != nil {
		return common.ErrRoomRetired
	}
	if doc.GroupID != groupID {
		return common.ErrRoomAlreadyBound
	}
	return nil
}

func (s *RoomGroupStore) GroupID(ctx context.Context, roomID string) (string, error) {
	var doc roomGroupDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": roomID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", common.ErrRecordNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find room %s: %w", roomID, err)
	}
	if doc.RetiredAt != nil {
		return "", common.ErrRoomRetired
	}
	return doc.GroupID, nil
}

func (s *RoomGroupStore) RetireGroupID(ctx context.Context, roomID string) error {
	filter := bson.M{"_id": roomID, "retired_at": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"retired_at": time.Now().UTC()}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("retire room %s: %w", roomID, err)
	}
	if res.MatchedCount == 0 {
		return common.ErrRecordNotFound
	}
	return nil
}

func (s *RoomGroupStore) ClearGroupID(ctx context.Context, roomID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": roomID}); err != nil {
		return fmt.Errorf("unbind room %s: %w", roomID, err)
	}
	return nil
}
