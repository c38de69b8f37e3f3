package dbmongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roomchat/internal/common"
	"roomchat/internal/identity"
)

// upsertAttempts bounds the retries after a duplicate-key upsert race.
const upsertAttempts = 3

type IdentityStore struct {
	coll *mongo.Collection
}

func NewIdentityStore(db *mongo.Database) *IdentityStore {
	return &IdentityStore{coll: db.Collection(IdentityCollection)}
}

// EnsureEncryptionKey inserts candidate only when the user has no record.
// Two concurrent upserts on the unique fid index make one of them fail with
// a duplicate key; that caller retries and reads the winner's key.
func (s *IdentityStore) EnsureEncryptionKey(ctx context.Context, fid uint64, address, candidate string) (string, error) {
	now := time.Now().UTC()
	update := bson.M{"$setOnInsert": bson.M{
		"fid":            fid,
		"address":        address,
		"encryption_key": candidate,
		"created_at":     now,
		"updated_at":     now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var rec identity.UserIdentity
	op := func() error {
		err := s.coll.FindOneAndUpdate(ctx, bson.M{"fid": fid}, update, opts).Decode(&rec)
		if err != nil && !mongo.IsDuplicateKeyError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, upsertAttempts-1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", fmt.Errorf("ensure key for %d: %w", fid, err)
	}
	if rec.EncryptionKey == "" {
		return "", fmt.Errorf("identity %d has no encryption key", fid)
	}
	return rec.EncryptionKey, nil
}

func (s *IdentityStore) Get(ctx context.Context, fid uint64) (*identity.UserIdentity, error) {
	var rec identity.UserIdentity
	err := s.coll.FindOne(ctx, bson.M{"fid": fid}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, common.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find identity %d: %w", fid, err)
	}
	return &rec, nil
}

func (s *IdentityStore) SetInboxID(ctx context.Context, fid uint64, inboxID string) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"fid": fid}, bson.M{"$set": bson.M{
		"inbox_id":   inboxID,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("set inbox id for %d: %w", fid, err)
	}
	if res.MatchedCount == 0 {
		return common.ErrRecordNotFound
	}
	return nil
}
