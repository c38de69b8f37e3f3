package dbmysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roomchat/internal/common"
	"roomchat/internal/group"
	"roomchat/internal/identity"
)

type roomGroupRepository struct {
	db *gorm.DB
}

func NewRoomGroupRepository(db *gorm.DB) group.Store {
	return &roomGroupRepository{db: db}
}

// SetGroupID inserts the binding unless the room already has one, then reads
// back whichever binding is stored.
func (r *roomGroupRepository) SetGroupID(ctx context.Context, roomID, groupID string) error {
	row := &RoomGroup{RoomID: roomID, GroupID: groupID}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return fmt.Errorf("failed to bind room %s: %w", roomID, err)
	}
	bound, err := r.GroupID(ctx, roomID)
	if err != nil {
		return err
	}
	if bound != groupID {
		return common.ErrRoomAlreadyBound
	}
	return nil
}

func (r *roomGroupRepository) GroupID(ctx context.Context, roomID string) (string, error) {
	var row RoomGroup
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", common.ErrRecordNotFound
		}
		return "", fmt.Errorf("failed to get room %s: %w", roomID, err)
	}
	if row.RetiredAt != nil {
		return "", common.ErrRoomRetired
	}
	return row.GroupID, nil
}

// RetireGroupID marks the room retired and keeps the row, so the room id
// can never be bound to another group.
func (r *roomGroupRepository) RetireGroupID(ctx context.Context, roomID string) error {
	res := r.db.WithContext(ctx).Model(&RoomGroup{}).
		Where("room_id = ? AND retired_at IS NULL", roomID).
		Update("retired_at", time.Now().UTC())
	if res.Error != nil {
		return fmt.Errorf("failed to retire room %s: %w", roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrRecordNotFound
	}
	return nil
}

func (r *roomGroupRepository) ClearGroupID(ctx context.Context, roomID string) error {
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&RoomGroup{}).Error; err != nil {
		return fmt.Errorf("failed to unbind room %s: %w", roomID, err)
	}
	return nil
}

type identityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) identity.Store {
	return &identityRepository{db: db}
}

func (r *identityRepository) EnsureEncryptionKey(ctx context.Context, fid uint64, address, candidate string) (string, error) {
	row := &ChatIdentity{FID: fid, Address: address, EncryptionKey: candidate}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return "", fmt.Errorf("failed to create identity %d: %w", fid, err)
	}
	stored, err := r.Get(ctx, fid)
	if err != nil {
		return "", err
	}
	if stored.EncryptionKey == "" {
		return "", fmt.Errorf("identity %d has no encryption key", fid)
	}
	return stored.EncryptionKey, nil
}

func (r *identityRepository) Get(ctx context.Context, fid uint64) (*identity.UserIdentity, error) {
	var row ChatIdentity
	if err := r.db.WithContext(ctx).Where("fid = ?", fid).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get identity %d: %w", fid, err)
	}
	return row.toIdentity(), nil
}

func (r *identityRepository) SetInboxID(ctx context.Context, fid uint64, inboxID string) error {
	res := r.db.WithContext(ctx).Model(&ChatIdentity{}).Where("fid = ?", fid).
		Updates(map[string]interface{}{"inbox_id": inboxID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("failed to set inbox id for %d: %w", fid, res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrRecordNotFound
	}
	return nil
}
