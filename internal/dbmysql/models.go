package dbmysql

import (
	"time"

	"roomchat/internal/identity"
)

type RoomGroup struct {
	RoomID    string     `gorm:"primaryKey;size:128" json:"room_id"`
	GroupID   string     `gorm:"size:128;not null" json:"group_id"`
	CreatedAt time.Time  `json:"created_at"`
	RetiredAt *time.Time `gorm:"index" json:"retired_at,omitempty"`
}

func (RoomGroup) TableName() string {
	return "room_groups"
}

type ChatIdentity struct {
	FID           uint64    `gorm:"primaryKey;autoIncrement:false" json:"fid"`
	Address       string    `gorm:"size:42;index" json:"address"`
	EncryptionKey string    `gorm:"size:64;not null" json:"-"`
	InboxID       string    `gorm:"size:128" json:"inbox_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (ChatIdentity) TableName() string {
	return "chat_identities"
}

func (c *ChatIdentity) toIdentity() *identity.UserIdentity {
	return &identity.UserIdentity{
		FID:           c.FID,
		Address:       c.Address,
		EncryptionKey: c.EncryptionKey,
		InboxID:       c.InboxID,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}
