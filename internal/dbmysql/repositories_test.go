package dbmysql

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"roomchat/internal/common"
)

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}

	return gormDB, mock, cleanup
}

var (
	insertRoomGroup = regexp.QuoteMeta("INSERT INTO `room_groups`")
	selectRoomGroup = regexp.QuoteMeta("SELECT * FROM `room_groups` WHERE room_id = ?")
	insertIdentity  = regexp.QuoteMeta("INSERT INTO `chat_identities`")
	selectIdentity  = regexp.QuoteMeta("SELECT * FROM `chat_identities` WHERE fid = ?")
)

func roomGroupRows(roomID, groupID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"room_id", "group_id", "created_at"}).AddRow(roomID, groupID, time.Now())
}

func retiredRoomGroupRows(roomID, groupID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"room_id", "group_id", "created_at", "retired_at"}).
		AddRow(roomID, groupID, time.Now(), time.Now())
}

func TestRoomGroupRepository_SetGroupID(t *testing.T) {
	tests := []struct {
		name      string
		groupID   string
		mockSetup func(sqlmock.Sqlmock)
		wantErr   error
		anyErr    bool
	}{
		{
			name:    "binds unbound room",
			groupID: "group-1",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(insertRoomGroup).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
				mock.ExpectQuery(selectRoomGroup).WillReturnRows(roomGroupRows("room-1", "group-1"))
			},
		},
		{
			name:    "same group is idempotent",
			groupID: "group-1",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(insertRoomGroup).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
				mock.ExpectQuery(selectRoomGroup).WillReturnRows(roomGroupRows("room-1", "group-1"))
			},
		},
		{
			name:    "different group is rejected",
			groupID: "group-2",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(insertRoomGroup).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
				mock.ExpectQuery(selectRoomGroup).WillReturnRows(roomGroupRows("room-1", "group-1"))
			},
			wantErr: common.ErrRoomAlreadyBound,
		},
		{
			name:    "retired room",
			groupID: "group-2",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(insertRoomGroup).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
				mock.ExpectQuery(selectRoomGroup).WillReturnRows(retiredRoomGroupRows("room-1", "group-1"))
			},
			wantErr: common.ErrRoomRetired,
		},
		{
			name:    "insert failure",
			groupID: "group-1",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(insertRoomGroup).WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := setupTestDB(t)
			defer cleanup()
			tt.mockSetup(mock)

			err := NewRoomGroupRepository(db).SetGroupID(context.Background(), "room-1", tt.groupID)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRoomGroupRepository_GroupID(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewRoomGroupRepository(db)

	mock.ExpectQuery(selectRoomGroup).WillReturnRows(roomGroupRows("room-1", "group-1"))
	id, err := repo.GroupID(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, "group-1", id)

	mock.ExpectQuery(selectRoomGroup).WillReturnRows(sqlmock.NewRows([]string{"room_id", "group_id", "created_at"}))
	_, err = repo.GroupID(context.Background(), "room-2")
	assert.ErrorIs(t, err, common.ErrRecordNotFound)

	mock.ExpectQuery(selectRoomGroup).WillReturnRows(retiredRoomGroupRows("room-3", "group-3"))
	_, err = repo.GroupID(context.Background(), "room-3")
	assert.ErrorIs(t, err, common.ErrRoomRetired)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomGroupRepository_RetireGroupID(t *testing.T) {
	retire := regexp.QuoteMeta("UPDATE `room_groups` SET `retired_at`=? WHERE room_id = ? AND retired_at IS NULL")

	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "bound room", affected: 1},
		{name: "missing or already retired", affected: 0, wantErr: common.ErrRecordNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := setupTestDB(t)
			defer cleanup()

			mock.ExpectBegin()
			mock.ExpectExec(retire).
				WithArgs(sqlmock.AnyArg(), "room-1").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			mock.ExpectCommit()

			err := NewRoomGroupRepository(db).RetireGroupID(context.Background(), "room-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRoomGroupRepository_ClearGroupID(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `room_groups` WHERE room_id = ?")).
		WithArgs("room-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, NewRoomGroupRepository(db).ClearGroupID(context.Background(), "room-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func identityRows(fid uint64, key, inbox string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"fid", "address", "encryption_key", "inbox_id", "created_at", "updated_at"}).
		AddRow(fid, "0xabc", key, inbox, time.Now(), time.Now())
}

func TestIdentityRepository_EnsureEncryptionKey(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(insertIdentity).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(selectIdentity).WillReturnRows(identityRows(42, "stored-key", ""))

	key, err := NewIdentityRepository(db).EnsureEncryptionKey(context.Background(), 42, "0xabc", "candidate")
	require.NoError(t, err)
	assert.Equal(t, "stored-key", key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepository_Get(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	mock.ExpectQuery(selectIdentity).WillReturnRows(identityRows(42, "k", "inbox-1"))
	rec, err := repo.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), rec.FID)
	assert.Equal(t, "inbox-1", rec.InboxID)

	mock.ExpectQuery(selectIdentity).
		WillReturnRows(sqlmock.NewRows([]string{"fid", "address", "encryption_key", "inbox_id", "created_at", "updated_at"}))
	_, err = repo.Get(context.Background(), 7)
	assert.ErrorIs(t, err, common.ErrRecordNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepository_SetInboxID(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewIdentityRepository(db)
	update := regexp.QuoteMeta("UPDATE `chat_identities` SET")

	mock.ExpectBegin()
	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	assert.NoError(t, repo.SetInboxID(context.Background(), 42, "inbox-1"))

	mock.ExpectBegin()
	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	assert.ErrorIs(t, repo.SetInboxID(context.Background(), 7, "inbox-2"), common.ErrRecordNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
