package repository

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/testutil"
	"github.com/smallbiznis/fieldops/internal/vault/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func insertRecord(t *testing.T, conn *gorm.DB, node *snowflake.Node, serviceID snowflake.ID) domain.DeletedServiceRecord {
	t.Helper()
	record := domain.DeletedServiceRecord{
		ID:                  node.Generate(),
		ServiceID:           serviceID,
		OriginalServiceData: datatypes.JSON(`{"description":"Washer leaks"}`),
		DeletedBy:           1,
		DeletedByUsername:   "dana",
		DeletedByRole:       "admin",
		DeletedAt:           testutil.Epoch,
		CanBeRestored:       true,
	}
	require.NoError(t, Provide().Insert(context.Background(), conn, &record))
	return record
}

func TestMarkRestoredAppliesOnce(t *testing.T) {
	conn := testutil.NewDB(t)
	node := testutil.NewNode(t)
	repo := Provide()
	ctx := context.Background()
	record := insertRecord(t, conn, node, 42)

	first := domain.RestoreStamp{RecordID: record.ID, RestoredBy: 7, RestoredAt: testutil.Epoch, RestoredServiceID: 100}
	affected, err := repo.MarkRestored(ctx, conn, first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	second := domain.RestoreStamp{RecordID: record.ID, RestoredBy: 8, RestoredAt: testutil.Epoch, RestoredServiceID: 200}
	affected, err = repo.MarkRestored(ctx, conn, second)
	require.NoError(t, err)
	assert.Zero(t, affected)

	stored, err := repo.FindByServiceID(ctx, conn, 42)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.CanBeRestored)
	assert.False(t, stored.Restorable())
	require.NotNil(t, stored.RestoredServiceID)
	assert.Equal(t, snowflake.ID(100), *stored.RestoredServiceID)
	require.NotNil(t, stored.RestoredBy)
	assert.Equal(t, snowflake.ID(7), *stored.RestoredBy)
}

func TestListRestorableSkipsRestoredRecords(t *testing.T) {
	conn := testutil.NewDB(t)
	node := testutil.NewNode(t)
	repo := Provide()
	ctx := context.Background()
	kept := insertRecord(t, conn, node, 42)
	restored := insertRecord(t, conn, node, 43)

	_, err := repo.MarkRestored(ctx, conn, domain.RestoreStamp{RecordID: restored.ID, RestoredBy: 7, RestoredAt: testutil.Epoch, RestoredServiceID: 100})
	require.NoError(t, err)

	items, err := repo.ListRestorable(ctx, conn)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, kept.ID, items[0].ID)
}

func TestFindByServiceIDMissing(t *testing.T) {
	conn := testutil.NewDB(t)

	record, err := Provide().FindByServiceID(context.Background(), conn, 404)
	require.NoError(t, err)
	assert.Nil(t, record)
}
