package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestDescribeSQL(t *testing.T) {
	shape := describeSQL(`SELECT * FROM "deleted_services" WHERE service_id = $1 LIMIT 1 FOR UPDATE`)
	assert.Equal(t, "SELECT", shape.operation)
	assert.Equal(t, "deleted_services", shape.table)
	assert.True(t, shape.locking)

	shape = describeSQL("INSERT INTO `service_audit_logs` (`id`) VALUES (?)")
	assert.Equal(t, "INSERT", shape.operation)
	assert.Equal(t, "service_audit_logs", shape.table)
	assert.False(t, shape.locking)

	shape = describeSQL(`UPDATE "services" SET "status"=$1`)
	assert.Equal(t, "UPDATE", shape.operation)
	assert.Equal(t, "services", shape.table)

	assert.Equal(t, "UNKNOWN", describeSQL("").operation)
}

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	l := NewGormLogger(DefaultGormLoggerConfig())
	ctx := context.Background()
	fc := func() (string, int64) { return `SELECT * FROM "users" WHERE id = 1`, 0 }

	l.Trace(ctx, time.Now(), fc, gormlogger.ErrRecordNotFound)
	assert.Zero(t, logs.Len())

	l.Trace(ctx, time.Now(), fc, errors.New("connection reset"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "users", entry.ContextMap()["table"])

	l.Trace(ctx, time.Now().Add(-time.Second), fc, nil)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(ctx, time.Now(), fc, errors.New("ignored"))
	assert.Equal(t, 2, logs.Len())
}
