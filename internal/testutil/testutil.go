// Package testutil builds in-memory fixtures shared by package tests.
package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/migration"
	servicedomain "github.com/smallbiznis/fieldops/internal/serviceorder/domain"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Epoch is the fixed start time used by fake clocks in tests.
var Epoch = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

// NewDB opens a private in-memory SQLite database with the full schema.
// A single connection keeps the shared-cache database alive and serializes
// writers the way a row lock would.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migration.AutoMigrate(conn))
	return conn
}

func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func NewClock() *clock.FakeClock {
	return clock.NewFakeClock(Epoch)
}

// CreateUser inserts a user and returns it as an actor.
func CreateUser(t *testing.T, conn *gorm.DB, node *snowflake.Node, username string, role userdomain.Role, technicianID *snowflake.ID) userdomain.Actor {
	t.Helper()
	user := userdomain.User{
		ID:           node.Generate(),
		Username:     username,
		FullName:     strings.ToUpper(username[:1]) + username[1:],
		Role:         role,
		TechnicianID: technicianID,
		CreatedAt:    Epoch,
	}
	require.NoError(t, conn.Create(&user).Error)
	return user.Actor()
}

// CreateService inserts a service row as-is.
func CreateService(t *testing.T, conn *gorm.DB, node *snowflake.Node, mutate func(*servicedomain.ServiceOrder)) servicedomain.ServiceOrder {
	t.Helper()
	svc := servicedomain.ServiceOrder{
		ID:          node.Generate(),
		ClientID:    snowflake.ID(1001),
		ApplianceID: snowflake.ID(2002),
		Description: "Washer leaks from the door seal",
		Status:      servicedomain.StatusPending,
		CreatedAt:   Epoch,
		UpdatedAt:   Epoch,
	}
	if mutate != nil {
		mutate(&svc)
	}
	require.NoError(t, conn.Create(&svc).Error)
	return svc
}

// CountRows counts rows of model matching where.
func CountRows(t *testing.T, conn *gorm.DB, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func Ptr[T any](v T) *T { return &v }
