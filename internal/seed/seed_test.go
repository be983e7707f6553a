package seed

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/fieldops/internal/clock"
	permissiondomain "github.com/smallbiznis/fieldops/internal/permission/domain"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEnsureAdminIsIdempotent(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&userdomain.User{}, &permissiondomain.UserPermission{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC))

	created, err := EnsureAdmin(conn, node, clk, " ops ")
	require.NoError(t, err)
	require.True(t, created)

	created, err = EnsureAdmin(conn, node, clk, "ops")
	require.NoError(t, err)
	require.False(t, created)

	var user userdomain.User
	require.NoError(t, conn.Where("username = ?", "ops").First(&user).Error)
	require.Equal(t, userdomain.RoleAdmin, user.Role)
	require.Equal(t, int64(3), user.ID.Node())
	require.True(t, user.CreatedAt.Equal(clk.Now()))

	var perm permissiondomain.UserPermission
	require.NoError(t, conn.Where("user_id = ?", user.ID).First(&perm).Error)
	require.True(t, perm.CanDeleteServices)
	require.True(t, perm.CanManageUsers)
}

func TestEnsureAdminRequiresGenerator(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	_, err = EnsureAdmin(conn, nil, nil, "ops")
	require.Error(t, err)
}
