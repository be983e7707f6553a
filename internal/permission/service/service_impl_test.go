package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/fieldops/internal/audit/domain"
	auditrepo "github.com/smallbiznis/fieldops/internal/audit/repository"
	auditservice "github.com/smallbiznis/fieldops/internal/audit/service"
	"github.com/smallbiznis/fieldops/internal/permission/domain"
	"github.com/smallbiznis/fieldops/internal/permission/repository"
	"github.com/smallbiznis/fieldops/internal/testutil"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
	userrepo "github.com/smallbiznis/fieldops/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	svc      domain.Service
	auditSvc auditdomain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := testutil.NewClock()
	log := zap.NewNop()

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: auditrepo.Provide(),
	})
	return fixture{
		db:       conn,
		node:     node,
		auditSvc: auditSvc,
		svc: New(Params{
			DB:       conn,
			Log:      log,
			GenID:    node,
			Clock:    clk,
			Repo:     repository.Provide(),
			UserRepo: userrepo.Provide(),
			AuditSvc: auditSvc,
		}),
	}
}

func TestGetUserPermissionsUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetUserPermissions(context.Background(), snowflake.ID(999))
	require.ErrorIs(t, err, userdomain.ErrUserNotFound)
}

func TestGetUserPermissionsPersistsRoleDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.db, f.node, "dana", userdomain.RoleAdmin, nil)
	tech := testutil.CreateUser(t, f.db, f.node, "tomas", userdomain.RoleTechnician, testutil.Ptr(snowflake.ID(5)))

	adminPerm, err := f.svc.GetUserPermissions(ctx, admin.ID)
	require.NoError(t, err)
	for key, value := range adminPerm.Flags() {
		assert.Equal(t, true, value, key)
	}

	techPerm, err := f.svc.GetUserPermissions(ctx, tech.ID)
	require.NoError(t, err)
	for key, value := range techPerm.Flags() {
		assert.Equal(t, false, value, key)
	}

	again, err := f.svc.GetUserPermissions(ctx, tech.ID)
	require.NoError(t, err)
	assert.Equal(t, techPerm.ID, again.ID)
	assert.Equal(t, int64(2), testutil.CountRows(t, f.db, &domain.UserPermission{}, "1 = 1"))
}

func TestUpdateUserPermissionsByAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.db, f.node, "dana", userdomain.RoleAdmin, nil)
	partner := testutil.CreateUser(t, f.db, f.node, "acme", userdomain.RoleBusinessPartner, nil)

	updated, err := f.svc.UpdateUserPermissions(ctx, partner.ID, domain.Update{
		CanDeleteServices: testutil.Ptr(true),
		Notes:             testutil.Ptr("trusted partner"),
	}, admin)
	require.NoError(t, err)
	assert.True(t, updated.CanDeleteServices)
	assert.False(t, updated.CanManageUsers)
	require.NotNil(t, updated.GrantedBy)
	assert.Equal(t, admin.ID, *updated.GrantedBy)

	stored, err := f.svc.GetUserPermissions(ctx, partner.ID)
	require.NoError(t, err)
	assert.True(t, stored.CanDeleteServices)

	entries, err := f.auditSvc.Query(ctx, auditdomain.NonServiceID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, auditdomain.ActionPermissionsUpdated, entry.Action)
	assert.Equal(t, admin.ID, entry.PerformedBy)
	assert.Equal(t, false, entry.OldValues["can_delete_services"])
	assert.Equal(t, true, entry.NewValues["can_delete_services"])
	assert.Equal(t, partner.ID.String(), entry.NewValues["user_id"])
	require.NotNil(t, entry.Notes)
	assert.Equal(t, "trusted partner", *entry.Notes)
}

func TestUpdateUserPermissionsRequiresManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.db, f.node, "dana", userdomain.RoleAdmin, nil)
	tech := testutil.CreateUser(t, f.db, f.node, "tomas", userdomain.RoleTechnician, testutil.Ptr(snowflake.ID(5)))
	partner := testutil.CreateUser(t, f.db, f.node, "acme", userdomain.RoleBusinessPartner, nil)

	_, err := f.svc.UpdateUserPermissions(ctx, partner.ID, domain.Update{CanDeleteServices: testutil.Ptr(true)}, tech)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.UpdateUserPermissions(ctx, tech.ID, domain.Update{CanManageUsers: testutil.Ptr(true)}, admin)
	require.NoError(t, err)

	updated, err := f.svc.UpdateUserPermissions(ctx, partner.ID, domain.Update{CanViewAllServices: testutil.Ptr(true)}, tech)
	require.NoError(t, err)
	assert.True(t, updated.CanViewAllServices)
}

func TestUpdateUserPermissionsRejectsEmptyUpdate(t *testing.T) {
	f := newFixture(t)
	admin := testutil.CreateUser(t, f.db, f.node, "dana", userdomain.RoleAdmin, nil)

	_, err := f.svc.UpdateUserPermissions(context.Background(), admin.ID, domain.Update{}, admin)
	require.ErrorIs(t, err, domain.ErrEmptyUpdate)
}

func TestUpdateUserPermissionsUnknownTarget(t *testing.T) {
	f := newFixture(t)
	admin := testutil.CreateUser(t, f.db, f.node, "dana", userdomain.RoleAdmin, nil)

	_, err := f.svc.UpdateUserPermissions(context.Background(), snowflake.ID(404), domain.Update{CanDeleteServices: testutil.Ptr(true)}, admin)
	require.ErrorIs(t, err, userdomain.ErrUserNotFound)
}

func TestCanUserDeleteServices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.db, f.node, "dana", userdomain.RoleAdmin, nil)
	tech := testutil.CreateUser(t, f.db, f.node, "tomas", userdomain.RoleTechnician, testutil.Ptr(snowflake.ID(5)))

	ok, err := f.svc.CanUserDeleteServices(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.CanUserDeleteServices(ctx, tech.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.UpdateUserPermissions(ctx, tech.ID, domain.Update{CanDeleteServices: testutil.Ptr(true)}, admin)
	require.NoError(t, err)

	ok, err = f.svc.CanUserDeleteServices(ctx, tech.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
