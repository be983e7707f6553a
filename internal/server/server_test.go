package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditrepo "github.com/smallbiznis/fieldops/internal/audit/repository"
	auditservice "github.com/smallbiznis/fieldops/internal/audit/service"
	"github.com/smallbiznis/fieldops/internal/authorization"
	"github.com/smallbiznis/fieldops/internal/cache"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/config"
	"github.com/smallbiznis/fieldops/internal/observability"
	permissionrepo "github.com/smallbiznis/fieldops/internal/permission/repository"
	permissionservice "github.com/smallbiznis/fieldops/internal/permission/service"
	"github.com/smallbiznis/fieldops/internal/ratelimit"
	"github.com/smallbiznis/fieldops/internal/security"
	servicedomain "github.com/smallbiznis/fieldops/internal/serviceorder/domain"
	servicerepo "github.com/smallbiznis/fieldops/internal/serviceorder/repository"
	serviceorderservice "github.com/smallbiznis/fieldops/internal/serviceorder/service"
	"github.com/smallbiznis/fieldops/internal/testutil"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
	userrepo "github.com/smallbiznis/fieldops/internal/user/repository"
	userservice "github.com/smallbiznis/fieldops/internal/user/service"
	vaultrepo "github.com/smallbiznis/fieldops/internal/vault/repository"
	vaultservice "github.com/smallbiznis/fieldops/internal/vault/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testSecret = "test-secret"
	testIssuer = "fieldops-test"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type staticPolicy config.RateLimitPolicy

func (p staticPolicy) Get() config.RateLimitPolicy { return config.RateLimitPolicy(p) }

type fixture struct {
	t       *testing.T
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	engine  *gin.Engine
	events  *security.RingBuffer
	admin   userdomain.Actor
	tech    userdomain.Actor
	partner userdomain.Actor
	techID  snowflake.ID
}

var generousPolicy = config.RateLimitPolicy{
	Default: config.Limit{MaxRequests: 1000, Window: 15 * time.Minute},
}

func newFixture(t *testing.T, policy config.RateLimitPolicy) *fixture {
	t.Helper()
	conn := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := testutil.NewClock()
	log := zap.NewNop()
	cfg := config.Config{
		AuthJWTSecret:    testSecret,
		AuthJWTIssuer:    testIssuer,
		AuthCookieSecure: true,
		RateLimit:        config.RateLimitConfig{Enabled: true},
	}

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: auditrepo.Provide(),
	})
	permissionSvc := permissionservice.New(permissionservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk,
		Repo: permissionrepo.Provide(), UserRepo: userrepo.Provide(), AuditSvc: auditSvc,
	})
	serviceSvc := serviceorderservice.New(serviceorderservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk,
		Repo: servicerepo.Provide(), AuditSvc: auditSvc, PermissionSvc: permissionSvc,
	})
	vaultSvc := vaultservice.New(vaultservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk,
		Repo: vaultrepo.Provide(), ServiceRepo: servicerepo.Provide(),
		PermissionSvc: permissionSvc, AuditSvc: auditSvc,
	})
	userSvc := userservice.New(userservice.Params{DB: conn, Log: log, Repo: userrepo.Provide()})

	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)

	limiter := ratelimit.NewLimiter(ratelimit.Params{
		Config: cfg,
		Store:  ratelimit.NewMemoryStore(clk),
		Policy: staticPolicy(policy),
		Clock:  clk,
		Log:    log,
	})
	events := security.NewRingBuffer(security.DefaultEventCapacity, security.DefaultEventPruneSize)
	securitySvc := security.NewService(security.Params{
		Config: cfg, Clock: clk, Log: log, Events: events, Limiter: limiter,
	})

	engine := NewEngine(observability.Config{}, nil)
	NewServer(ServerParams{
		Gin:           engine,
		Cfg:           cfg,
		Log:           log,
		Clock:         clk,
		Actors:        cache.NewActorResolver(userSvc, clk),
		AuthzSvc:      authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer}),
		AuditSvc:      auditSvc,
		PermissionSvc: permissionSvc,
		ServiceSvc:    serviceSvc,
		VaultSvc:      vaultSvc,
		SecuritySvc:   securitySvc,
	})

	techID := snowflake.ID(5150)
	return &fixture{
		t:       t,
		db:      conn,
		node:    node,
		clock:   clk,
		engine:  engine,
		events:  events,
		admin:   testutil.CreateUser(t, conn, node, "dana", userdomain.RoleAdmin, nil),
		tech:    testutil.CreateUser(t, conn, node, "tomas", userdomain.RoleTechnician, &techID),
		partner: testutil.CreateUser(t, conn, node, "acme", userdomain.RoleBusinessPartner, nil),
		techID:  techID,
	}
}

func (f *fixture) do(method, path string, body any, actor *userdomain.Actor) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	if actor != nil {
		token, err := IssueToken(testSecret, testIssuer, actor.ID, f.clock.Now(), time.Hour)
		require.NoError(f.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) assignedService(status servicedomain.Status) servicedomain.ServiceOrder {
	return testutil.CreateService(f.t, f.db, f.node, func(s *servicedomain.ServiceOrder) {
		s.Status = status
		s.TechnicianID = testutil.Ptr(f.techID)
	})
}

func listedIDs(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ids []string
	for _, raw := range decode(t, rec)["data"].([]any) {
		ids = append(ids, raw.(map[string]any)["id"].(string))
	}
	return ids
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	payload, ok := body["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return payload["type"].(string)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, generousPolicy)
	rec := f.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestsWithoutValidTokenAreUnauthorized(t *testing.T) {
	f := newFixture(t, generousPolicy)
	svc := f.assignedService(servicedomain.StatusInProgress)

	rec := f.do(http.MethodGet, "/services/"+svc.ID.String(), nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorType(t, rec))

	req := httptest.NewRequest(http.MethodGet, "/services/"+svc.ID.String(), nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	bad := httptest.NewRecorder()
	f.engine.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)

	ghost := userdomain.Actor{ID: 999, Role: userdomain.RoleAdmin}
	rec = f.do(http.MethodGet, "/services/"+svc.ID.String(), nil, &ghost)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionCookieAuthenticates(t *testing.T) {
	f := newFixture(t, generousPolicy)
	svc := f.assignedService(servicedomain.StatusInProgress)

	token, err := IssueToken(testSecret, testIssuer, f.admin.ID, f.clock.Now(), time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/services/"+svc.ID.String(), nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	f := newFixture(t, generousPolicy)
	token, err := IssueToken(testSecret, testIssuer, f.admin.ID, f.clock.Now(), time.Minute)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/admin/deleted-services", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTechnicianCompletesAssignedService(t *testing.T) {
	f := newFixture(t, generousPolicy)
	svc := f.assignedService(servicedomain.StatusInProgress)

	rec := f.do(http.MethodPut, "/services/"+svc.ID.String()+"/status", map[string]any{
		"status":           "completed",
		"technician_notes": "Replaced the drain pump",
		"work_performed":   "Pump swap and leak test",
	}, &f.tech)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "in_progress", body["old_status"])
	assert.Equal(t, "completed", body["new_status"])
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["is_completely_fixed"])
	assert.NotContains(t, body, "notification")

	logs := f.do(http.MethodGet, "/services/"+svc.ID.String()+"/audit-logs", nil, &f.tech)
	require.Equal(t, http.StatusOK, logs.Code)
	entries := decode(t, logs)["data"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "status_changed", entries[0].(map[string]any)["action"])
}

func TestTransitionErrorsMapToStatusCodes(t *testing.T) {
	f := newFixture(t, generousPolicy)
	svc := f.assignedService(servicedomain.StatusInProgress)
	path := "/services/" + svc.ID.String() + "/status"

	rec := f.do(http.MethodPut, path, map[string]any{"status": "completed"}, &f.partner)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorType(t, rec))

	rec = f.do(http.MethodPut, path, map[string]any{"status": "repair_failed", "repair_failure_reason": "bad"}, &f.tech)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decode(t, rec)["error"].(map[string]any)
	fieldErrors := payload["errors"].([]any)
	assert.Equal(t, "repair_failure_reason", fieldErrors[0].(map[string]any)["field"])

	rec = f.do(http.MethodPut, "/services/12345/status", map[string]any{"status": "in_progress"}, &f.admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPut, "/services/abc/status", map[string]any{"status": "in_progress"}, &f.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPut, path, bytes.NewBufferString("{"))
	token, _ := IssueToken(testSecret, testIssuer, f.tech.ID, f.clock.Now(), time.Hour)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	malformed := httptest.NewRecorder()
	f.engine.ServeHTTP(malformed, req)
	assert.Equal(t, http.StatusBadRequest, malformed.Code)
}

func TestPartnerCreatesAndEditsService(t *testing.T) {
	f := newFixture(t, generousPolicy)

	rec := f.do(http.MethodPost, "/services", map[string]any{
		"client_id":    "1001",
		"appliance_id": "2002",
		"description":  "Dryer does not heat",
	}, &f.partner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "pending", data["status"])
	id := data["id"].(string)

	rec = f.do(http.MethodPatch, "/services/"+id, map[string]any{"scheduled_date": "2026-03-09"}, &f.partner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2026-03-09", decode(t, rec)["data"].(map[string]any)["scheduled_date"])

	rec = f.do(http.MethodPost, "/services", map[string]any{"client_id": "1", "appliance_id": "2", "description": "x"}, &f.tech)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCustomerCannotSeeOtherServices(t *testing.T) {
	f := newFixture(t, generousPolicy)
	customer := testutil.CreateUser(t, f.db, f.node, "casey", userdomain.RoleCustomer, nil)
	svc := f.assignedService(servicedomain.StatusInProgress)

	rec := f.do(http.MethodGet, "/services/"+svc.ID.String(), nil, &customer)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/services/"+svc.ID.String()+"/audit-logs", nil, &customer)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSoftDeleteAndRestoreFlow(t *testing.T) {
	f := newFixture(t, generousPolicy)
	svc := f.assignedService(servicedomain.StatusScheduled)
	id := svc.ID.String()

	assert.Contains(t, listedIDs(t, f.do(http.MethodGet, "/services", nil, &f.admin)), id)

	rec := f.do(http.MethodDelete, "/services/"+id+"/safe", map[string]any{"reason": "duplicate"}, &f.tech)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/admin/user-permissions/"+f.tech.ID.String(), map[string]any{"can_delete_services": true}, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodDelete, "/services/"+id+"/safe", map[string]any{"reason": "duplicate"}, &f.tech)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	record := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "duplicate", record["delete_reason"])
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/services/"+id, nil, &f.admin).Code)
	assert.NotContains(t, listedIDs(t, f.do(http.MethodGet, "/services", nil, &f.admin)), id)

	rec = f.do(http.MethodGet, "/admin/deleted-services", nil, &f.tech)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/admin/deleted-services", nil, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"].([]any), 1)

	rec = f.do(http.MethodGet, "/admin/deleted-services/"+id, nil, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/admin/deleted-services/"+id+"/restore", nil, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, id, body["original_service_id"])
	newID := body["new_service_id"].(string)
	assert.NotEqual(t, id, newID)

	listed := listedIDs(t, f.do(http.MethodGet, "/services", nil, &f.admin))
	assert.Contains(t, listed, newID)
	assert.NotContains(t, listed, id)
	assert.Equal(t, []string{newID}, listedIDs(t, f.do(http.MethodGet, "/services", nil, &f.tech)))

	rec = f.do(http.MethodPost, "/admin/deleted-services/"+id+"/restore", nil, &f.admin)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorType(t, rec))

	rec = f.do(http.MethodGet, "/admin/deleted-services", nil, &f.admin)
	assert.Empty(t, decode(t, rec)["data"].([]any))

	rec = f.do(http.MethodGet, "/services/"+newID+"/audit-logs", nil, &f.admin)
	entries := decode(t, rec)["data"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "restored", entries[0].(map[string]any)["action"])
}

func TestListServicesScopedByActor(t *testing.T) {
	f := newFixture(t, generousPolicy)
	customer := testutil.CreateUser(t, f.db, f.node, "carla", userdomain.RoleCustomer, nil)
	mine := f.assignedService(servicedomain.StatusScheduled)
	other := testutil.CreateService(t, f.db, f.node, func(s *servicedomain.ServiceOrder) {
		s.Status = servicedomain.StatusAssigned
		s.TechnicianID = testutil.Ptr(snowflake.ID(9999))
	})
	partnered := testutil.CreateService(t, f.db, f.node, func(s *servicedomain.ServiceOrder) {
		s.BusinessPartnerID = testutil.Ptr(f.partner.ID)
	})
	all := []string{mine.ID.String(), other.ID.String(), partnered.ID.String()}

	assert.ElementsMatch(t, all, listedIDs(t, f.do(http.MethodGet, "/services", nil, &f.admin)))
	assert.Equal(t, []string{mine.ID.String()}, listedIDs(t, f.do(http.MethodGet, "/services", nil, &f.tech)))
	assert.Equal(t, []string{partnered.ID.String()}, listedIDs(t, f.do(http.MethodGet, "/services", nil, &f.partner)))
	assert.Empty(t, listedIDs(t, f.do(http.MethodGet, "/services", nil, &customer)))

	rec := f.do(http.MethodPost, "/admin/user-permissions/"+customer.ID.String(), map[string]any{"can_view_all_services": true}, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.ElementsMatch(t, all, listedIDs(t, f.do(http.MethodGet, "/services", nil, &customer)))

	assert.Equal(t, []string{mine.ID.String()}, listedIDs(t, f.do(http.MethodGet, "/services?status=scheduled", nil, &f.admin)))
	rec = f.do(http.MethodGet, "/services?status=bogus", nil, &f.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(http.MethodGet, "/services?page_token=not-a-token", nil, &f.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListServicesPaginates(t *testing.T) {
	f := newFixture(t, generousPolicy)
	var want []string
	for i := 0; i < 3; i++ {
		want = append(want, f.assignedService(servicedomain.StatusAssigned).ID.String())
	}

	rec := f.do(http.MethodGet, "/services?page_size=2", nil, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	first := body["data"].([]any)
	require.Len(t, first, 2)
	info := body["page_info"].(map[string]any)
	assert.Equal(t, true, info["has_more"])
	token := info["next_page_token"].(string)
	require.NotEmpty(t, token)

	rest := listedIDs(t, f.do(http.MethodGet, "/services?page_size=2&page_token="+token, nil, &f.admin))
	require.Len(t, rest, 1)

	got := append([]string{
		first[0].(map[string]any)["id"].(string),
		first[1].(map[string]any)["id"].(string),
	}, rest...)
	assert.ElementsMatch(t, want, got)
	// Equal creation times fall back to id order, newest first.
	assert.Equal(t, want[2], got[0])
	assert.Equal(t, want[0], got[2])
}

func TestPermissionUpdateDropsCachedActor(t *testing.T) {
	f := newFixture(t, generousPolicy)
	svc := f.assignedService(servicedomain.StatusScheduled)
	path := "/services/" + svc.ID.String()

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, path, nil, &f.tech).Code)

	require.NoError(t, f.db.Model(&userdomain.User{}).Where("id = ?", f.tech.ID).Update("role", userdomain.RoleCustomer).Error)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, path, nil, &f.tech).Code)

	rec := f.do(http.MethodPost, "/admin/user-permissions/"+f.tech.ID.String(), map[string]any{"notes": "moved to customer desk"}, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, path, nil, &f.tech).Code)
}

func TestHardDeleteNeverEchoesExpectedValue(t *testing.T) {
	f := newFixture(t, generousPolicy)
	svc := f.assignedService(servicedomain.StatusCancelled)
	path := "/services/" + svc.ID.String() + "/safe-delete"

	rec := f.do(http.MethodDelete, path, map[string]any{"confirmation": "yes please"}, &f.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), svc.Description)

	rec = f.do(http.MethodGet, path+"/confirmation", nil, &f.tech)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, path+"/confirmation", nil, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	expected := decode(t, rec)["data"].(map[string]any)["expected"].(string)
	assert.Equal(t, svc.Description, expected)

	rec = f.do(http.MethodDelete, path, map[string]any{"confirmation": expected}, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Zero(t, testutil.CountRows(t, f.db, &servicedomain.ServiceOrder{}, "id = ?", svc.ID))
}

func TestUserPermissionsReadAccess(t *testing.T) {
	f := newFixture(t, generousPolicy)

	rec := f.do(http.MethodGet, "/admin/user-permissions/"+f.tech.ID.String(), nil, &f.tech)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["data"].(map[string]any)["can_delete_services"])

	rec = f.do(http.MethodGet, "/admin/user-permissions/"+f.admin.ID.String(), nil, &f.tech)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/admin/user-permissions/"+f.partner.ID.String(), map[string]any{"can_view_all_services": true}, &f.tech)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/admin/user-permissions/424242", nil, &f.admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminAuditLogs(t *testing.T) {
	f := newFixture(t, generousPolicy)
	svc := f.assignedService(servicedomain.StatusAssigned)
	rec := f.do(http.MethodPut, "/services/"+svc.ID.String()+"/status", map[string]any{"status": "in_progress"}, &f.tech)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/admin/audit-logs?service="+svc.ID.String(), nil, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"].([]any), 1)

	rec = f.do(http.MethodGet, "/admin/audit-logs?service=abc", nil, &f.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/admin/user-permissions/"+f.partner.ID.String(), map[string]any{"can_view_all_services": true}, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/admin/audit-logs?service=0", nil, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entries := decode(t, rec)["data"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "user_permissions_updated", entries[0].(map[string]any)["action"])

	rec = f.do(http.MethodGet, "/admin/audit-logs?service=-1", nil, &f.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/admin/audit-logs", nil, &f.tech)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimitAnswers429AndRecordsEvent(t *testing.T) {
	f := newFixture(t, config.RateLimitPolicy{
		Default: generousPolicy.Default,
		Endpoints: map[string]config.Limit{
			"/admin/security/password-strength": {MaxRequests: 1, Window: time.Minute},
		},
	})

	rec := f.do(http.MethodPost, "/admin/security/password-strength", map[string]any{"password": "Password1!"}, &f.tech)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assessment := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(75), assessment["score"])
	assert.Equal(t, "strong", assessment["strength"])

	rec = f.do(http.MethodPost, "/admin/security/password-strength", map[string]any{"password": "Password1!"}, &f.tech)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", errorType(t, rec))

	rec = f.do(http.MethodGet, "/admin/security/events?hours=1", nil, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var suspicious, access int
	for _, raw := range decode(t, rec)["data"].([]any) {
		event := raw.(map[string]any)
		switch event["type"] {
		case "suspicious_activity":
			suspicious++
			assert.Equal(t, "high", event["severity"])
		case "api_access":
			access++
		}
	}
	assert.Equal(t, 1, suspicious)
	assert.Equal(t, 1, access, "only the admitted request is recorded as access")

	rec = f.do(http.MethodGet, "/admin/security/events?hours=0", nil, &f.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSecurityReport(t *testing.T) {
	f := newFixture(t, generousPolicy)

	rec := f.do(http.MethodGet, "/admin/security/report", nil, &f.tech)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/admin/security/report", nil, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(100), report["overall_score"])
	assert.Len(t, report["recommendations"].([]any), 6)
	summary := report["audit_log_summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["total_events"], "the forbidden request above was admitted and recorded")
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, generousPolicy)
	rec := f.do(http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
