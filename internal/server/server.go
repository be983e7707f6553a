package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/fieldops/internal/audit"
	auditdomain "github.com/smallbiznis/fieldops/internal/audit/domain"
	"github.com/smallbiznis/fieldops/internal/authorization"
	"github.com/smallbiznis/fieldops/internal/cache"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/config"
	"github.com/smallbiznis/fieldops/internal/notify"
	"github.com/smallbiznis/fieldops/internal/observability"
	obsmiddleware "github.com/smallbiznis/fieldops/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/fieldops/internal/observability/metrics"
	obstracing "github.com/smallbiznis/fieldops/internal/observability/tracing"
	"github.com/smallbiznis/fieldops/internal/permission"
	permissiondomain "github.com/smallbiznis/fieldops/internal/permission/domain"
	"github.com/smallbiznis/fieldops/internal/ratelimit"
	"github.com/smallbiznis/fieldops/internal/security"
	"github.com/smallbiznis/fieldops/internal/serviceorder"
	servicedomain "github.com/smallbiznis/fieldops/internal/serviceorder/domain"
	"github.com/smallbiznis/fieldops/internal/user"
	"github.com/smallbiznis/fieldops/internal/vault"
	vaultdomain "github.com/smallbiznis/fieldops/internal/vault/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultHTTPAddr = ":8080"

var Module = fx.Module("http.server",
	user.Module,
	cache.Module,
	audit.Module,
	permission.Module,
	authorization.Module,
	notify.Module,
	serviceorder.Module,
	vault.Module,
	ratelimit.Module,
	security.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = defaultHTTPAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	clock         clock.Clock
	actors        cache.ActorResolver
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service
	permissionSvc permissiondomain.Service
	serviceSvc    servicedomain.Service
	vaultSvc      vaultdomain.Service
	securitySvc   *security.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Clock         clock.Clock
	Actors        cache.ActorResolver
	AuthzSvc      authorization.Service
	AuditSvc      auditdomain.Service
	PermissionSvc permissiondomain.Service
	ServiceSvc    servicedomain.Service
	VaultSvc      vaultdomain.Service
	SecuritySvc   *security.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		clock:         p.Clock,
		actors:        p.Actors,
		authzSvc:      p.AuthzSvc,
		auditSvc:      p.AuditSvc,
		permissionSvc: p.PermissionSvc,
		serviceSvc:    p.ServiceSvc,
		vaultSvc:      p.VaultSvc,
		securitySvc:   p.SecuritySvc,
	}

	svc.registerServiceRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerServiceRoutes() {
	services := s.engine.Group("/services", s.SecurityGate(), s.Identity())

	services.GET("", s.requireCapability(authorization.ObjectService, authorization.ActionServiceView), s.ListServices)
	services.POST("", s.requireCapability(authorization.ObjectService, authorization.ActionServiceCreate), s.CreateService)
	services.GET("/:id", s.requireCapability(authorization.ObjectService, authorization.ActionServiceView), s.GetService)
	services.PATCH("/:id", s.requireCapability(authorization.ObjectService, authorization.ActionServiceEdit), s.EditService)
	services.PUT("/:id/status", s.requireCapability(authorization.ObjectService, authorization.ActionServiceTransition), s.UpdateServiceStatus)
	services.GET("/:id/audit-logs", s.requireCapability(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListServiceAuditLogs)

	// -------- Deletion vault --------
	services.DELETE("/:id/safe", s.requireCapability(authorization.ObjectService, authorization.ActionServiceDelete), s.SoftDeleteService)
	services.DELETE("/:id/safe-delete", s.requireCapability(authorization.ObjectVault, authorization.ActionVaultHardDelete), s.HardDeleteService)
	services.GET("/:id/safe-delete/confirmation", s.requireCapability(authorization.ObjectVault, authorization.ActionVaultHardDelete), s.GetHardDeleteConfirmation)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.SecurityGate(), s.Identity())

	// -------- Deleted services --------
	admin.GET("/deleted-services", s.requireCapability(authorization.ObjectVault, authorization.ActionVaultView), s.ListDeletedServices)
	admin.GET("/deleted-services/:id", s.requireCapability(authorization.ObjectVault, authorization.ActionVaultView), s.GetDeletedService)
	admin.POST("/deleted-services/:id/restore", s.requireCapability(authorization.ObjectVault, authorization.ActionVaultRestore), s.RestoreDeletedService)

	// -------- Permissions --------
	// Managers other than admins are decided by their canManageUsers flag.
	admin.GET("/user-permissions/:userId", s.requireCapability(authorization.ObjectPermission, authorization.ActionPermissionView), s.GetUserPermissions)
	admin.POST("/user-permissions/:userId", s.requireCapability(authorization.ObjectPermission, authorization.ActionPermissionManage), s.UpdateUserPermissions)

	// -------- Audit --------
	admin.GET("/audit-logs", s.requireCapability(authorization.ObjectAuditLog, authorization.ActionAuditLogViewAll), s.ListAuditLogs)

	// -------- Security --------
	admin.GET("/security/report", s.requireCapability(authorization.ObjectSecurity, authorization.ActionSecurityReport), s.SecurityReport)
	admin.GET("/security/events", s.requireCapability(authorization.ObjectSecurity, authorization.ActionSecurityEvents), s.SecurityEvents)
	admin.POST("/security/password-strength", s.requireCapability(authorization.ObjectSecurity, authorization.ActionSecurityAssess), s.PasswordStrength)
}
