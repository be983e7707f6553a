package security

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/config"
	"github.com/smallbiznis/fieldops/internal/observability/logger"
	"github.com/smallbiznis/fieldops/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const suspiciousWindow = 24 * time.Hour

type Params struct {
	fx.In

	Config  config.Config
	Clock   clock.Clock
	Log     *zap.Logger
	Events  EventStore
	Limiter *ratelimit.Limiter
}

// Service is the security audit surface: request throttling, the event
// buffer and the posture report. One instance is built per process.
type Service struct {
	clock   clock.Clock
	log     *zap.Logger
	events  EventStore
	limiter *ratelimit.Limiter
	posture PostureInputs
}

func NewService(p Params) *Service {
	return &Service{
		clock:   p.Clock,
		log:     p.Log.Named("security.service"),
		events:  p.Events,
		limiter: p.Limiter,
		posture: PostureFromConfig(p.Config),
	}
}

// PostureFromConfig derives scan inputs from runtime configuration. Queries
// always go through gorm placeholders and ledger values are masked before
// they are stored.
func PostureFromConfig(cfg config.Config) PostureInputs {
	return PostureInputs{
		ParameterizedQueries: true,
		JWTSecretConfigured:  cfg.AuthJWTSecret != "",
		ResponseMasking:      true,
		SecureSessions:       cfg.AuthCookieSecure,
	}
}

// LogEvent records one security event. Critical events are also logged at
// error level right away.
func (s *Service) LogEvent(ctx context.Context, typ EventType, severity Severity, details, ip, userID, userAgent string) {
	event := Event{
		Timestamp: s.clock.Now().UTC(),
		Type:      typ,
		Severity:  severity,
		Details:   details,
		IP:        ip,
		UserID:    userID,
		UserAgent: userAgent,
		Client:    ParseClient(userAgent),
	}
	log := logger.WithContext(ctx, s.log)
	if err := s.events.Append(ctx, event); err != nil {
		log.Warn("security event dropped", zap.String("type", string(typ)), zap.Error(err))
	}
	if severity == SeverityCritical {
		log.Error("security critical event",
			zap.String("details", details),
			zap.String("ip", ip),
		)
	}
}

// CheckRateLimit counts a request from ip against endpoint. A denial is
// recorded as suspicious activity.
func (s *Service) CheckRateLimit(ctx context.Context, ip, endpoint string) (*ratelimit.RateLimitResult, error) {
	result, err := s.limiter.Allow(ctx, ip, endpoint)
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("rate limit store unavailable", zap.String("endpoint", endpoint), zap.Error(err))
	}
	if result != nil && !result.Allowed {
		s.LogEvent(ctx, EventSuspiciousActivity, SeverityHigh,
			fmt.Sprintf("Rate limit exceeded for %s on %s", ip, endpoint), ip, "", "")
	}
	return result, nil
}

func (s *Service) Scan() ScanResult {
	return Scan(s.posture)
}

type EventSummary struct {
	TotalEvents              int `json:"total_events"`
	CriticalEvents           int `json:"critical_events"`
	RecentSuspiciousActivity int `json:"recent_suspicious_activity"`
}

type Report struct {
	OverallScore    int          `json:"overall_score"`
	Timestamp       time.Time    `json:"timestamp"`
	Vulnerabilities []Finding    `json:"vulnerabilities"`
	Recommendations []string     `json:"recommendations"`
	AuditLogSummary EventSummary `json:"audit_log_summary"`
}

func (s *Service) GenerateReport(ctx context.Context) (*Report, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	summary := EventSummary{TotalEvents: len(events)}
	for _, event := range events {
		if event.Severity == SeverityCritical {
			summary.CriticalEvents++
		}
		if event.Type == EventSuspiciousActivity && now.Sub(event.Timestamp) < suspiciousWindow {
			summary.RecentSuspiciousActivity++
		}
	}

	scan := s.Scan()
	return &Report{
		OverallScore:    scan.Score,
		Timestamp:       now,
		Vulnerabilities: scan.Findings,
		Recommendations: append([]string(nil), recommendations...),
		AuditLogSummary: summary,
	}, nil
}

// RecentEvents returns events newer than the given number of hours.
func (s *Service) RecentEvents(ctx context.Context, hours int) ([]Event, error) {
	if hours <= 0 {
		hours = 24
	}
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := s.clock.Now().Add(-time.Duration(hours) * time.Hour)
	recent := make([]Event, 0, len(events))
	for _, event := range events {
		if event.Timestamp.After(cutoff) {
			recent = append(recent, event)
		}
	}
	return recent, nil
}
