package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("to_status", "completed"),
		attribute.String("service_id", "456"),
		attribute.String("role", "technician"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "to_status" && attrs[1].Key != "to_status" {
		t.Fatalf("expected to_status to be retained")
	}
	if attrs[0].Key != "role" && attrs[1].Key != "role" {
		t.Fatalf("expected role to be retained")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordStatusTransition(context.Background(), "pending", "assigned", "admin")
	m.RecordAuditDegraded(context.Background(), "soft_deleted")
	m.RecordRateLimitDenied(context.Background(), "/services/:id/status", "fixed-window")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "fieldops"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.RecordVaultOperation(context.Background(), "restore")
	m.RecordNotification(context.Background(), "slack", "sent")
}
