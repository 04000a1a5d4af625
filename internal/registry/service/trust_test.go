package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmerrifield20/mcptrust/internal/health"
	"github.com/jmerrifield20/mcptrust/internal/registry/model"
	"github.com/jmerrifield20/mcptrust/internal/registry/service"
	"go.uber.org/zap"
)

type stubProber struct {
	result health.ProbeResult
	calls  int
}

func (p *stubProber) Probe(_ context.Context, _ string) health.ProbeResult {
	p.calls++
	return p.result
}

func TestTrustEvaluate_healthyVerifiedServer(t *testing.T) {
	rec := record("example.com", "https://example.com/mcp")
	rec.DNSVerified = true
	reg := newStubRegistry(rec)
	prober := &stubProber{result: health.ProbeResult{
		Reachable: true, SSLValid: true, CapabilitiesWorking: true, ResponseTime: 50 * time.Millisecond,
	}}
	svc := service.NewTrustService(reg, prober, health.NewTracker(time.Hour), zap.NewNop())

	var scores []int
	svc.SetMetricsRecord(func(s int) { scores = append(scores, s) })

	ev, err := svc.Evaluate(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Report.Score != 100 || ev.Report.Level != "trusted" {
		t.Errorf("unexpected report %+v", ev.Report)
	}
	if ev.Health == nil || ev.Health.Status != model.HealthHealthy {
		t.Errorf("unexpected health %+v", ev.Health)
	}
	if len(scores) != 1 || scores[0] != 100 {
		t.Errorf("metrics hook: %v", scores)
	}
}

func TestTrustEvaluate_historyAffectsScore(t *testing.T) {
	reg := newStubRegistry(record("example.com", "https://example.com/mcp"))
	prober := &stubProber{}
	tracker := health.NewTracker(time.Hour)
	svc := service.NewTrustService(reg, prober, tracker, zap.NewNop())

	// One failure then one success: uptime 50%, error rate 0.5.
	_, _ = svc.Evaluate(context.Background(), "example.com")
	prober.result = health.ProbeResult{Reachable: true, CapabilitiesWorking: true, ResponseTime: 50 * time.Millisecond}
	ev, err := svc.Evaluate(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// 25 healthy + 10 caps + 5 fast - 30 unverified - 10 error rate - 15 uptime
	if ev.Report.Raw != -15 || ev.Report.Score != 0 {
		t.Errorf("unexpected report %+v", ev.Report)
	}
}

func TestTrustEvaluate_noEndpointMeansNoHealthData(t *testing.T) {
	rec := record("example.com", "")
	rec.DNSVerified = true
	prober := &stubProber{}
	svc := service.NewTrustService(newStubRegistry(rec), prober, health.NewTracker(time.Hour), zap.NewNop())

	ev, err := svc.Evaluate(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if prober.calls != 0 || ev.Health != nil || ev.Probe != nil {
		t.Error("no probe expected without an endpoint")
	}
	// 40 verified - 40 missing health data
	if ev.Report.Score != 0 || ev.Report.Raw != 0 {
		t.Errorf("unexpected report %+v", ev.Report)
	}
}

func TestTrustEvaluate_errors(t *testing.T) {
	svc := service.NewTrustService(newStubRegistry(), &stubProber{}, health.NewTracker(time.Hour), zap.NewNop())
	if _, err := svc.Evaluate(context.Background(), "example.com"); !errors.Is(err, service.ErrServerNotFound) {
		t.Errorf("expected ErrServerNotFound, got %v", err)
	}

	reg := newStubRegistry(record("example.com", ""), record("example.com", ""))
	svc = service.NewTrustService(reg, &stubProber{}, health.NewTracker(time.Hour), zap.NewNop())
	if _, err := svc.Evaluate(context.Background(), "example.com"); !errors.Is(err, service.ErrDomainAnomaly) {
		t.Errorf("expected ErrDomainAnomaly, got %v", err)
	}

	var verr *model.ErrValidation
	if _, err := svc.Evaluate(context.Background(), "bad domain"); !errors.As(err, &verr) {
		t.Errorf("expected *ErrValidation, got %v", err)
	}
}
