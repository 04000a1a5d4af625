package service

import (
	"context"
	"time"

	"github.com/jmerrifield20/mcptrust/internal/health"
	"github.com/jmerrifield20/mcptrust/internal/registry/model"
	"github.com/jmerrifield20/mcptrust/internal/trust"
	"go.uber.org/zap"
)

// endpointProber probes a live endpoint. *health.Prober satisfies it.
type endpointProber interface {
	Probe(ctx context.Context, endpoint string) health.ProbeResult
}

// healthHistory holds recent probe results per domain. *health.Tracker satisfies it.
type healthHistory interface {
	Record(domain string, r health.ProbeResult)
	Metrics(domain string) (*model.HealthMetrics, bool)
}

// TrustEvaluation is the result of TrustService.Evaluate.
type TrustEvaluation struct {
	Domain      string               `json:"domain"`
	Endpoint    string               `json:"endpoint,omitempty"`
	DNSVerified bool                 `json:"dns_verified"`
	Probe       *health.ProbeResult  `json:"probe,omitempty"`
	Health      *model.HealthMetrics `json:"health,omitempty"`
	Report      trust.Report         `json:"report"`
	EvaluatedAt time.Time            `json:"evaluated_at"`
}

// TrustService scores a registered server on demand.
type TrustService struct {
	registry Registry
	prober   endpointProber
	history  healthHistory
	onScore  func(score int)
	logger   *zap.Logger
}

// NewTrustService creates a TrustService.
func NewTrustService(registry Registry, prober endpointProber, history healthHistory, logger *zap.Logger) *TrustService {
	return &TrustService{registry: registry, prober: prober, history: history, logger: logger}
}

// SetMetricsRecord configures a callback invoked with every computed score.
func (s *TrustService) SetMetricsRecord(fn func(score int)) {
	s.onScore = fn
}

// Evaluate probes the server registered for domain and scores it from the
// probe, the domain's recent health history and its stored dns_verified flag.
// A server without an endpoint is scored with no health data.
func (s *TrustService) Evaluate(ctx context.Context, domain string) (*TrustEvaluation, error) {
	d, err := model.NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	rec, err := loadOne(ctx, s.registry, s.logger, d)
	if err != nil {
		return nil, err
	}

	ev := &TrustEvaluation{
		Domain:      d,
		Endpoint:    rec.Endpoint,
		DNSVerified: rec.DNSVerified,
		EvaluatedAt: time.Now().UTC(),
	}
	signals := trust.Signals{DNSVerified: rec.DNSVerified}

	if rec.Endpoint != "" {
		probe := s.prober.Probe(ctx, rec.Endpoint)
		s.history.Record(d, probe)
		ev.Probe = &probe
		if h, ok := s.history.Metrics(d); ok {
			ev.Health = h
		}
		signals.Health = ev.Health
		signals.SSLValid = probe.SSLValid
		signals.CapabilitiesWorking = probe.CapabilitiesWorking
	}

	ev.Report = trust.Evaluate(signals)
	if s.onScore != nil {
		s.onScore(ev.Report.Score)
	}
	s.logger.Info("trust evaluated",
		zap.String("domain", d),
		zap.Int("score", ev.Report.Score),
		zap.String("level", ev.Report.Level),
	)
	return ev, nil
}
