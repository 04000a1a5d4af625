// Package trust computes the bounded trust score used to rank and gate MCP
// server visibility. Everything here is pure: the same inputs always produce
// the same score.
package trust

import "github.com/jmerrifield20/mcptrust/internal/registry/model"

// Credits.
const (
	CreditDNSVerified   = 40
	CreditHealthy       = 25
	CreditDegraded      = 15
	CreditUnhealthy     = 5
	CreditSSLValid      = 20
	CreditCapabilities  = 10
	CreditFastResponse  = 5 // < 100ms
	CreditQuickResponse = 3 // < 500ms
	CreditOKResponse    = 1 // < 1000ms
)

// Penalties, applied in the same pass as the credits.
const (
	PenaltyUnhealthy     = -20
	PenaltyDegraded      = -10
	PenaltyDNSUnverified = -30
	PenaltyErrorRate     = -10
	PenaltyLowUptime     = -15
	PenaltyNoHealthData  = -40
)

// Thresholds used by the penalties and the response-time bonus.
const (
	MaxErrorRate          = 0.10
	MinUptimePercentage   = 90.0
	DefaultResponseTimeMS = 1000.0
)

// Signals are the inputs to a trust evaluation. A nil Health means no
// monitoring data exists for the server.
type Signals struct {
	Health              *model.HealthMetrics `json:"health,omitempty"`
	CapabilitiesWorking bool                 `json:"capabilities_working"`
	SSLValid            bool                 `json:"ssl_valid"`
	DNSVerified         bool                 `json:"dns_verified"`
}

// Adjustment is one credit or penalty that contributed to a score.
type Adjustment struct {
	Signal string `json:"signal"`
	Points int    `json:"points"`
}

// Report is the itemized result of Evaluate.
type Report struct {
	// Score is the clamped total in [0,100].
	Score int `json:"score"`

	// Level is a label derived from Score:
	//   80–100 → "trusted"
	//   50–79  → "moderate"
	//   20–49  → "low"
	//   0–19   → "untrusted"
	Level string `json:"level"`

	// Raw is the unclamped sum of Adjustments.
	Raw int `json:"raw"`

	Adjustments []Adjustment `json:"adjustments"`
}

// CalculateTrustScore returns the trust score in [0,100] for the given signals.
func CalculateTrustScore(health *model.HealthMetrics, capabilitiesWorking, sslValid, dnsVerified bool) int {
	return Evaluate(Signals{
		Health:              health,
		CapabilitiesWorking: capabilitiesWorking,
		SSLValid:            sslValid,
		DNSVerified:         dnsVerified,
	}).Score
}

// Evaluate scores s and records every adjustment that applied.
func Evaluate(s Signals) Report {
	var adj []Adjustment
	add := func(signal string, points int) {
		adj = append(adj, Adjustment{Signal: signal, Points: points})
	}

	if s.DNSVerified {
		add("dns_verified", CreditDNSVerified)
	}

	var status model.HealthStatus
	if s.Health != nil {
		status = s.Health.Status
	}
	switch status {
	case model.HealthHealthy:
		add("health_healthy", CreditHealthy)
	case model.HealthDegraded:
		add("health_degraded", CreditDegraded)
	case model.HealthUnhealthy:
		add("health_unhealthy", CreditUnhealthy)
	}

	if s.SSLValid {
		add("ssl_valid", CreditSSLValid)
	}
	if s.CapabilitiesWorking {
		add("capabilities_working", CreditCapabilities)
	}

	rt := DefaultResponseTimeMS
	if s.Health != nil && s.Health.ResponseTimeMS != nil {
		rt = *s.Health.ResponseTimeMS
	}
	switch {
	case rt < 100:
		add("response_time_under_100ms", CreditFastResponse)
	case rt < 500:
		add("response_time_under_500ms", CreditQuickResponse)
	case rt < 1000:
		add("response_time_under_1000ms", CreditOKResponse)
	}

	switch status {
	case model.HealthUnhealthy:
		add("unhealthy_penalty", PenaltyUnhealthy)
	case model.HealthDegraded:
		add("degraded_penalty", PenaltyDegraded)
	}
	if !s.DNSVerified {
		add("dns_unverified_penalty", PenaltyDNSUnverified)
	}
	if s.Health != nil {
		if s.Health.ErrorRate != nil && *s.Health.ErrorRate > MaxErrorRate {
			add("error_rate_penalty", PenaltyErrorRate)
		}
		if s.Health.UptimePercentage != nil && *s.Health.UptimePercentage < MinUptimePercentage {
			add("low_uptime_penalty", PenaltyLowUptime)
		}
	} else {
		add("no_health_data_penalty", PenaltyNoHealthData)
	}

	raw := 0
	for _, a := range adj {
		raw += a.Points
	}
	score := max(min(raw, 100), 0)

	if adj == nil {
		adj = []Adjustment{}
	}
	return Report{Score: score, Level: Level(score), Raw: raw, Adjustments: adj}
}

// Level maps a 0–100 score to a label.
func Level(score int) string {
	switch {
	case score >= 80:
		return "trusted"
	case score >= 50:
		return "moderate"
	case score >= 20:
		return "low"
	default:
		return "untrusted"
	}
}
