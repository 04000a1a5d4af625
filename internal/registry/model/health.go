package model

// HealthStatus is the coarse liveness state of a server.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthMetrics are the monitored facts about a server. A nil *HealthMetrics
// means no monitoring data exists; nil fields inside mean that one signal is
// missing.
type HealthMetrics struct {
	Status           HealthStatus `json:"status,omitempty"`
	ResponseTimeMS   *float64     `json:"response_time_ms,omitempty"`
	UptimePercentage *float64     `json:"uptime_percentage,omitempty"`
	ErrorRate        *float64     `json:"error_rate,omitempty"` // fraction 0..1
}

// Float returns a pointer to v, for building HealthMetrics literals.
func Float(v float64) *float64 { return &v }
