package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/mcptrust/internal/registry/handler"
	"github.com/jmerrifield20/mcptrust/internal/registry/model"
	"github.com/jmerrifield20/mcptrust/internal/registry/service"
	"github.com/jmerrifield20/mcptrust/internal/trust"
	"go.uber.org/zap"
)

type stubEvaluator struct {
	ev  *service.TrustEvaluation
	err error
}

func (s *stubEvaluator) Evaluate(_ context.Context, _ string) (*service.TrustEvaluation, error) {
	return s.ev, s.err
}

func serveTrust(t *testing.T, eval *stubEvaluator, domain string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler.NewTrustHandler(eval, zap.NewNop()).Register(r.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/servers/"+domain+"/trust", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetTrust(t *testing.T) {
	report := trust.Evaluate(trust.Signals{
		Health:              &model.HealthMetrics{Status: model.HealthHealthy, ResponseTimeMS: model.Float(80)},
		CapabilitiesWorking: true,
		SSLValid:            true,
		DNSVerified:         true,
	})
	eval := &stubEvaluator{ev: &service.TrustEvaluation{
		Domain:      "example.com",
		DNSVerified: true,
		Report:      report,
		EvaluatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}}

	w := serveTrust(t, eval, "example.com")
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Domain string `json:"domain"`
		Report struct {
			Score int    `json:"score"`
			Level string `json:"level"`
		} `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Domain != "example.com" || body.Report.Score != 100 || body.Report.Level != "trusted" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestGetTrust_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &model.ErrValidation{Msg: "bad domain"}, http.StatusBadRequest},
		{"not found", service.ErrServerNotFound, http.StatusNotFound},
		{"anomaly", fmt.Errorf("%w: example.com has 2", service.ErrDomainAnomaly), http.StatusConflict},
		{"storage", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := serveTrust(t, &stubEvaluator{err: tc.err}, "example.com")
			if w.Code != tc.status {
				t.Errorf("got %d, want %d", w.Code, tc.status)
			}
		})
	}
}
