// Package health probes MCP server endpoints for liveness, TLS validity and a
// working capability listing, and keeps a rolling per-domain history of the
// results.
package health

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jmerrifield20/mcptrust/internal/netguard"
	"go.uber.org/zap"
)

// Config holds probe configuration.
type Config struct {
	ProbeTimeout time.Duration
	AllowPrivate bool // only for local development
}

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(reachable bool, elapsed time.Duration)

// ProbeResult is the outcome of a single Probe.
type ProbeResult struct {
	Reachable           bool          `json:"reachable"`
	SSLValid            bool          `json:"ssl_valid"`
	CapabilitiesWorking bool          `json:"capabilities_working"`
	StatusCode          int           `json:"status_code,omitempty"`
	ResponseTime        time.Duration `json:"response_time"`
	Err                 string        `json:"error,omitempty"`
	CheckedAt           time.Time     `json:"checked_at"`
}

// Prober runs one-shot endpoint probes.
type Prober struct {
	httpClient *http.Client
	onMetrics  MetricsRecordFunc
	logger     *zap.Logger
}

// NewProber creates a Prober whose HTTP client refuses private addresses
// unless cfg.AllowPrivate is set.
func NewProber(cfg Config, logger *zap.Logger) *Prober {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	return &Prober{
		httpClient: netguard.NewHTTPClient(cfg.ProbeTimeout, cfg.AllowPrivate),
		logger:     logger,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (p *Prober) SetMetricsRecord(fn MetricsRecordFunc) {
	p.onMetrics = fn
}

// Probe checks endpoint with HEAD then GET. A 2xx answer to either marks the
// endpoint reachable; the capability listing is only attempted after that.
func (p *Prober) Probe(ctx context.Context, endpoint string) ProbeResult {
	res := ProbeResult{CheckedAt: time.Now().UTC()}

	start := time.Now()
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		status, sslOK, err := p.fetch(ctx, method, endpoint)
		if err != nil {
			res.Err = err.Error()
			continue
		}
		res.StatusCode = status
		res.SSLValid = res.SSLValid || sslOK
		if status >= 200 && status < 300 {
			res.Reachable = true
			res.Err = ""
			break
		}
		res.Err = fmt.Sprintf("%s returned status %d", method, status)
	}
	res.ResponseTime = time.Since(start)

	if res.Reachable {
		res.CapabilitiesWorking = p.listTools(ctx, endpoint)
	}

	if p.onMetrics != nil {
		p.onMetrics(res.Reachable, res.ResponseTime)
	}
	p.logger.Debug("health: probe",
		zap.String("endpoint", endpoint),
		zap.Bool("reachable", res.Reachable),
		zap.Bool("ssl_valid", res.SSLValid),
		zap.Bool("capabilities_working", res.CapabilitiesWorking),
		zap.Duration("elapsed", res.ResponseTime),
	)
	return res
}

// fetch issues a single request and reports its status and whether it was
// served over a verified TLS chain.
func (p *Prober) fetch(ctx context.Context, method, endpoint string) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return 0, false, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, false, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	return resp.StatusCode, verifiedTLS(resp), nil
}

func verifiedTLS(resp *http.Response) bool {
	return resp.TLS != nil && len(resp.TLS.VerifiedChains) > 0
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      int    `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// listTools calls the MCP tools/list method and reports whether the server
// answered with a JSON-RPC result.
func (p *Prober) listTools(ctx context.Context, endpoint string) bool {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: "tools/list", ID: 1})
	if err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var rpc rpcResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rpc); err != nil {
		return false
	}
	return rpc.Error == nil && len(rpc.Result) > 0 && string(rpc.Result) != "null"
}
