package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// ── Helpers ──────────────────────────────────────────────────────────────

// mcpHandler answers HEAD/GET with getStatus and tools/list POSTs with rpcBody.
func mcpHandler(getStatus int, rpcBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var req rpcRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method != "tools/list" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(rpcBody))
			return
		}
		w.WriteHeader(getStatus)
	}
}

func localProber() *Prober {
	return NewProber(Config{ProbeTimeout: 5 * time.Second, AllowPrivate: true}, zap.NewNop())
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestProbe_HealthyTLS(t *testing.T) {
	srv := httptest.NewTLSServer(mcpHandler(http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`))
	defer srv.Close()

	p := localProber()
	p.httpClient = srv.Client()

	res := p.Probe(context.Background(), srv.URL)
	if !res.Reachable || !res.SSLValid || !res.CapabilitiesWorking {
		t.Fatalf("expected fully healthy probe, got %+v", res)
	}
	if StatusOf(res) != "healthy" {
		t.Errorf("status: got %q", StatusOf(res))
	}
}

func TestProbe_PlainHTTPIsNotSSLValid(t *testing.T) {
	srv := httptest.NewServer(mcpHandler(http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{}}`))
	defer srv.Close()

	res := localProber().Probe(context.Background(), srv.URL)
	if !res.Reachable || res.SSLValid {
		t.Errorf("expected reachable without SSL, got %+v", res)
	}
}

func TestProbe_FallsBackToGET(t *testing.T) {
	var heads, gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			heads.Add(1)
			w.WriteHeader(http.StatusMethodNotAllowed)
		case http.MethodGet:
			gets.Add(1)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	res := localProber().Probe(context.Background(), srv.URL)
	if !res.Reachable {
		t.Fatalf("expected GET fallback to succeed, got %+v", res)
	}
	if heads.Load() != 1 || gets.Load() != 1 {
		t.Errorf("expected one HEAD and one GET, got %d/%d", heads.Load(), gets.Load())
	}
	if res.CapabilitiesWorking {
		t.Error("a 404 tools/list must not count as working")
	}
	if StatusOf(res) != "degraded" {
		t.Errorf("status: got %q", StatusOf(res))
	}
}

func TestProbe_Failure(t *testing.T) {
	srv := httptest.NewServer(mcpHandler(http.StatusInternalServerError, `{}`))
	defer srv.Close()

	res := localProber().Probe(context.Background(), srv.URL)
	if res.Reachable || res.CapabilitiesWorking || res.Err == "" {
		t.Errorf("expected unreachable with error, got %+v", res)
	}
	if StatusOf(res) != "unhealthy" {
		t.Errorf("status: got %q", StatusOf(res))
	}
}

func TestProbe_RPCErrorIsNotWorking(t *testing.T) {
	srv := httptest.NewServer(mcpHandler(http.StatusOK, `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
	defer srv.Close()

	if res := localProber().Probe(context.Background(), srv.URL); res.CapabilitiesWorking {
		t.Errorf("JSON-RPC error must not count as working: %+v", res)
	}
}

func TestProbe_GuardBlocksLoopback(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	p := NewProber(Config{ProbeTimeout: time.Second}, zap.NewNop())
	if res := p.Probe(context.Background(), srv.URL); res.Reachable {
		t.Errorf("loopback endpoint must be refused: %+v", res)
	}
	if hits.Load() != 0 {
		t.Error("request reached loopback server")
	}
}

func TestProbe_MetricsHook(t *testing.T) {
	srv := httptest.NewServer(mcpHandler(http.StatusOK, `{"result":{}}`))
	defer srv.Close()

	p := localProber()
	var calls int
	var last bool
	p.SetMetricsRecord(func(reachable bool, _ time.Duration) {
		calls++
		last = reachable
	})
	p.Probe(context.Background(), srv.URL)
	if calls != 1 || !last {
		t.Errorf("expected one reachable record, got calls=%d last=%v", calls, last)
	}
}
