package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmerrifield20/mcptrust/pkg/client"
)

// ── Stub server ─────────────────────────────────────────────────────────

type stubServer struct {
	*httptest.Server
	ownershipCalls atomic.Int32
	lastAuth       atomic.Value
}

func newStubServer(t *testing.T) *stubServer {
	t.Helper()
	s := &stubServer{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/challenges", func(w http.ResponseWriter, r *http.Request) {
		s.lastAuth.Store(r.Header.Get("Authorization"))
		var req struct {
			Domain string `json:"domain"`
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Reason == "" {
			req.Reason = client.ReasonUserRequest
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"challenge": map[string]any{
				"challenge_id":     "ch-1",
				"domain":           req.Domain,
				"txt_record_name":  "_mcp-challenge." + req.Domain,
				"txt_record_value": "mcp_challenge_abc",
				"expires_at":       "2026-03-02T12:00:00Z",
				"reason":           req.Reason,
			},
			"state":        "pending",
			"instructions": "publish it",
		})
	})

	mux.HandleFunc("GET /api/v1/challenges/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "ch-1" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "Challenge not found or expired"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"challenge": map[string]any{"challenge_id": "ch-1", "domain": "example.com"},
			"state":     "pending",
		})
	})

	mux.HandleFunc("POST /api/v1/challenges/{id}/verify", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "ch-1":
			json.NewEncoder(w).Encode(map[string]any{
				"verified": true, "domain": "example.com", "transferred": true, "message": "ok",
			})
		case "pending":
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"error": "not confirmed"})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "Challenge not found or expired"})
		}
	})

	mux.HandleFunc("GET /api/v1/ownership/{domain}", func(w http.ResponseWriter, r *http.Request) {
		s.ownershipCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"domain":       r.PathValue("domain"),
			"verification": map[string]any{"verified": true, "method": "dns_txt", "details": "found"},
		})
	})

	mux.HandleFunc("PATCH /api/v1/servers/{domain}", func(w http.ResponseWriter, r *http.Request) {
		var req client.ServerUpdate
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch {
		case r.PathValue("domain") == "missing.example":
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "server not found"})
		case r.PathValue("domain") == "twice.example":
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "domain has conflicting registrations"})
		case req.Endpoint != nil:
			w.WriteHeader(http.StatusPreconditionRequired)
			json.NewEncoder(w).Encode(map[string]any{
				"success":               false,
				"verification_required": true,
				"challenge":             map[string]any{"challenge_id": "ch-2", "reason": "user_request"},
				"message":               "prove it",
			})
		default:
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"server":  map[string]any{"domain": r.PathValue("domain"), "description": *req.Description},
				"message": "server updated",
			})
		}
	})

	mux.HandleFunc("POST /api/v1/servers/{domain}/authorize", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "Bearer token required"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success":      true,
			"verification": map[string]any{"verified": true, "method": "well_known"},
			"message":      "ok",
		})
	})

	mux.HandleFunc("GET /api/v1/servers/{domain}/trust", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"domain":       r.PathValue("domain"),
			"dns_verified": true,
			"health":       map[string]any{"status": "healthy", "response_time_ms": 80},
			"report": map[string]any{
				"score": 100, "level": "trusted", "raw": 100,
				"adjustments": []map[string]any{{"signal": "dns_verified", "points": 40}},
			},
		})
	})

	mux.HandleFunc("GET /api/v1/ownership/{domain}/history", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"domain": r.PathValue("domain"),
			"root":   "abc123",
			"entries": []map[string]any{
				{"index": 4, "domain": r.PathValue("domain"), "action": "ownership_transferred", "actor": "203.0.113.5", "hash": "abc123"},
			},
		})
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestStartChallenge(t *testing.T) {
	srv := newStubServer(t)
	c := client.MustNew(srv.URL, client.WithBearerToken("tok"))

	res, err := c.StartChallenge(context.Background(), "example.com", client.ReasonOwnershipTransfer)
	if err != nil {
		t.Fatalf("StartChallenge() error: %v", err)
	}
	if res.Challenge.ChallengeID != "ch-1" || res.Challenge.TXTRecordName != "_mcp-challenge.example.com" {
		t.Errorf("unexpected challenge: %+v", res.Challenge)
	}
	if res.Challenge.Reason != client.ReasonOwnershipTransfer || res.State != "pending" {
		t.Errorf("unexpected result: %+v", res)
	}
	if !res.Challenge.ExpiresAt.Equal(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("expires_at: got %v", res.Challenge.ExpiresAt)
	}
	if got, _ := srv.lastAuth.Load().(string); got != "Bearer tok" {
		t.Errorf("Authorization header: got %q", got)
	}
}

func TestGetChallenge(t *testing.T) {
	srv := newStubServer(t)
	c := client.MustNew(srv.URL)

	res, err := c.GetChallenge(context.Background(), "ch-1")
	if err != nil || res.Challenge.Domain != "example.com" {
		t.Fatalf("GetChallenge() = %+v, %v", res, err)
	}

	_, err = c.GetChallenge(context.Background(), "gone")
	if !errors.Is(err, client.ErrChallengeNotFound) {
		t.Errorf("expected ErrChallengeNotFound, got %v", err)
	}
}

func TestVerifyChallenge(t *testing.T) {
	srv := newStubServer(t)
	c := client.MustNew(srv.URL)
	ctx := context.Background()

	res, err := c.VerifyChallenge(ctx, "ch-1")
	if err != nil {
		t.Fatalf("VerifyChallenge() error: %v", err)
	}
	if !res.Verified || !res.Transferred {
		t.Errorf("unexpected result: %+v", res)
	}

	if _, err := c.VerifyChallenge(ctx, "pending"); !errors.Is(err, client.ErrVerificationPending) {
		t.Errorf("expected ErrVerificationPending, got %v", err)
	}
	if _, err := c.VerifyChallenge(ctx, "unknown"); !errors.Is(err, client.ErrChallengeNotFound) {
		t.Errorf("expected ErrChallengeNotFound, got %v", err)
	}
}

func TestCheckOwnership_Cache(t *testing.T) {
	srv := newStubServer(t)
	c := client.MustNew(srv.URL, client.WithCacheTTL(time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := c.CheckOwnership(ctx, "Example.com")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Verification.Verified || res.Verification.Method != "dns_txt" || res.Domain != "example.com" {
			t.Errorf("unexpected result: %+v", res)
		}
	}
	if n := srv.ownershipCalls.Load(); n != 1 {
		t.Errorf("expected 1 server call with cache, got %d", n)
	}
}

func TestCheckOwnership_NoCache(t *testing.T) {
	srv := newStubServer(t)
	c := client.MustNew(srv.URL)

	_, _ = c.CheckOwnership(context.Background(), "example.com")
	_, _ = c.CheckOwnership(context.Background(), "example.com")
	if n := srv.ownershipCalls.Load(); n != 2 {
		t.Errorf("expected 2 server calls without cache, got %d", n)
	}
}

func TestUpdateServer(t *testing.T) {
	srv := newStubServer(t)
	c := client.MustNew(srv.URL)
	ctx := context.Background()

	desc := "forecasts"
	res, err := c.UpdateServer(ctx, "example.com", client.ServerUpdate{Description: &desc})
	if err != nil {
		t.Fatalf("UpdateServer() error: %v", err)
	}
	if !res.Success || res.Server == nil || res.Server.Description != "forecasts" {
		t.Errorf("unexpected result: %+v", res)
	}

	// 428 is an answer, not an error.
	ep := "https://mcp2.example.com"
	res, err = c.UpdateServer(ctx, "example.com", client.ServerUpdate{Endpoint: &ep})
	if err != nil {
		t.Fatalf("UpdateServer(endpoint) error: %v", err)
	}
	if res.Success || !res.VerificationRequired || res.Challenge == nil || res.Challenge.ChallengeID != "ch-2" {
		t.Errorf("unexpected result: %+v", res)
	}

	if _, err := c.UpdateServer(ctx, "missing.example", client.ServerUpdate{Description: &desc}); !errors.Is(err, client.ErrServerNotFound) {
		t.Errorf("expected ErrServerNotFound, got %v", err)
	}
	if _, err := c.UpdateServer(ctx, "twice.example", client.ServerUpdate{Description: &desc}); !errors.Is(err, client.ErrDomainConflict) {
		t.Errorf("expected ErrDomainConflict, got %v", err)
	}
}

func TestAuthorizeRegistration(t *testing.T) {
	srv := newStubServer(t)
	ctx := context.Background()

	if _, err := client.MustNew(srv.URL).AuthorizeRegistration(ctx, "example.com"); err == nil {
		t.Error("expected unauthorized error without token")
	}

	res, err := client.MustNew(srv.URL, client.WithBearerToken("tok")).AuthorizeRegistration(ctx, "example.com")
	if err != nil {
		t.Fatalf("AuthorizeRegistration() error: %v", err)
	}
	if !res.Success || res.Verification == nil || res.Verification.Method != "well_known" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestTrustScore(t *testing.T) {
	srv := newStubServer(t)
	c := client.MustNew(srv.URL)

	res, err := c.TrustScore(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("TrustScore() error: %v", err)
	}
	if res.Report.Score != 100 || res.Report.Level != "trusted" || len(res.Report.Adjustments) != 1 {
		t.Errorf("unexpected report: %+v", res.Report)
	}
	if res.Health == nil || res.Health.ResponseTimeMS == nil || *res.Health.ResponseTimeMS != 80 {
		t.Errorf("unexpected health: %+v", res.Health)
	}
}

func TestHistory(t *testing.T) {
	srv := newStubServer(t)
	c := client.MustNew(srv.URL)

	res, err := c.History(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if res.Root != "abc123" || len(res.Entries) != 1 || res.Entries[0].Action != "ownership_transferred" {
		t.Errorf("unexpected history: %+v", res)
	}
}

func TestWithTokenFile(t *testing.T) {
	srv := newStubServer(t)
	path := filepath.Join(t.TempDir(), "nested", "token")

	if err := client.SaveToken(path, "file-token"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token file mode: got %v", info.Mode().Perm())
	}

	c, err := client.New(srv.URL, client.WithTokenFile(path))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.StartChallenge(context.Background(), "example.com", ""); err != nil {
		t.Fatal(err)
	}
	if got, _ := srv.lastAuth.Load().(string); got != "Bearer file-token" {
		t.Errorf("Authorization header: got %q", got)
	}

	if _, err := client.New(srv.URL, client.WithTokenFile(filepath.Join(t.TempDir(), "absent"))); err == nil {
		t.Error("expected error for missing token file")
	}
}
