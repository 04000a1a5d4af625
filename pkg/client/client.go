package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

var (
	// ErrVerificationPending is returned by VerifyChallenge when a majority of
	// resolvers do not yet see the challenge TXT record.
	ErrVerificationPending = errors.New("challenge TXT record not yet published or propagated")

	// ErrChallengeNotFound is returned for unknown and expired challenges.
	ErrChallengeNotFound = errors.New("challenge not found or expired")

	// ErrServerNotFound is returned when no server is registered for the domain.
	ErrServerNotFound = errors.New("server not found")

	// ErrDomainConflict is returned when the service holds more than one
	// registration for a domain.
	ErrDomainConflict = errors.New("domain has conflicting registrations")
)

// Challenge reasons accepted by StartChallenge.
const (
	ReasonOwnershipTransfer  = "ownership_transfer"
	ReasonSuspiciousActivity = "suspicious_activity"
	ReasonUserRequest        = "user_request"
)

// Challenge is a pending ownership challenge.
type Challenge struct {
	ChallengeID    string    `json:"challenge_id"`
	Domain         string    `json:"domain"`
	ChallengerIP   string    `json:"challenger_ip"`
	TXTRecordName  string    `json:"txt_record_name"`
	TXTRecordValue string    `json:"txt_record_value"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	Reason         string    `json:"reason"`
}

// ChallengeResult is returned by StartChallenge and GetChallenge.
type ChallengeResult struct {
	Challenge    Challenge `json:"challenge"`
	State        string    `json:"state"`
	Instructions string    `json:"instructions,omitempty"`
}

// TransferResult is returned by a successful VerifyChallenge.
type TransferResult struct {
	Verified    bool   `json:"verified"`
	Domain      string `json:"domain"`
	Transferred bool   `json:"transferred"`
	Message     string `json:"message"`
}

// Verification is the outcome of a current-ownership check.
type Verification struct {
	Verified bool   `json:"verified"`
	Method   string `json:"method"`
	Details  string `json:"details"`
}

// OwnershipResult is returned by CheckOwnership.
type OwnershipResult struct {
	Domain       string       `json:"domain"`
	Verification Verification `json:"verification"`
}

// ServerUpdate is the payload for UpdateServer. Nil fields are left unchanged.
type ServerUpdate struct {
	Endpoint     *string   `json:"endpoint,omitempty"`
	Capabilities *[]string `json:"capabilities,omitempty"`
	ContactEmail *string   `json:"contact_email,omitempty"`
	Description  *string   `json:"description,omitempty"`
}

// Server is a registered MCP server.
type Server struct {
	ID           string     `json:"id"`
	Domain       string     `json:"domain"`
	Endpoint     string     `json:"endpoint,omitempty"`
	Capabilities []string   `json:"capabilities"`
	ContactEmail string     `json:"contact_email,omitempty"`
	Description  string     `json:"description,omitempty"`
	DNSVerified  bool       `json:"dns_verified"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
}

// UpdateResult is returned by UpdateServer and AuthorizeRegistration.
type UpdateResult struct {
	Success              bool          `json:"success"`
	VerificationRequired bool          `json:"verification_required,omitempty"`
	Challenge            *Challenge    `json:"challenge,omitempty"`
	Verification         *Verification `json:"verification,omitempty"`
	Server               *Server       `json:"server,omitempty"`
	Message              string        `json:"message"`
}

// Health is the monitored health of a server. Nil fields are unknown.
type Health struct {
	Status           string   `json:"status,omitempty"`
	ResponseTimeMS   *float64 `json:"response_time_ms,omitempty"`
	UptimePercentage *float64 `json:"uptime_percentage,omitempty"`
	ErrorRate        *float64 `json:"error_rate,omitempty"`
}

// Adjustment is one credit or penalty in a trust report.
type Adjustment struct {
	Signal string `json:"signal"`
	Points int    `json:"points"`
}

// TrustReport is the itemized trust score.
type TrustReport struct {
	Score       int          `json:"score"`
	Level       string       `json:"level"`
	Raw         int          `json:"raw"`
	Adjustments []Adjustment `json:"adjustments"`
}

// TrustResult is returned by TrustScore.
type TrustResult struct {
	Domain      string      `json:"domain"`
	Endpoint    string      `json:"endpoint,omitempty"`
	DNSVerified bool        `json:"dns_verified"`
	Health      *Health     `json:"health,omitempty"`
	Report      TrustReport `json:"report"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}

// AuditEntry is one record of the ownership audit ledger.
type AuditEntry struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Domain    string    `json:"domain"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	DataHash  string    `json:"data_hash"`
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// AuditHistory is returned by History.
type AuditHistory struct {
	Domain  string       `json:"domain"`
	Entries []AuditEntry `json:"entries"`
	Root    string       `json:"root"`
}

// Client is the trust service SDK entry point.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	cache       *ownershipCache
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithCacheTTL enables in-memory caching of CheckOwnership results.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		c.cache = newOwnershipCache(ttl)
		return nil
	}
}

// WithBearerToken attaches an operator token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Only use this in development against a self-signed server.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
			Timeout: 30 * time.Second,
		}
		return nil
	}
}

// New creates a Client for the service at baseURL.
//
//	c, err := client.New("https://trust.example.com",
//	    client.WithBearerToken(token),
//	    client.WithCacheTTL(30*time.Second),
//	)
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// StartChallenge opens an ownership challenge for domain. An empty reason
// lets the server apply its default.
func (c *Client) StartChallenge(ctx context.Context, domain, reason string) (*ChallengeResult, error) {
	payload := map[string]string{"domain": domain}
	if reason != "" {
		payload["reason"] = reason
	}
	var result ChallengeResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/challenges", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetChallenge fetches a pending challenge.
func (c *Client) GetChallenge(ctx context.Context, challengeID string) (*ChallengeResult, error) {
	var result ChallengeResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/challenges/"+url.PathEscape(challengeID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifyChallenge asks the service to check the challenge TXT record.
// It returns ErrVerificationPending when the record is not yet visible and
// ErrChallengeNotFound when the challenge is unknown, used or expired.
func (c *Client) VerifyChallenge(ctx context.Context, challengeID string) (*TransferResult, error) {
	var result TransferResult
	path := "/api/v1/challenges/" + url.PathEscape(challengeID) + "/verify"
	if err := c.call(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CheckOwnership reports whether domain currently proves ownership through a
// DNS TXT record, its well-known document or an MCP service record.
func (c *Client) CheckOwnership(ctx context.Context, domain string) (*OwnershipResult, error) {
	key := strings.ToLower(strings.TrimSpace(domain))
	if c.cache != nil {
		if result, ok := c.cache.get(key); ok {
			return result, nil
		}
	}

	var result OwnershipResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/ownership/"+url.PathEscape(key), nil, &result); err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.set(key, &result)
	}
	return &result, nil
}

// UpdateServer applies update to the server registered for domain. When the
// change needs fresh ownership proof the result has VerificationRequired set
// and carries a challenge; nothing was changed in that case.
func (c *Client) UpdateServer(ctx context.Context, domain string, update ServerUpdate) (*UpdateResult, error) {
	var result UpdateResult
	if err := c.call(ctx, http.MethodPatch, "/api/v1/servers/"+url.PathEscape(domain), update, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AuthorizeRegistration checks whether a new registration for domain may
// proceed. Like UpdateServer it reports a pending proof in the result.
func (c *Client) AuthorizeRegistration(ctx context.Context, domain string) (*UpdateResult, error) {
	var result UpdateResult
	path := "/api/v1/servers/" + url.PathEscape(domain) + "/authorize"
	if err := c.call(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TrustScore probes the server registered for domain and returns its score.
func (c *Client) TrustScore(ctx context.Context, domain string) (*TrustResult, error) {
	var result TrustResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/servers/"+url.PathEscape(domain)+"/trust", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// History returns the audit ledger entries recorded for domain, oldest first.
func (c *Client) History(ctx context.Context, domain string) (*AuditHistory, error) {
	var result AuditHistory
	if err := c.call(ctx, http.MethodGet, "/api/v1/ownership/"+url.PathEscape(domain)+"/history", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// call sends a JSON request and decodes a JSON response into out.
// 428 Precondition Required is a successful answer: it carries a challenge.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var bodyReader io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	status, body, err := c.doStatusBody(req)
	if err != nil {
		return err
	}
	if err := statusError(status, body); err != nil {
		return err
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func statusError(status int, body []byte) error {
	switch {
	case status < 300 || status == http.StatusPreconditionRequired:
		return nil
	case status == http.StatusNotFound:
		if strings.Contains(string(body), "Challenge not found") {
			return ErrChallengeNotFound
		}
		return ErrServerNotFound
	case status == http.StatusUnprocessableEntity:
		return ErrVerificationPending
	case status == http.StatusConflict:
		return ErrDomainConflict
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("unauthorized: %s", errorMessage(body))
	case status < 500:
		return fmt.Errorf("bad request (%d): %s", status, errorMessage(body))
	default:
		return fmt.Errorf("server error %d: %s", status, errorMessage(body))
	}
}

// errorMessage extracts {"error": "..."} from body, or returns it verbatim.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return string(body)
}

// doStatusBody is a lower-level HTTP call that returns (statusCode, body, error)
// without failing on 4xx responses. The caller interprets the status code.
func (c *Client) doStatusBody(req *http.Request) (int, []byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// --- simple in-memory ownership cache ---

type cacheEntry struct {
	result    *OwnershipResult
	expiresAt time.Time
}

type ownershipCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
}

func newOwnershipCache(ttl time.Duration) *ownershipCache {
	return &ownershipCache{entries: make(map[string]*cacheEntry), ttl: ttl}
}

func (oc *ownershipCache) get(key string) (*OwnershipResult, bool) {
	oc.mu.RLock()
	defer oc.mu.RUnlock()
	e, ok := oc.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	cp := *e.result
	return &cp, true
}

func (oc *ownershipCache) set(key string, result *OwnershipResult) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	cp := *result
	oc.entries[key] = &cacheEntry{result: &cp, expiresAt: time.Now().Add(oc.ttl)}
}
