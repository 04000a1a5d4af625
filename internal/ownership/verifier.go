// Package ownership decides whether the current DNS and HTTP state of a
// domain proves that its claimant controls it.
package ownership

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmerrifield20/mcptrust/internal/netguard"
	"github.com/jmerrifield20/mcptrust/internal/registry/model"
	"github.com/jmerrifield20/mcptrust/pkg/mcpmanifest"
	"go.uber.org/zap"
)

// Record names and markers checked by VerifyCurrentOwnership.
const (
	VerifyRecordPrefix  = "_mcp-verify."
	VerifyRecordMarker  = "mcplookup-verify="
	ServiceRecordPrefix = "_mcp."
	ServiceRecordMarker = "v=mcp1"
)

// DefaultHTTPTimeout bounds the well-known fetch.
const DefaultHTTPTimeout = 5 * time.Second

// TXTLookup returns the TXT strings published at name.
// *dns.Pool satisfies this interface.
type TXTLookup interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// Verifier runs the ownership proofs in priority order.
type Verifier struct {
	txt          TXTLookup
	httpClient   *http.Client
	wellKnownURL func(domain string) string
	onMethod     func(method string)
	logger       *zap.Logger
}

// NewVerifier creates a Verifier. A nil httpClient is replaced with an
// SSRF-guarded client using DefaultHTTPTimeout.
func NewVerifier(txt TXTLookup, httpClient *http.Client, logger *zap.Logger) *Verifier {
	if httpClient == nil {
		httpClient = netguard.NewHTTPClient(DefaultHTTPTimeout, false)
	}
	return &Verifier{
		txt:          txt,
		httpClient:   httpClient,
		wellKnownURL: mcpmanifest.URL,
		logger:       logger,
	}
}

// SetMetricsRecord registers a callback invoked with the method of every
// verification result, including "none".
func (v *Verifier) SetMetricsRecord(fn func(method string)) {
	v.onMethod = fn
}

// VerifyCurrentOwnership reports the first proof method that succeeds for
// domain: the _mcp-verify TXT record, the well-known document, then the _mcp
// service record. It never returns an error; failures of a method count as
// that method not proving ownership.
func (v *Verifier) VerifyCurrentOwnership(ctx context.Context, domain string) model.VerificationResult {
	res := v.verify(ctx, domain)
	if v.onMethod != nil {
		v.onMethod(res.Method)
	}
	v.logger.Info("ownership check",
		zap.String("domain", domain),
		zap.Bool("verified", res.Verified),
		zap.String("method", res.Method),
	)
	return res
}

func (v *Verifier) verify(ctx context.Context, domain string) model.VerificationResult {
	d, err := model.NormalizeDomain(domain)
	if err != nil {
		return model.VerificationResult{Method: model.MethodNone, Details: err.Error()}
	}

	if v.txtContains(ctx, VerifyRecordPrefix+d, VerifyRecordMarker) {
		return model.VerificationResult{
			Verified: true,
			Method:   model.MethodDNSTXT,
			Details:  fmt.Sprintf("found %s record at %s%s", VerifyRecordMarker, VerifyRecordPrefix, d),
		}
	}

	if v.wellKnownOK(ctx, d) {
		return model.VerificationResult{
			Verified: true,
			Method:   model.MethodWellKnown,
			Details:  fmt.Sprintf("%s serves a document with an endpoint", v.wellKnownURL(d)),
		}
	}

	if v.txtContains(ctx, ServiceRecordPrefix+d, ServiceRecordMarker) {
		return model.VerificationResult{
			Verified: true,
			Method:   model.MethodServiceRecord,
			Details:  fmt.Sprintf("found %s service record at %s%s", ServiceRecordMarker, ServiceRecordPrefix, d),
		}
	}

	details := fmt.Sprintf("no proof found: publish a TXT record containing %q at %s%s or serve %s",
		VerifyRecordMarker, VerifyRecordPrefix, d, v.wellKnownURL(d))
	return model.VerificationResult{Method: model.MethodNone, Details: details}
}

func (v *Verifier) txtContains(ctx context.Context, name, marker string) bool {
	if v.txt == nil {
		return false
	}
	records, err := v.txt.LookupTXT(ctx, name)
	if err != nil {
		v.logger.Debug("TXT lookup failed", zap.String("name", name), zap.Error(err))
		return false
	}
	for _, r := range records {
		if strings.Contains(r, marker) {
			return true
		}
	}
	return false
}

func (v *Verifier) wellKnownOK(ctx context.Context, domain string) bool {
	url := v.wellKnownURL(domain)
	ctx, cancel := context.WithTimeout(ctx, DefaultHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "mcptrust-verifier/1.0")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		v.logger.Debug("well-known fetch failed", zap.String("url", url), zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	doc, err := mcpmanifest.Decode(resp.Body)
	if err != nil {
		v.logger.Debug("well-known document invalid", zap.String("url", url), zap.Error(err))
		return false
	}
	return doc.HasEndpoint()
}
