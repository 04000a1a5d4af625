// Package dns answers DNS questions for the ownership engine.
//
// A Pool queries a fixed set of independent public resolvers over the DNS
// wire protocol and reduces their answers to a single majority decision, so a
// single lying or compromised resolver cannot forge a TXT record.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jmerrifield20/mcptrust/internal/netguard"
	miekgdns "github.com/miekg/dns"
	"go.uber.org/zap"
)

// MinResolvers is the smallest pool for which a majority is meaningful.
const MinResolvers = 3

// DefaultResolvers are independent public recursive resolvers.
var DefaultResolvers = []string{"8.8.8.8", "1.1.1.1", "9.9.9.9"}

// ErrTooFewResolvers is returned by NewPool for pools smaller than MinResolvers.
var ErrTooFewResolvers = errors.New("dns pool needs at least 3 resolvers")

// Exchanger sends one DNS message to a server and waits for the reply.
// *miekgdns.Client satisfies this interface.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *miekgdns.Msg, address string) (*miekgdns.Msg, time.Duration, error)
}

// Config holds resolver pool configuration.
type Config struct {
	Resolvers    []string      // "ip" or "ip:port"; defaults to DefaultResolvers
	QueryTimeout time.Duration // per-resolver; default 3s
}

// Vote is one resolver's opinion on a TXT record.
type Vote struct {
	Resolver string
	Yes      bool
	Err      error // transport, rcode or guard failure; always a "no"
}

// Tally is the outcome of a consensus round.
type Tally struct {
	Name     string
	Value    string
	Votes    []Vote
	Yes      int
	Total    int
	Verified bool
}

// Pool fans TXT queries out to every configured resolver.
type Pool struct {
	resolvers []string
	timeout   time.Duration
	udp       Exchanger
	tcp       Exchanger
	hosts     netguard.HostResolver
	onVote    func(resolver string, yes bool)
	logger    *zap.Logger
}

// NewPool creates a resolver pool.
func NewPool(cfg Config, logger *zap.Logger) (*Pool, error) {
	resolvers := cfg.Resolvers
	if len(resolvers) == 0 {
		resolvers = DefaultResolvers
	}
	if len(resolvers) < MinResolvers {
		return nil, ErrTooFewResolvers
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 3 * time.Second
	}

	return &Pool{
		resolvers: append([]string(nil), resolvers...),
		timeout:   cfg.QueryTimeout,
		udp:       &miekgdns.Client{Net: "udp", Timeout: cfg.QueryTimeout},
		tcp:       &miekgdns.Client{Net: "tcp", Timeout: cfg.QueryTimeout},
		hosts:     net.DefaultResolver,
		logger:    logger,
	}, nil
}

// SetExchangers replaces the UDP and TCP transports. Tests use this to avoid
// real network traffic.
func (p *Pool) SetExchangers(udp, tcp Exchanger) {
	p.udp = udp
	p.tcp = tcp
}

// SetHostResolver replaces the resolver used to vet resolver hostnames.
func (p *Pool) SetHostResolver(r netguard.HostResolver) {
	p.hosts = r
}

// SetMetricsRecord configures a callback invoked once per resolver vote.
func (p *Pool) SetMetricsRecord(fn func(resolver string, yes bool)) {
	p.onVote = fn
}

// Resolvers returns the configured resolver list.
func (p *Pool) Resolvers() []string {
	return append([]string(nil), p.resolvers...)
}

// VerifyTXTRecord reports whether a strict majority of the configured
// resolvers return a TXT record at name whose concatenated segments equal
// expected exactly. It never fails; every error is a "no" vote.
func (p *Pool) VerifyTXTRecord(ctx context.Context, name, expected string) bool {
	return p.Tally(ctx, name, expected).Verified
}

// Tally queries every resolver concurrently, waits for all of them to
// answer or time out, and counts the votes.
func (p *Pool) Tally(ctx context.Context, name, expected string) Tally {
	votes := make([]Vote, len(p.resolvers))

	var wg sync.WaitGroup
	for i, r := range p.resolvers {
		wg.Add(1)
		go func(i int, resolver string) {
			defer wg.Done()
			records, err := p.query(ctx, resolver, name)
			votes[i] = Vote{
				Resolver: resolver,
				Err:      err,
				Yes:      err == nil && containsExact(records, expected),
			}
		}(i, r)
	}
	wg.Wait()

	t := Tally{Name: name, Value: expected, Votes: votes, Total: len(votes)}
	for _, v := range votes {
		if v.Yes {
			t.Yes++
		}
		if p.onVote != nil {
			p.onVote(v.Resolver, v.Yes)
		}
		p.logger.Debug("resolver vote",
			zap.String("name", name),
			zap.String("resolver", v.Resolver),
			zap.Bool("yes", v.Yes),
			zap.Error(v.Err),
		)
	}
	// yes > total/2 without integer truncation
	t.Verified = 2*t.Yes > t.Total
	return t
}

// LookupTXT returns the TXT strings for name from the first resolver, in
// configured order, that gives a definite answer.
func (p *Pool) LookupTXT(ctx context.Context, name string) ([]string, error) {
	var lastErr error
	for _, r := range p.resolvers {
		records, err := p.query(ctx, r, name)
		if err == nil {
			return records, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("lookup TXT %s: %w", name, lastErr)
}

// query asks a single resolver for the TXT records owned by name. NXDOMAIN is
// a definite empty answer, not an error.
func (p *Pool) query(ctx context.Context, resolver, name string) ([]string, error) {
	host, port := splitResolver(resolver)
	if err := netguard.CheckHost(ctx, p.hosts, host); err != nil {
		return nil, fmt.Errorf("resolver rejected: %w", err)
	}
	addr := net.JoinHostPort(host, port)

	qctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	m := new(miekgdns.Msg)
	m.SetQuestion(miekgdns.Fqdn(name), miekgdns.TypeTXT)
	m.RecursionDesired = true

	resp, _, err := p.udp.ExchangeContext(qctx, m, addr)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", addr, err)
	}
	if resp != nil && resp.Truncated {
		resp, _, err = p.tcp.ExchangeContext(qctx, m, addr)
		if err != nil {
			return nil, fmt.Errorf("query %s over tcp: %w", addr, err)
		}
	}
	if resp == nil {
		return nil, fmt.Errorf("query %s: empty response", addr)
	}

	switch resp.Rcode {
	case miekgdns.RcodeSuccess:
	case miekgdns.RcodeNameError:
		return nil, nil
	default:
		return nil, fmt.Errorf("query %s: rcode %s", addr, miekgdns.RcodeToString[resp.Rcode])
	}

	// Only RRs owned by the queried name count; CNAME targets and stray
	// records for other owners are ignored.
	owner := miekgdns.Fqdn(name)
	var records []string
	for _, rr := range resp.Answer {
		txt, ok := rr.(*miekgdns.TXT)
		if !ok || !strings.EqualFold(txt.Hdr.Name, owner) {
			continue
		}
		records = append(records, strings.Join(txt.Txt, ""))
	}
	return records, nil
}

func splitResolver(resolver string) (host, port string) {
	if h, p, err := net.SplitHostPort(resolver); err == nil {
		return h, p
	}
	return strings.Trim(resolver, "[]"), "53"
}

func containsExact(records []string, want string) bool {
	for _, r := range records {
		if r == want {
			return true
		}
	}
	return false
}
