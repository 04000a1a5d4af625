// Package netguard rejects outbound connections to private, loopback and
// otherwise internal address ranges. Every DNS resolver and HTTP target the
// verification engine talks to passes through here first.
package netguard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// ErrDisallowedAddress is returned when a host is, or resolves to, an
// internal address.
var ErrDisallowedAddress = errors.New("address is in a private or internal range")

// cgnat is the shared address space (RFC 6598); net.IP has no helper for it.
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// IsDisallowedIP reports whether ip must never be contacted.
func IsDisallowedIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		cgnat.Contains(ip)
}

// HostResolver is the subset of *net.Resolver used by CheckHost.
type HostResolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// CheckHost returns nil when host is a public IP literal, or a name whose
// every resolved address is public. Names that fail to resolve are rejected.
func CheckHost(ctx context.Context, r HostResolver, host string) error {
	if host == "localhost" {
		return fmt.Errorf("%s: %w", host, ErrDisallowedAddress)
	}
	if ip := net.ParseIP(host); ip != nil {
		if IsDisallowedIP(ip) {
			return fmt.Errorf("%s: %w", host, ErrDisallowedAddress)
		}
		return nil
	}
	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("resolve %s: no addresses", host)
	}
	for _, a := range addrs {
		if IsDisallowedIP(a.IP) {
			return fmt.Errorf("%s -> %s: %w", host, a.IP, ErrDisallowedAddress)
		}
	}
	return nil
}

// dialControl runs after name resolution, on the concrete address being
// dialled, so a DNS answer that changes between check and connect is still caught.
func dialControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	if IsDisallowedIP(net.ParseIP(host)) {
		return fmt.Errorf("dial %s: %w", address, ErrDisallowedAddress)
	}
	return nil
}

// NewHTTPClient returns an http.Client with the given overall timeout whose
// dialer refuses internal addresses. allowPrivate disables the guard and is
// meant for local development and tests only.
func NewHTTPClient(timeout time.Duration, allowPrivate bool) *http.Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}
	if !allowPrivate {
		dialer.Control = dialControl
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.Proxy = nil

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return errors.New("stopped after 3 redirects")
			}
			return nil
		},
	}
}
