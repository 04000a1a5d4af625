package model

import (
	"fmt"
	"strings"
)

// NormalizeDomain trims whitespace and a trailing dot, lower-cases the name and
// checks it is a plausible multi-label DNS hostname.
func NormalizeDomain(domain string) (string, error) {
	d := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
	if d == "" {
		return "", &ErrValidation{Msg: "domain is required"}
	}
	if len(d) > 253 {
		return "", &ErrValidation{Msg: "domain too long (max 253 characters)"}
	}
	labels := strings.Split(d, ".")
	if len(labels) < 2 {
		return "", &ErrValidation{Msg: fmt.Sprintf("domain %q must contain at least one dot", d)}
	}
	for _, l := range labels {
		if !validLabel(l) {
			return "", &ErrValidation{Msg: fmt.Sprintf("domain %q has an invalid label %q", d, l)}
		}
	}
	return d, nil
}

func validLabel(l string) bool {
	if l == "" || len(l) > 63 || l[0] == '-' || l[len(l)-1] == '-' {
		return false
	}
	for _, r := range l {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return false
		}
	}
	return true
}
