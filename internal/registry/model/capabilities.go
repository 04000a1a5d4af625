package model

import (
	"fmt"
	"sort"
	"strings"
)

// Core capability tags. Adding or removing any of these on a registration
// always forces a fresh ownership proof.
const (
	CapFileSystem     = "file_system"
	CapDatabase       = "database"
	CapNetwork        = "network"
	CapAuthentication = "authentication"
	CapSystem         = "system"
)

// CoreCapabilities is the fixed set of high-privilege capability tags.
var CoreCapabilities = []string{CapFileSystem, CapDatabase, CapNetwork, CapAuthentication, CapSystem}

// IsCoreCapability reports whether tag is one of CoreCapabilities.
func IsCoreCapability(tag string) bool {
	for _, c := range CoreCapabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// ValidateCapability validates the format of a free-form capability tag.
//
// Rules:
//   - Non-empty after trimming, max 64 characters.
//   - Letters, digits, '_', '-', '.' and ':' only.
func ValidateCapability(tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return fmt.Errorf("capability is empty")
	}
	if len(tag) > 64 {
		return fmt.Errorf("capability %q too long (max 64 characters)", tag)
	}
	for _, r := range tag {
		if !isTagRune(r) {
			return fmt.Errorf("capability %q may only contain letters, digits, '_', '-', '.' and ':'", tag)
		}
	}
	return nil
}

func isTagRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.' || r == ':'
}

// NormalizeCapabilities trims, drops empties, de-duplicates and sorts tags.
// Comparison stays case-sensitive.
func NormalizeCapabilities(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ErrValidation is returned by service methods when the caller supplies invalid
// input. Handlers should convert this to HTTP 400 rather than 500.
type ErrValidation struct{ Msg string }

func (e *ErrValidation) Error() string { return e.Msg }
