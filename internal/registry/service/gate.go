package service

import (
	"sort"
	"strings"

	"github.com/jmerrifield20/mcptrust/internal/registry/model"
)

// MaxCapabilityChange is the share of the capability union that may change
// without a fresh ownership proof.
const MaxCapabilityChange = 0.5

// CapabilityDiff describes how a proposed capability set differs from the current one.
type CapabilityDiff struct {
	Added       []string `json:"added"`
	Removed     []string `json:"removed"`
	CoreFlipped []string `json:"core_flipped"`

	// ChangePercentage is 1 - |intersection|/|union|, or 0 when both sets are empty.
	ChangePercentage float64 `json:"change_percentage"`
}

// CapabilityChange compares two capability lists as sets. Tags are trimmed and
// compared case-sensitively.
func CapabilityChange(current, proposed []string) CapabilityDiff {
	cur := toSet(current)
	next := toSet(proposed)

	var d CapabilityDiff
	for tag := range next {
		if _, ok := cur[tag]; !ok {
			d.Added = append(d.Added, tag)
		}
	}
	for tag := range cur {
		if _, ok := next[tag]; !ok {
			d.Removed = append(d.Removed, tag)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)

	for _, tag := range model.CoreCapabilities {
		_, before := cur[tag]
		_, after := next[tag]
		if before != after {
			d.CoreFlipped = append(d.CoreFlipped, tag)
		}
	}

	intersection := len(cur) - len(d.Removed)
	union := len(cur) + len(d.Added)
	if union > 0 {
		d.ChangePercentage = 1 - float64(intersection)/float64(union)
	}
	return d
}

// RequiresVerification reports whether the diff alone warrants a fresh proof.
func (d CapabilityDiff) RequiresVerification() bool {
	return len(d.CoreFlipped) > 0 || d.ChangePercentage > MaxCapabilityChange
}

// RequiresOwnershipVerification decides whether update may only be applied
// after the claimant proves current control of the domain. Rules, first match wins:
//  1. the endpoint is present and differs from the current one;
//  2. the capabilities are present and a core capability flips membership,
//     or more than half of the capability union changes.
//
// Everything else is cosmetic and passes without verification.
func RequiresOwnershipVerification(current *model.RegistrationRecord, update *model.UpdateRequest) bool {
	if update == nil {
		return false
	}
	var cur model.RegistrationRecord
	if current != nil {
		cur = *current
	}

	if update.Endpoint != nil && *update.Endpoint != cur.Endpoint {
		return true
	}
	if update.Capabilities != nil {
		return CapabilityChange(cur.Capabilities, *update.Capabilities).RequiresVerification()
	}
	return false
}

func toSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}
