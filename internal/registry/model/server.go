package model

import (
	"time"

	"github.com/google/uuid"
)

// Verification methods reported in VerificationResult.Method.
const (
	MethodDNSTXT        = "dns_txt"
	MethodWellKnown     = "well_known"
	MethodServiceRecord = "service_record"
	MethodNone          = "none"
)

// RegistrationRecord is a registered MCP server as seen by the verification
// engine. The registry owns the record; the engine only reads it and patches
// the verification-relevant fields.
type RegistrationRecord struct {
	ID           uuid.UUID  `json:"id"                     db:"id"`
	Domain       string     `json:"domain"                 db:"domain"`
	Endpoint     string     `json:"endpoint,omitempty"     db:"endpoint"`
	Capabilities []string   `json:"capabilities"           db:"capabilities"`
	ContactEmail string     `json:"contact_email,omitempty" db:"contact_email"`
	Description  string     `json:"description,omitempty"  db:"description"`
	DNSVerified  bool       `json:"dns_verified"           db:"dns_verified"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"  db:"verified_at"`
	CreatedAt    time.Time  `json:"created_at"             db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"             db:"updated_at"`
}

// UpdateRequest is a proposed change to a registration. A nil field means
// "no change requested".
type UpdateRequest struct {
	Endpoint     *string   `json:"endpoint,omitempty"`
	Capabilities *[]string `json:"capabilities,omitempty"`
	ContactEmail *string   `json:"contact_email,omitempty"`
	Description  *string   `json:"description,omitempty"`
}

// Empty reports whether the request asks for no change at all.
func (u *UpdateRequest) Empty() bool {
	return u == nil || (u.Endpoint == nil && u.Capabilities == nil && u.ContactEmail == nil && u.Description == nil)
}

// Fields names the JSON fields the request sets, in declaration order.
func (u *UpdateRequest) Fields() []string {
	fields := []string{}
	if u == nil {
		return fields
	}
	if u.Endpoint != nil {
		fields = append(fields, "endpoint")
	}
	if u.Capabilities != nil {
		fields = append(fields, "capabilities")
	}
	if u.ContactEmail != nil {
		fields = append(fields, "contact_email")
	}
	if u.Description != nil {
		fields = append(fields, "description")
	}
	return fields
}

// ServerPatch is what the engine writes through to the registry. Nil fields
// are left untouched.
type ServerPatch struct {
	Endpoint     *string
	Capabilities []string // nil = unchanged
	ContactEmail *string
	Description  *string
	DNSVerified  *bool
	VerifiedAt   *time.Time
}

// PatchFromUpdate copies the requested fields of u into a ServerPatch.
func PatchFromUpdate(u *UpdateRequest) ServerPatch {
	p := ServerPatch{
		Endpoint:     u.Endpoint,
		ContactEmail: u.ContactEmail,
		Description:  u.Description,
	}
	if u.Capabilities != nil {
		p.Capabilities = NormalizeCapabilities(*u.Capabilities)
		if p.Capabilities == nil {
			p.Capabilities = []string{}
		}
	}
	return p
}

// Apply returns a copy of r with p applied.
func (p ServerPatch) Apply(r RegistrationRecord) RegistrationRecord {
	if p.Endpoint != nil {
		r.Endpoint = *p.Endpoint
	}
	if p.Capabilities != nil {
		r.Capabilities = append([]string(nil), p.Capabilities...)
	}
	if p.ContactEmail != nil {
		r.ContactEmail = *p.ContactEmail
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.DNSVerified != nil {
		r.DNSVerified = *p.DNSVerified
	}
	if p.VerifiedAt != nil {
		t := *p.VerifiedAt
		r.VerifiedAt = &t
	}
	return r
}

// VerificationResult is the outcome of a current-ownership check.
type VerificationResult struct {
	Verified bool   `json:"verified"`
	Method   string `json:"method"`
	Details  string `json:"details"`
}

// UpdateResponse is returned to callers of the update-with-verification flow.
type UpdateResponse struct {
	Success              bool                `json:"success"`
	VerificationRequired bool                `json:"verification_required,omitempty"`
	Challenge            *OwnershipChallenge `json:"challenge,omitempty"`
	Verification         *VerificationResult `json:"verification,omitempty"`
	Server               *RegistrationRecord `json:"server,omitempty"`
	Message              string              `json:"message"`
}
