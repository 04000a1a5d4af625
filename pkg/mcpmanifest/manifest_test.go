package mcpmanifest_test

import (
	"strings"
	"testing"

	"github.com/jmerrifield20/mcptrust/pkg/mcpmanifest"
)

func TestDecode(t *testing.T) {
	doc, err := mcpmanifest.Decode(strings.NewReader(`{"endpoint":"https://example.com/mcp","name":"ex","extra":true}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !doc.HasEndpoint() || doc.Name != "ex" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestDecode_BlankEndpoint(t *testing.T) {
	doc, err := mcpmanifest.Decode(strings.NewReader(`{"endpoint":"   "}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.HasEndpoint() {
		t.Error("blank endpoint must not count")
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, body := range []string{"", "not json", `["endpoint"]`, `{"endpoint": 5}`} {
		if _, err := mcpmanifest.Decode(strings.NewReader(body)); err == nil {
			t.Errorf("Decode(%q): expected error", body)
		}
	}
}

func TestDecode_Oversized(t *testing.T) {
	body := `{"endpoint":"https://example.com","description":"` + strings.Repeat("a", mcpmanifest.MaxWellKnownSize) + `"}`
	if _, err := mcpmanifest.Decode(strings.NewReader(body)); err == nil {
		t.Error("expected error for document larger than the read limit")
	}
}

func TestURL(t *testing.T) {
	if got := mcpmanifest.URL("example.com"); got != "https://example.com/.well-known/mcp" {
		t.Errorf("URL = %q", got)
	}
}
