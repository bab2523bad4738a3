package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/caplock/id"
)

func TestNewCapabilityID(t *testing.T) {
	got := id.NewCapabilityID().String()
	if !strings.HasPrefix(got, "cap_") {
		t.Errorf("expected prefix %q, got %q", "cap_", got)
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixCapability)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixCapability {
		t.Errorf("expected prefix %q, got %q", id.PrefixCapability, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	orig := id.NewCapabilityID()
	parsed, err := id.ParseCapabilityID(orig.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("round trip mismatch: %q != %q", parsed.String(), orig.String())
	}
}

func TestParseRejectsWrongPrefix(t *testing.T) {
	capID := id.NewCapabilityID()
	if _, err := id.ParseWithPrefix(capID.String(), "perm"); err == nil {
		t.Fatal("expected error for mismatched prefix")
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Fatal("expected error for empty string")
	}
}

func TestUniqueness(t *testing.T) {
	seen := map[string]struct{}{}
	for range 100 {
		s := id.NewCapabilityID().String()
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate ID generated: %s", s)
		}
		seen[s] = struct{}{}
	}
}
