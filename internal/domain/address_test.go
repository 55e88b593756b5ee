package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseAddressClassification(t *testing.T) {
	cases := []struct {
		token     string
		kind      AddressKind
		canonical string
	}{
		{"10.0.0.0/8", KindIPv4Network, "10.0.0.0/8"},
		{"192.0.2.7", KindIPv4Host, "192.0.2.7"},
		{"192.0.2.7/32", KindIPv4Network, "192.0.2.7/32"},
		{"2001:db8::/32", KindIPv6Network, "2001:db8::/32"},
		{"2001:0db8:0000::0001", KindIPv6Network, "2001:db8::1/128"},
		{"::1", KindIPv6Network, "::1/128"},
	}

	for _, tc := range cases {
		got, err := ParseAddress(tc.token)
		if err != nil {
			t.Fatalf("ParseAddress(%q) returned error: %v", tc.token, err)
		}
		if got.Kind() != tc.kind {
			t.Errorf("ParseAddress(%q).Kind() = %v, want %v", tc.token, got.Kind(), tc.kind)
		}
		if got.String() != tc.canonical {
			t.Errorf("ParseAddress(%q).String() = %q, want %q", tc.token, got.String(), tc.canonical)
		}
	}
}

func TestParseAddressRejectsNonAddresses(t *testing.T) {
	for _, token := range []string{"", "example.com", "10.0.0.1/8", "300.1.1.1", "1.2.3", "fe80::1%eth0", "10.0.0.0/33", "#"} {
		if _, err := ParseAddress(token); !errors.Is(err, ErrNotAnAddress) {
			t.Errorf("ParseAddress(%q) error = %v, want ErrNotAnAddress", token, err)
		}
	}
}

func TestAddressHostAndNetworkAreDistinct(t *testing.T) {
	host := MustParseAddress("198.51.100.1")
	network := MustParseAddress("198.51.100.1/32")
	if host == network {
		t.Fatal("host and /32 network should not compare equal")
	}
}

func TestAddressTextRoundTrip(t *testing.T) {
	original := MustParseAddress("2001:db8::1")

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("json.Marshal returned error: %v", err)
	}
	if string(data) != `"2001:db8::1/128"` {
		t.Fatalf("json.Marshal = %s, want \"2001:db8::1/128\"", data)
	}

	var decoded Address
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal returned error: %v", err)
	}
	if decoded != original {
		t.Fatalf("decoded %v, want %v", decoded, original)
	}
}

func TestAddressScanAndValue(t *testing.T) {
	var a Address
	if err := a.Scan([]byte("203.0.113.0/24")); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if a.Kind() != KindIPv4Network {
		t.Fatalf("Scan kind = %v, want %v", a.Kind(), KindIPv4Network)
	}

	v, err := a.Value()
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if v != "203.0.113.0/24" {
		t.Fatalf("Value = %v, want 203.0.113.0/24", v)
	}

	if err := a.Scan(42); err == nil {
		t.Fatal("expected error scanning an int, got nil")
	}
}

func TestParseFeedName(t *testing.T) {
	for _, name := range FeedNames() {
		if _, err := ParseFeedName(string(name)); err != nil {
			t.Errorf("ParseFeedName(%q) returned error: %v", name, err)
		}
	}
	if _, err := ParseFeedName("SSH_CLIENT"); !errors.Is(err, ErrUnknownFeedName) {
		t.Fatalf("ParseFeedName(SSH_CLIENT) error = %v, want ErrUnknownFeedName", err)
	}
}
