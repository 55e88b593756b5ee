package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAddressIDIsDeterministic(t *testing.T) {
	cases := map[string]string{
		"1.2.3.4":     "14ba499e-bca8-5eda-813a-df703060a4a7",
		"10.0.0.0/8":  "88e9a4b6-156d-5bb1-8e64-faebed039820",
		"2001:db8::1": "33c9a573-8506-569f-a514-db5934e97437",
	}

	for token, want := range cases {
		address := MustParseAddress(token)
		first := AddressID(DefaultAddressNamespace, address)
		second := AddressID(DefaultAddressNamespace, MustParseAddress(token))
		if first != second {
			t.Fatalf("AddressID(%q) not stable: %s vs %s", token, first, second)
		}
		if first.String() != want {
			t.Errorf("AddressID(%q) = %s, want %s", token, first, want)
		}
		if first.Version() != 5 {
			t.Errorf("AddressID(%q) version = %d, want 5", token, first.Version())
		}
	}
}

func TestAddressIDDependsOnNamespace(t *testing.T) {
	address := MustParseAddress("1.2.3.4")
	other := uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
	if AddressID(DefaultAddressNamespace, address) == AddressID(other, address) {
		t.Fatal("AddressID should differ between namespaces")
	}
}

func TestNewBlocklistRecordNormalizesTimes(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	lastSeen := time.Date(2024, 5, 1, 12, 30, 45, 987654321, loc)
	firstSeen := time.Date(2024, 4, 30, 8, 0, 0, 0, loc)

	record := NewBlocklistRecord(DefaultAddressNamespace, MustParseAddress("192.0.2.1"), SSHClient, "https://feeds.example/ssh.txt", &firstSeen, lastSeen)

	if record.LastSeen.Location() != time.UTC {
		t.Fatalf("LastSeen location = %v, want UTC", record.LastSeen.Location())
	}
	if want := time.Date(2024, 5, 1, 10, 30, 45, 0, time.UTC); !record.LastSeen.Equal(want) || record.LastSeen.Nanosecond() != 0 {
		t.Fatalf("LastSeen = %v, want %v", record.LastSeen, want)
	}
	if record.FirstSeen == nil || record.FirstSeen.Location() != time.UTC {
		t.Fatalf("FirstSeen = %v, want UTC value", record.FirstSeen)
	}
}

func TestNormalizeTimesConvertsLoadedValues(t *testing.T) {
	zone := time.FixedZone("CEST", 2*60*60)
	firstSeen := time.Date(2024, 6, 1, 14, 0, 0, 0, zone)
	record := BlocklistRecord{LastSeen: time.Date(2024, 6, 2, 2, 30, 0, 0, zone), FirstSeen: &firstSeen}

	record.NormalizeTimes()

	if record.LastSeen.Location() != time.UTC || record.LastSeen.Hour() != 0 {
		t.Fatalf("LastSeen = %v, want 00:30 UTC", record.LastSeen)
	}
	if record.FirstSeen.Location() != time.UTC || record.FirstSeen.Hour() != 12 {
		t.Fatalf("FirstSeen = %v, want 12:00 UTC", record.FirstSeen)
	}
	if firstSeen.Location() != zone {
		t.Fatal("NormalizeTimes modified the caller's time value")
	}

	empty := BlocklistRecord{}
	empty.NormalizeTimes()
	if empty.FirstSeen != nil {
		t.Fatal("NormalizeTimes set a missing FirstSeen")
	}
}

func TestEventMessageRoundTrip(t *testing.T) {
	firstSeen := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	record := NewBlocklistRecord(DefaultAddressNamespace, MustParseAddress("2001:db8::1"), VNCRemoteFrameBuffer, "https://feeds.example/vnc.txt", &firstSeen, time.Date(2024, 6, 7, 8, 9, 10, 0, time.UTC))
	asn := 64500
	record.ASN = &asn

	data, err := EncodeEventMessage(EventMessage{Record: record, Source: "dataplane"})
	if err != nil {
		t.Fatalf("EncodeEventMessage returned error: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if raw["last_seen"] != "2024-06-07T08:09:10+00:00" {
		t.Fatalf("last_seen = %v, want 2024-06-07T08:09:10+00:00", raw["last_seen"])
	}
	if raw["ip_address"] != "2001:db8::1/128" {
		t.Fatalf("ip_address = %v, want 2001:db8::1/128", raw["ip_address"])
	}
	if v, ok := raw["asn_text"]; !ok || v != nil {
		t.Fatalf("asn_text = %v (present %v), want null", v, ok)
	}

	decoded, err := DecodeEventMessage(data)
	if err != nil {
		t.Fatalf("DecodeEventMessage returned error: %v", err)
	}
	if decoded.Source != "dataplane" {
		t.Fatalf("Source = %q, want dataplane", decoded.Source)
	}
	got := decoded.Record
	if got.AddressID != record.AddressID {
		t.Fatalf("AddressID = %s, want %s", got.AddressID, record.AddressID)
	}
	if got.IPAddress.String() != record.IPAddress.String() {
		t.Fatalf("IPAddress = %s, want %s", got.IPAddress, record.IPAddress)
	}
	if !got.LastSeen.Equal(record.LastSeen) || got.LastSeen.Location() != time.UTC {
		t.Fatalf("LastSeen = %v, want %v in UTC", got.LastSeen, record.LastSeen)
	}
	if got.FirstSeen == nil || !got.FirstSeen.Equal(firstSeen) {
		t.Fatalf("FirstSeen = %v, want %v", got.FirstSeen, firstSeen)
	}
	if got.ASN == nil || *got.ASN != asn {
		t.Fatalf("ASN = %v, want %d", got.ASN, asn)
	}
}

func TestDecodeEventMessageRejectsUnknownFeed(t *testing.T) {
	payload := `{"address_id":"14ba499e-bca8-5eda-813a-df703060a4a7","ip_address":"1.2.3.4","feed_name":"bogus","feed_url":"","first_seen":null,"last_seen":"2024-01-01T00:00:00+00:00","asn":null,"asn_text":null,"source":"x"}`
	if _, err := DecodeEventMessage([]byte(payload)); err == nil || !strings.Contains(err.Error(), "unknown feed name") {
		t.Fatalf("DecodeEventMessage error = %v, want unknown feed name", err)
	}
}
