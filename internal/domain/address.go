package domain

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// AddressKind tags the four address forms a feed line can carry.
type AddressKind uint8

const (
	KindInvalid AddressKind = iota
	KindIPv4Host
	KindIPv4Network
	// KindIPv6Host is part of the variant but never produced by ParseAddress:
	// single IPv6 hosts are classified as /128 networks.
	KindIPv6Host
	KindIPv6Network
)

func (k AddressKind) String() string {
	switch k {
	case KindIPv4Host:
		return "ipv4_host"
	case KindIPv4Network:
		return "ipv4_network"
	case KindIPv6Host:
		return "ipv6_host"
	case KindIPv6Network:
		return "ipv6_network"
	default:
		return "invalid"
	}
}

// IsNetwork reports whether the kind is a CIDR form.
func (k AddressKind) IsNetwork() bool {
	return k == KindIPv4Network || k == KindIPv6Network
}

var ErrNotAnAddress = errors.New("not an address")

// Address is a classified feed address. Host kinds carry a full-length prefix.
// The zero value is invalid. Address is comparable and safe as a map key.
type Address struct {
	kind   AddressKind
	prefix netip.Prefix
}

// ParseAddress classifies a single token. The order is IPv4 CIDR, IPv4 host,
// IPv6 CIDR, IPv6 host (returned as a /128 network). CIDRs with host bits set
// and zoned IPv6 addresses are rejected.
func ParseAddress(token string) (Address, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Address{}, ErrNotAnAddress
	}

	if strings.Contains(token, "/") {
		prefix, err := netip.ParsePrefix(token)
		if err != nil || prefix != prefix.Masked() {
			return Address{}, fmt.Errorf("%w: %q", ErrNotAnAddress, token)
		}
		if prefix.Addr().Is4() {
			return Address{kind: KindIPv4Network, prefix: prefix}, nil
		}
		return Address{kind: KindIPv6Network, prefix: prefix}, nil
	}

	addr, err := netip.ParseAddr(token)
	if err != nil || addr.Zone() != "" {
		return Address{}, fmt.Errorf("%w: %q", ErrNotAnAddress, token)
	}
	if addr.Is4() {
		return Address{kind: KindIPv4Host, prefix: netip.PrefixFrom(addr, 32)}, nil
	}
	return Address{kind: KindIPv6Network, prefix: netip.PrefixFrom(addr, 128)}, nil
}

// MustParseAddress is ParseAddress for literals in tests and defaults.
func MustParseAddress(token string) Address {
	a, err := ParseAddress(token)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) Kind() AddressKind    { return a.kind }
func (a Address) Prefix() netip.Prefix { return a.prefix }
func (a Address) IsValid() bool        { return a.kind != KindInvalid && a.prefix.IsValid() }

// Addr returns the host address, or the first address of a network.
func (a Address) Addr() netip.Addr { return a.prefix.Addr() }

// String returns the canonical form used for identity and persistence.
func (a Address) String() string {
	if !a.IsValid() {
		return ""
	}
	if a.kind.IsNetwork() {
		return a.prefix.String()
	}
	return a.prefix.Addr().String()
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer so records persist the canonical string.
func (a Address) Value() (driver.Value, error) {
	if !a.IsValid() {
		return nil, nil
	}
	return a.String(), nil
}

// Scan implements sql.Scanner.
func (a *Address) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*a = Address{}
		return nil
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	default:
		return fmt.Errorf("domain.Address: unsupported type %T", value)
	}
}
