package core

// Address identification, grounded on the teacher's address_zero.go
// sentinel-value idiom but re-typed as a validated string (spec §3) rather
// than a fixed [20]byte array, since the wire format is the literal
// "smartX"+40-hex-digit string, not a binary key hash.

import (
	"fmt"
	"strings"

	"smartxchain/pkg/cryptoutil"
	"smartxchain/pkg/errs"
)

// Address is a validated "smartX"+40-hex-digit account identifier.
type Address string

// AddressSystem is the reserved address that marks protocol-originated
// transfers: rewards and genesis allocations (spec §3).
const AddressSystem Address = Address(cryptoutil.AddressPrefix + "0000000000000000000000000000000000000000")

// NewAddress validates and returns s as an Address.
func NewAddress(s string) (Address, error) {
	if !cryptoutil.ValidAddress(s) {
		return "", errs.New(errs.KindInvalidAddress, fmt.Sprintf("malformed address %q", s))
	}
	return Address(s), nil
}

// Valid reports whether a satisfies the address grammar.
func (a Address) Valid() bool {
	return cryptoutil.ValidAddress(string(a))
}

// IsSystem reports whether a is the reserved system address.
func (a Address) IsSystem() bool {
	return a == AddressSystem
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return string(a)
}

// Equal performs a case-insensitive comparison, since hex digits may be
// supplied in either case per the address grammar.
func (a Address) Equal(b Address) bool {
	return strings.EqualFold(string(a), string(b))
}
