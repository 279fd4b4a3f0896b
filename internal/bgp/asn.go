package bgp

import "fmt"

// Well-known ASN constants (§3).
const (
	AsnReserved uint32 = 0
	AsTrans     uint32 = 23456 // RFC 6793 placeholder for a 4-byte ASN in a 2-byte field
)

// Asn is a 32-bit autonomous system number tagged with the width it was
// decoded as. The tag exists purely so that re-encoding a record that
// carried a 2-byte ASN produces the same 2-byte wire form — equality and
// hashing ignore it (two Asns with the same numeric value are equal
// regardless of how they arrived on the wire).
type Asn struct {
	Value  uint32
	Is4Byte bool
}

// NewAsn2 builds an Asn that originated as a 2-byte value.
func NewAsn2(v uint16) Asn { return Asn{Value: uint32(v), Is4Byte: false} }

// NewAsn4 builds an Asn that originated as a 4-byte value.
func NewAsn4(v uint32) Asn { return Asn{Value: v, Is4Byte: true} }

// Equal compares two Asns by numeric value only; the width tag is encoding
// metadata, not part of identity.
func (a Asn) Equal(b Asn) bool { return a.Value == b.Value }

// Fits16 reports whether Value can be represented in a 2-byte ASN field
// (used by the encoder when downgrading a 4-byte-tagged ASN isn't legal
// but a plain fit-check is still useful for diagnostics).
func (a Asn) Fits16() bool { return a.Value <= 0xFFFF }

func (a Asn) String() string { return fmt.Sprintf("%d", a.Value) }

// IsReserved reports whether the ASN is 0 or falls in a documentation
// range (RFC 5398 64496-64511, 65536-65551) or AS_TRANS.
func (a Asn) IsReserved() bool {
	switch {
	case a.Value == AsnReserved:
		return true
	case a.Value == AsTrans:
		return true
	case a.Value >= 64496 && a.Value <= 64511:
		return true
	case a.Value >= 65536 && a.Value <= 65551:
		return true
	default:
		return false
	}
}
