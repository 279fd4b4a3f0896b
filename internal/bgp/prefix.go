package bgp

import (
	"net/netip"

	"github.com/route-beacon/mrtkit/internal/wire"
)

// NetworkPrefix is a CIDR plus an optional ADD-PATH path identifier. When
// ADD-PATH is not in play PathID is 0 and the pair's identity collapses to
// the prefix alone, per §3.
type NetworkPrefix struct {
	Prefix netip.Prefix
	PathID uint32
}

// HasPathID reports whether this prefix carries a non-zero ADD-PATH
// identifier.
func (p NetworkPrefix) HasPathID() bool { return p.PathID != 0 }

// Equal compares prefix and path id; two NetworkPrefixes with PathID==0 are
// equal iff the prefixes are equal, matching §3's identity rule.
func (p NetworkPrefix) Equal(o NetworkPrefix) bool {
	return p.Prefix == o.Prefix && p.PathID == o.PathID
}

func (p NetworkPrefix) String() string { return p.Prefix.String() }

// DecodePrefix reads one packed prefix (§4.A) for the given IP version,
// optionally preceded by a 4-byte ADD-PATH identifier.
func DecodePrefix(r *wire.Reader, v6 bool, addPath bool) (NetworkPrefix, error) {
	var pathID uint32
	if addPath {
		id, err := r.U32()
		if err != nil {
			return NetworkPrefix{}, err
		}
		pathID = id
	}

	maxBytes := 4
	if v6 {
		maxBytes = 16
	}
	addr, bitLen, err := wire.UnpackPrefix(r, maxBytes)
	if err != nil {
		return NetworkPrefix{}, err
	}

	var ip netip.Addr
	if v6 {
		var a [16]byte
		copy(a[:], addr)
		ip = netip.AddrFrom16(a)
	} else {
		var a [4]byte
		copy(a[:], addr)
		ip = netip.AddrFrom4(a)
	}

	pfx, err := ip.Prefix(bitLen)
	if err != nil {
		return NetworkPrefix{}, wire.NewParseError("invalid prefix length %d: %v", bitLen, err)
	}

	return NetworkPrefix{Prefix: pfx, PathID: pathID}, nil
}

// EncodePrefix is the inverse of DecodePrefix.
func EncodePrefix(w *wire.Writer, p NetworkPrefix, addPath bool) {
	if addPath {
		w.U32(p.PathID)
	}
	addr := p.Prefix.Addr().AsSlice()
	wire.PackPrefix(w, addr, p.Prefix.Bits())
}

// DecodePrefixList reads packed prefixes until the reader is exhausted.
// Per §9's "lenient trailing bytes" note this is used only for sections
// whose own length the caller has already sliced out.
func DecodePrefixList(r *wire.Reader, v6 bool, addPath bool) ([]NetworkPrefix, error) {
	var out []NetworkPrefix
	for r.Len() > 0 {
		p, err := DecodePrefix(r, v6, addPath)
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}
