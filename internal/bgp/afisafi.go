package bgp

// Address family identifiers (AFI, IANA registry) and subsequent address
// family identifiers (SAFI) used by MP_REACH_NLRI/MP_UNREACH_NLRI and by
// the MRT RIB dump subtypes that carry an explicit family (§4.A/§4.C).
const (
	AfiIpv4 uint16 = 1
	AfiIpv6 uint16 = 2
)

const (
	SafiUnicast   uint8 = 1
	SafiMulticast uint8 = 2
)

// afiIsV6 reports whether prefixes under this AFI pack as 16-byte
// addresses rather than 4-byte.
func afiIsV6(afi uint16) bool { return afi == AfiIpv6 }
