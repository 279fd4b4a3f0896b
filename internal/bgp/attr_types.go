package bgp

import "net/netip"

// AttrType is a BGP path attribute type code (§4.C, IANA registry).
type AttrType uint8

const (
	AttrOrigin           AttrType = 1
	AttrAsPath           AttrType = 2
	AttrNextHop          AttrType = 3
	AttrMultiExitDisc    AttrType = 4
	AttrLocalPref        AttrType = 5
	AttrAtomicAggregate  AttrType = 6
	AttrAggregator       AttrType = 7
	AttrCommunities      AttrType = 8
	AttrOriginatorId     AttrType = 9
	AttrClusterList      AttrType = 10
	AttrMpReachNlri      AttrType = 14
	AttrMpUnreachNlri    AttrType = 15
	AttrExtCommunities   AttrType = 16
	AttrAs4Path          AttrType = 17
	AttrAs4Aggregator    AttrType = 18
	AttrIpv6ExtCommunities AttrType = 25
	AttrLargeCommunities AttrType = 32
	AttrOnlyToCustomer   AttrType = 35
	AttrDevelopment      AttrType = 255
)

// Attribute flag bits (§3/§4.C).
const (
	FlagOptional       uint8 = 0x80
	FlagTransitive     uint8 = 0x40
	FlagPartial        uint8 = 0x20
	FlagExtendedLength uint8 = 0x10
)

// deprecatedTypes lists the IANA-deprecated attribute type codes (§4.C).
var deprecatedTypes = map[uint8]bool{
	11: true, 12: true, 13: true, 19: true, 20: true, 21: true,
	28: true, 30: true, 31: true, 129: true, 241: true, 242: true, 243: true,
}

// Origin values (ORIGIN attribute, type 1).
type OriginType uint8

const (
	OriginIgp        OriginType = 0
	OriginEgp        OriginType = 1
	OriginIncomplete OriginType = 2
)

func (o OriginType) String() string {
	switch o {
	case OriginIgp:
		return "IGP"
	case OriginEgp:
		return "EGP"
	case OriginIncomplete:
		return "INCOMPLETE"
	default:
		return "UNKNOWN"
	}
}

// AttrValue is implemented by every concrete attribute value shape. The set
// is closed by convention: every IANA-registered attribute this codec
// understands gets its own type here, plus Unknown/Deprecated as catch-alls
// for everything else (§3, §9 "avoid open hierarchies").
type AttrValue interface {
	attrValue()
}

type OriginValue struct{ Origin OriginType }
type AsPathValue struct {
	Path  AsPath
	Is4Byte bool // true if the ASNs are 4 bytes wide on the wire (always for AS4_PATH; for AS_PATH when decoded with Asn4)
}
type NextHopValue struct{ Addr netip.Addr }
type MultiExitDiscValue struct{ Value uint32 }
type LocalPrefValue struct{ Value uint32 }
type AtomicAggregateValue struct{}
type AggregatorValue struct {
	Asn     Asn
	Addr    netip.Addr
	Is4Byte bool
}
type CommunitiesValue struct{ Communities []Community }
type ExtendedCommunitiesValue struct{ Communities []ExtCommunity }
type Ipv6ExtendedCommunitiesValue struct{ Communities []Ipv6ExtCommunity }
type LargeCommunitiesValue struct{ Communities []LargeCommunity }
type OriginatorIdValue struct{ Addr netip.Addr }
type ClusterListValue struct{ Ids []netip.Addr }
type MpReachNlriValue struct {
	Afi      uint16
	Safi     uint8
	NextHops []netip.Addr // 1 entry normally, 2 for v6 global+link-local
	Nlri     []NetworkPrefix
}
type MpUnreachNlriValue struct {
	Afi  uint16
	Safi uint8
	Nlri []NetworkPrefix
}
type OnlyToCustomerValue struct{ Asn Asn }
type DevelopmentValue struct{ Raw []byte }
type DeprecatedValue struct {
	AttrType uint8
	Raw      []byte
}
type UnknownValue struct {
	AttrType uint8
	Raw      []byte
}

func (OriginValue) attrValue()                   {}
func (AsPathValue) attrValue()                   {}
func (NextHopValue) attrValue()                  {}
func (MultiExitDiscValue) attrValue()            {}
func (LocalPrefValue) attrValue()                {}
func (AtomicAggregateValue) attrValue()          {}
func (AggregatorValue) attrValue()               {}
func (CommunitiesValue) attrValue()              {}
func (ExtendedCommunitiesValue) attrValue()      {}
func (Ipv6ExtendedCommunitiesValue) attrValue()  {}
func (LargeCommunitiesValue) attrValue()         {}
func (OriginatorIdValue) attrValue()             {}
func (ClusterListValue) attrValue()              {}
func (MpReachNlriValue) attrValue()              {}
func (MpUnreachNlriValue) attrValue()            {}
func (OnlyToCustomerValue) attrValue()           {}
func (DevelopmentValue) attrValue()              {}
func (DeprecatedValue) attrValue()               {}
func (UnknownValue) attrValue()                  {}

// Attribute is one decoded (flags, type, value) TLV.
type Attribute struct {
	Flags    uint8
	TypeCode AttrType
	Value    AttrValue
}

// Attributes is the small ordered container of path attributes a BGP
// UPDATE or RIB entry carries (§3).
type Attributes struct {
	List []Attribute
}

func (a *Attributes) add(flags uint8, typeCode AttrType, v AttrValue) {
	a.List = append(a.List, Attribute{Flags: flags, TypeCode: typeCode, Value: v})
}

// find returns the first attribute of the given type, or nil.
func (a *Attributes) find(t AttrType) *Attribute {
	for i := range a.List {
		if a.List[i].TypeCode == t {
			return &a.List[i]
		}
	}
	return nil
}

// findAll returns every attribute with the given type code, in order.
func (a *Attributes) findAll(t AttrType) []*Attribute {
	var out []*Attribute
	for i := range a.List {
		if a.List[i].TypeCode == t {
			out = append(out, &a.List[i])
		}
	}
	return out
}

// Origin returns the decoded ORIGIN value, if present.
func (a *Attributes) Origin() (OriginType, bool) {
	if at := a.find(AttrOrigin); at != nil {
		return at.Value.(OriginValue).Origin, true
	}
	return 0, false
}

// AsPath returns the canonical AS path: when both AS_PATH and AS4_PATH are
// present it returns the AS4-reconciled path (§3 "canonical value among
// AS/AS4 pairs, preferring the AS4 variant"); otherwise whichever of the
// two is present.
func (a *Attributes) AsPath() (AsPath, bool) {
	var plain, as4 *AsPathValue
	for i := range a.List {
		switch a.List[i].TypeCode {
		case AttrAsPath:
			v := a.List[i].Value.(AsPathValue)
			plain = &v
		case AttrAs4Path:
			v := a.List[i].Value.(AsPathValue)
			as4 = &v
		}
	}
	switch {
	case plain != nil && as4 != nil:
		return MergeAs4Path(plain.Path, as4.Path), true
	case as4 != nil:
		return as4.Path, true
	case plain != nil:
		return plain.Path, true
	default:
		return AsPath{}, false
	}
}

// NextHop returns the NEXT_HOP attribute's address, if present.
func (a *Attributes) NextHop() (netip.Addr, bool) {
	if at := a.find(AttrNextHop); at != nil {
		return at.Value.(NextHopValue).Addr, true
	}
	return netip.Addr{}, false
}

// Med returns MULTI_EXIT_DISC, if present.
func (a *Attributes) Med() (uint32, bool) {
	if at := a.find(AttrMultiExitDisc); at != nil {
		return at.Value.(MultiExitDiscValue).Value, true
	}
	return 0, false
}

// LocalPref returns LOCAL_PREF, if present.
func (a *Attributes) LocalPref() (uint32, bool) {
	if at := a.find(AttrLocalPref); at != nil {
		return at.Value.(LocalPrefValue).Value, true
	}
	return 0, false
}

// AtomicAggregate reports whether ATOMIC_AGGREGATE is present.
func (a *Attributes) AtomicAggregate() bool {
	return a.find(AttrAtomicAggregate) != nil
}

// Aggregator returns the canonical AGGREGATOR/AS4_AGGREGATOR pair,
// preferring the AS4 variant (§3).
func (a *Attributes) Aggregator() (AggregatorValue, bool) {
	var plain, as4 *AggregatorValue
	for i := range a.List {
		switch a.List[i].TypeCode {
		case AttrAggregator:
			v := a.List[i].Value.(AggregatorValue)
			plain = &v
		case AttrAs4Aggregator:
			v := a.List[i].Value.(AggregatorValue)
			as4 = &v
		}
	}
	if as4 != nil {
		return *as4, true
	}
	if plain != nil {
		return *plain, true
	}
	return AggregatorValue{}, false
}

// OnlyToCustomer returns the OTC attribute's ASN, if present (RFC 9234).
func (a *Attributes) OnlyToCustomer() (Asn, bool) {
	if at := a.find(AttrOnlyToCustomer); at != nil {
		return at.Value.(OnlyToCustomerValue).Asn, true
	}
	return Asn{}, false
}

// Communities returns every plain community, flattened across any repeated
// COMMUNITIES attribute instances (malformed but observed in the wild).
func (a *Attributes) Communities() []Community {
	var out []Community
	for _, at := range a.findAll(AttrCommunities) {
		out = append(out, at.Value.(CommunitiesValue).Communities...)
	}
	return out
}

// ExtendedCommunities returns every extended community.
func (a *Attributes) ExtendedCommunities() []ExtCommunity {
	var out []ExtCommunity
	for _, at := range a.findAll(AttrExtCommunities) {
		out = append(out, at.Value.(ExtendedCommunitiesValue).Communities...)
	}
	return out
}

// Ipv6ExtendedCommunities returns every IPv6 extended community.
func (a *Attributes) Ipv6ExtendedCommunities() []Ipv6ExtCommunity {
	var out []Ipv6ExtCommunity
	for _, at := range a.findAll(AttrIpv6ExtCommunities) {
		out = append(out, at.Value.(Ipv6ExtendedCommunitiesValue).Communities...)
	}
	return out
}

// LargeCommunities returns every large community.
func (a *Attributes) LargeCommunities() []LargeCommunity {
	var out []LargeCommunity
	for _, at := range a.findAll(AttrLargeCommunities) {
		out = append(out, at.Value.(LargeCommunitiesValue).Communities...)
	}
	return out
}

// MpReachNlri returns the MP_REACH_NLRI attribute, if present.
func (a *Attributes) MpReachNlri() (MpReachNlriValue, bool) {
	if at := a.find(AttrMpReachNlri); at != nil {
		return at.Value.(MpReachNlriValue), true
	}
	return MpReachNlriValue{}, false
}

// MpUnreachNlri returns the MP_UNREACH_NLRI attribute, if present.
func (a *Attributes) MpUnreachNlri() (MpUnreachNlriValue, bool) {
	if at := a.find(AttrMpUnreachNlri); at != nil {
		return at.Value.(MpUnreachNlriValue), true
	}
	return MpUnreachNlriValue{}, false
}

// Unknowns returns every Unknown-variant attribute captured during decode.
func (a *Attributes) Unknowns() []UnknownValue {
	var out []UnknownValue
	for _, at := range a.List {
		if v, ok := at.Value.(UnknownValue); ok {
			out = append(out, v)
		}
	}
	return out
}

// Deprecateds returns every Deprecated-variant attribute captured during
// decode.
func (a *Attributes) Deprecateds() []DeprecatedValue {
	var out []DeprecatedValue
	for _, at := range a.List {
		if v, ok := at.Value.(DeprecatedValue); ok {
			out = append(out, v)
		}
	}
	return out
}
