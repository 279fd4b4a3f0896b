// Package bgpelem flattens MRT/BGP records into BgpElem: one row per
// (prefix, peer) combination, the unit the filter engine and the elem
// iterator operate on. A RIB dump with 50 peers announcing the same
// prefix becomes 50 elems; a BGP UPDATE withdrawing 3 prefixes becomes 3
// withdraw elems.
package bgpelem

import (
	"net/netip"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/mrtformat"
)

// ElemType distinguishes a route announcement from a withdrawal.
type ElemType uint8

const (
	ElemAnnounce ElemType = iota
	ElemWithdraw
)

func (t ElemType) String() string {
	if t == ElemWithdraw {
		return "WITHDRAW"
	}
	return "ANNOUNCE"
}

// BgpElem is one flattened (prefix, peer, path-attributes) observation.
type BgpElem struct {
	Timestamp        float64
	ElemType         ElemType
	PeerIp           netip.Addr
	PeerAsn          bgp.Asn
	Prefix           bgp.NetworkPrefix
	NextHop          *netip.Addr
	AsPath           *bgp.AsPath
	Origin           *bgp.OriginType
	LocalPref        *uint32
	Med              *uint32
	Communities      []bgp.Community
	ExtCommunities   []bgp.ExtCommunity
	LargeCommunities []bgp.LargeCommunity
	AtomicAggregate  bool
	Aggregator       *bgp.AggregatorValue
	OnlyToCustomer   *bgp.Asn
}

// OriginAsns returns the origin ASN(s) of the elem's AS path, or nil if
// the elem has no path (a bare withdrawal).
func (e BgpElem) OriginAsns() []bgp.Asn {
	if e.AsPath == nil {
		return nil
	}
	return e.AsPath.Origin()
}

func fillFromAttributes(e *BgpElem, attrs bgp.Attributes) {
	if origin, ok := attrs.Origin(); ok {
		o := origin
		e.Origin = &o
	}
	if path, ok := attrs.AsPath(); ok {
		p := path
		e.AsPath = &p
	}
	if nh, ok := attrs.NextHop(); ok {
		n := nh
		e.NextHop = &n
	}
	if lp, ok := attrs.LocalPref(); ok {
		v := lp
		e.LocalPref = &v
	}
	if med, ok := attrs.Med(); ok {
		v := med
		e.Med = &v
	}
	e.AtomicAggregate = attrs.AtomicAggregate()
	if agg, ok := attrs.Aggregator(); ok {
		a := agg
		e.Aggregator = &a
	}
	if otc, ok := attrs.OnlyToCustomer(); ok {
		a := otc
		e.OnlyToCustomer = &a
	}
	e.Communities = attrs.Communities()
	e.ExtCommunities = attrs.ExtendedCommunities()
	e.LargeCommunities = attrs.LargeCommunities()
	if mp, ok := attrs.MpReachNlri(); ok && len(mp.NextHops) > 0 && e.NextHop == nil {
		n := mp.NextHops[0]
		e.NextHop = &n
	}
}

// FromRib flattens one TABLE_DUMP_V2 RIB record into one announce elem
// per peer entry, resolving each entry's peer index against table.
func FromRib(ts float64, table mrtformat.PeerIndexTable, rec mrtformat.RibSubtypeRecord) []BgpElem {
	elems := make([]BgpElem, 0, len(rec.Entries))
	for _, entry := range rec.Entries {
		peer, ok := table.Peer(entry.PeerIndex)
		if !ok {
			continue
		}
		e := BgpElem{
			Timestamp: ts,
			ElemType:  ElemAnnounce,
			PeerIp:    peer.IpAddr,
			PeerAsn:   peer.Asn,
			Prefix:    rec.Prefix,
		}
		fillFromAttributes(&e, entry.Attributes)
		elems = append(elems, e)
	}
	return elems
}

// FromTableDump flattens a legacy TABLE_DUMP (v1) record into one
// announce elem.
func FromTableDump(ts float64, rec mrtformat.TableDumpRecord) BgpElem {
	e := BgpElem{
		Timestamp: ts,
		ElemType:  ElemAnnounce,
		PeerIp:    rec.PeerIp,
		PeerAsn:   rec.PeerAsn,
		Prefix:    bgp.NetworkPrefix{Prefix: rec.Prefix},
	}
	fillFromAttributes(&e, rec.Attributes)
	return e
}

// FromBgp4mpMessage flattens a live BGP4MP_MESSAGE UPDATE into its
// constituent elems: one withdraw per withdrawn prefix (plain or via
// MP_UNREACH_NLRI) and one announce per NLRI prefix (plain or via
// MP_REACH_NLRI), all sharing the UPDATE's path attributes. Returns
// (nil, nil) for any non-UPDATE message.
func FromBgp4mpMessage(ts float64, msg mrtformat.Bgp4mpMessage) ([]BgpElem, error) {
	upd, isUpdate, err := msg.Update()
	if err != nil {
		return nil, err
	}
	if !isUpdate {
		return nil, nil
	}
	return fromUpdate(ts, msg.PeerIp, msg.PeerAsn, upd), nil
}

// FromUpdate flattens an already-decoded UPDATE (e.g. from a BMP
// RouteMonitoring message) into its elems.
func FromUpdate(ts float64, peerIp netip.Addr, peerAsn bgp.Asn, upd bgp.UpdateMessage) []BgpElem {
	return fromUpdate(ts, peerIp, peerAsn, upd)
}

func fromUpdate(ts float64, peerIp netip.Addr, peerAsn bgp.Asn, upd bgp.UpdateMessage) []BgpElem {
	var elems []BgpElem

	for _, p := range upd.Withdrawn {
		elems = append(elems, BgpElem{Timestamp: ts, ElemType: ElemWithdraw, PeerIp: peerIp, PeerAsn: peerAsn, Prefix: p})
	}

	hasAnnounce := len(upd.Nlri) > 0
	if hasAnnounce {
		base := BgpElem{Timestamp: ts, ElemType: ElemAnnounce, PeerIp: peerIp, PeerAsn: peerAsn}
		fillFromAttributes(&base, upd.Attributes)
		for _, p := range upd.Nlri {
			e := base
			e.Prefix = p
			elems = append(elems, e)
		}
	}

	if mp, ok := upd.Attributes.MpReachNlri(); ok {
		base := BgpElem{Timestamp: ts, ElemType: ElemAnnounce, PeerIp: peerIp, PeerAsn: peerAsn}
		fillFromAttributes(&base, upd.Attributes)
		for _, p := range mp.Nlri {
			e := base
			e.Prefix = p
			elems = append(elems, e)
		}
	}

	if mp, ok := upd.Attributes.MpUnreachNlri(); ok {
		for _, p := range mp.Nlri {
			elems = append(elems, BgpElem{Timestamp: ts, ElemType: ElemWithdraw, PeerIp: peerIp, PeerAsn: peerAsn, Prefix: p})
		}
	}

	return elems
}
