package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/bgpelem"
)

// writeLine renders one elem as either a pipe-delimited bgpdump-style line
// or a JSON object, matching §6's "one line per element or one JSON
// object per element" output contract.
func writeLine(w io.Writer, e bgpelem.BgpElem, asJSON, pretty bool) error {
	if asJSON {
		return writeJSON(w, e, pretty)
	}
	_, err := fmt.Fprintln(w, formatText(e))
	return err
}

func formatText(e bgpelem.BgpElem) string {
	typ := "A"
	if e.ElemType == bgpelem.ElemWithdraw {
		typ = "W"
	}

	fields := []string{
		typ,
		strconv.FormatFloat(e.Timestamp, 'f', -1, 64),
		e.PeerIp.String(),
		e.PeerAsn.String(),
		e.Prefix.String(),
		asPathField(e.AsPath),
		originField(e.Origin),
		nextHopField(e.NextHop),
		communitiesField(e.Communities),
	}
	return strings.Join(fields, "|")
}

func asPathField(p *bgp.AsPath) string {
	if p == nil {
		return ""
	}
	var parts []string
	for _, seg := range p.Segments {
		asns := make([]string, len(seg.Asns))
		for i, a := range seg.Asns {
			asns[i] = a.String()
		}
		if seg.Type == bgp.AsSet || seg.Type == bgp.AsConfedSet {
			parts = append(parts, "{"+strings.Join(asns, ",")+"}")
		} else {
			parts = append(parts, strings.Join(asns, " "))
		}
	}
	return strings.Join(parts, " ")
}

func originField(o *bgp.OriginType) string {
	if o == nil {
		return ""
	}
	return o.String()
}

func nextHopField(a *netip.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

func communitiesField(cs []bgp.Community) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

func writeJSON(w io.Writer, e bgpelem.BgpElem, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(e)
}
