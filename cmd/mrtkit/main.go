// Command mrtkit decodes an MRT archive (file or URL, optionally
// compressed) into BgpElems and prints them as text or JSON, applying an
// optional set of filters — the thin CLI wrapper described in §6, not
// part of the decoder core itself.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"regexp"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/bgpelem"
	"github.com/route-beacon/mrtkit/internal/filter"
	"github.com/route-beacon/mrtkit/internal/ingest/source"
	"github.com/route-beacon/mrtkit/internal/iter"
)

type options struct {
	jsonOutput  bool
	pretty      bool
	elemsCount  bool
	recordsCount bool
	cacheDir    string

	originAsn   string
	prefix      string
	includeSuper bool
	includeSub   bool
	peerIps     []string
	peerAsn     string
	elemTypeStr string
	tsStart     float64
	tsEnd       float64
	asPathRegex string
}

func main() {
	opts := options{}
	fs := pflag.NewFlagSet("mrtkit", pflag.ContinueOnError)
	fs.BoolVar(&opts.jsonOutput, "json", false, "emit one JSON object per element instead of text")
	fs.BoolVar(&opts.pretty, "pretty", false, "pretty-print JSON output")
	fs.BoolVarP(&opts.elemsCount, "elems-count", "e", false, "print the filtered element count and exit")
	fs.BoolVarP(&opts.recordsCount, "records-count", "r", false, "print the raw record count and exit")
	fs.StringVarP(&opts.cacheDir, "cache-dir", "c", "", "cache downloaded URLs under this directory")
	fs.StringVarP(&opts.originAsn, "origin-asn", "o", "", "filter: origin ASN")
	fs.StringVarP(&opts.prefix, "prefix", "p", "", "filter: prefix (CIDR)")
	fs.BoolVarP(&opts.includeSuper, "include-super", "s", false, "prefix filter also matches containing (super) prefixes")
	fs.BoolVarP(&opts.includeSub, "include-sub", "S", false, "prefix filter also matches contained (sub) prefixes")
	fs.StringArrayVarP(&opts.peerIps, "peer-ip", "j", nil, "filter: peer IP (repeatable)")
	fs.StringVarP(&opts.peerAsn, "peer-asn", "J", "", "filter: peer ASN")
	fs.StringVarP(&opts.elemTypeStr, "elem-type", "m", "", "filter: element type, 'a' (announce) or 'w' (withdraw)")
	fs.Float64VarP(&opts.tsStart, "ts-start", "t", 0, "filter: minimum timestamp")
	fs.Float64VarP(&opts.tsEnd, "ts-end", "T", 0, "filter: maximum timestamp")
	fs.StringVarP(&opts.asPathRegex, "as-path-regex", "a", "", "filter: AS_PATH regular expression")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: mrtkit [flags] FILE")
		os.Exit(1)
	}
	path := fs.Arg(0)

	if err := run(path, opts); err != nil {
		if errors.Is(err, syscall.EPIPE) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "mrtkit:", err)
		os.Exit(1)
	}
}

func run(path string, opts options) error {
	ctx := context.Background()

	resolved, err := resolveCache(ctx, path, opts.cacheDir)
	if err != nil {
		return err
	}

	opened, err := source.Open(ctx, resolved)
	if err != nil {
		return err
	}
	defer opened.Close()

	group, err := buildFilterGroup(opts)
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}

	dec := iter.NewDecoder(opened.Reader)

	if opts.recordsCount {
		n := 0
		for _, err := range dec.Raw() {
			if err != nil {
				return err
			}
			n++
		}
		fmt.Println(n)
		return nil
	}

	if opts.elemsCount {
		n := 0
		for e, err := range dec.Elems() {
			if err != nil {
				return err
			}
			if group.Matches(e) {
				n++
			}
		}
		fmt.Println(n)
		return nil
	}

	out := os.Stdout
	for e, err := range dec.Elems() {
		if err != nil {
			fmt.Fprintln(os.Stderr, "mrtkit: decode error:", err)
			continue
		}
		if !group.Matches(e) {
			continue
		}
		if err := writeLine(out, e, opts.jsonOutput, opts.pretty); err != nil {
			return err
		}
	}
	return nil
}

// buildFilterGroup turns the flag set into a filter.Group. When both
// include-super and include-sub are requested, the prefix predicate fans
// out into two filters sharing every other predicate, ORed together —
// filter.MatchMode has no single "super-and-sub" value, so the
// super+sub combination is expressed as a disjunction of the two modes
// instead of a new predicate type.
func buildFilterGroup(opts options) (filter.Group, error) {
	var shared []filter.Predicate

	if opts.originAsn != "" {
		asn, err := parseAsn(opts.originAsn)
		if err != nil {
			return nil, fmt.Errorf("origin-asn: %w", err)
		}
		shared = append(shared, filter.OriginAsnPredicate{Asn: asn})
	}
	for _, ipStr := range opts.peerIps {
		ip, err := netip.ParseAddr(ipStr)
		if err != nil {
			return nil, fmt.Errorf("peer-ip %q: %w", ipStr, err)
		}
		shared = append(shared, filter.PeerIpPredicate{Ip: ip})
	}
	if opts.peerAsn != "" {
		asn, err := parseAsn(opts.peerAsn)
		if err != nil {
			return nil, fmt.Errorf("peer-asn: %w", err)
		}
		shared = append(shared, filter.PeerAsnPredicate{Asn: asn})
	}
	if opts.elemTypeStr != "" {
		var t bgpelem.ElemType
		switch opts.elemTypeStr {
		case "a":
			t = bgpelem.ElemAnnounce
		case "w":
			t = bgpelem.ElemWithdraw
		default:
			return nil, fmt.Errorf("elem-type: must be 'a' or 'w', got %q", opts.elemTypeStr)
		}
		shared = append(shared, filter.ElemTypePredicate{Type: t})
	}
	if opts.tsStart != 0 {
		shared = append(shared, filter.TsStartPredicate{Ts: opts.tsStart})
	}
	if opts.tsEnd != 0 {
		shared = append(shared, filter.TsEndPredicate{Ts: opts.tsEnd})
	}
	if opts.asPathRegex != "" {
		re, err := regexp.Compile(opts.asPathRegex)
		if err != nil {
			return nil, fmt.Errorf("as-path-regex: %w", err)
		}
		shared = append(shared, filter.AsPathPredicate{Re: re})
	}

	if opts.prefix == "" {
		return filter.Group{filter.New(shared...)}, nil
	}

	prefix, err := netip.ParsePrefix(opts.prefix)
	if err != nil {
		return nil, fmt.Errorf("prefix %q: %w", opts.prefix, err)
	}

	var modes []filter.MatchMode
	switch {
	case opts.includeSuper && opts.includeSub:
		modes = []filter.MatchMode{filter.MatchOrLonger, filter.MatchOrShorter}
	case opts.includeSuper:
		modes = []filter.MatchMode{filter.MatchOrShorter}
	case opts.includeSub:
		modes = []filter.MatchMode{filter.MatchOrLonger}
	default:
		modes = []filter.MatchMode{filter.MatchExact}
	}

	group := make(filter.Group, 0, len(modes))
	for _, m := range modes {
		preds := append(append([]filter.Predicate{}, shared...), filter.PrefixPredicate{Prefix: prefix, Mode: m})
		group = append(group, filter.New(preds...))
	}
	return group, nil
}

func parseAsn(s string) (bgp.Asn, error) {
	var v uint32
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return bgp.Asn{}, fmt.Errorf("invalid ASN %q", s)
	}
	return bgp.NewAsn4(v), nil
}
