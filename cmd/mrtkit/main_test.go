package main

import (
	"testing"

	"github.com/route-beacon/mrtkit/internal/bgp"
	"github.com/route-beacon/mrtkit/internal/bgpelem"
)

func TestBuildFilterGroup_PlainPrefixIsExact(t *testing.T) {
	g, err := buildFilterGroup(options{prefix: "190.115.192.0/22"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g) != 1 {
		t.Fatalf("expected 1 filter, got %d", len(g))
	}
}

func TestBuildFilterGroup_SuperAndSubOrsTwoFilters(t *testing.T) {
	g, err := buildFilterGroup(options{prefix: "190.115.192.0/22", includeSuper: true, includeSub: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g) != 2 {
		t.Fatalf("expected 2 filters (super OR sub), got %d", len(g))
	}
}

func TestBuildFilterGroup_SharedPredicatesAppliedToEveryPrefixMode(t *testing.T) {
	g, err := buildFilterGroup(options{prefix: "190.115.192.0/22", includeSuper: true, includeSub: true, peerAsn: "174"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, f := range g {
		if len(f.Predicates) != 2 {
			t.Errorf("expected peer_asn predicate shared into every mode's filter, got %d predicates", len(f.Predicates))
		}
	}
}

func TestBuildFilterGroup_BadAsn(t *testing.T) {
	if _, err := buildFilterGroup(options{originAsn: "not-a-number"}); err == nil {
		t.Fatal("expected error for non-numeric origin-asn")
	}
}

func TestFormatText_Announce(t *testing.T) {
	asn := bgp.NewAsn4(64496)
	line := formatText(bgpelem.BgpElem{
		ElemType: bgpelem.ElemAnnounce,
		PeerAsn:  asn,
	})
	if line == "" {
		t.Fatal("expected non-empty line")
	}
	if line[0] != 'A' {
		t.Errorf("expected line to start with 'A', got %q", line)
	}
}

func TestFormatText_Withdraw(t *testing.T) {
	line := formatText(bgpelem.BgpElem{ElemType: bgpelem.ElemWithdraw})
	if line[0] != 'W' {
		t.Errorf("expected line to start with 'W', got %q", line)
	}
}
