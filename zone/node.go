package zone

import (
	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/rdata"
	"github.com/haldur/dnscore/rrset"
)

// node holds every RRset present at one owner name, keyed by RRset-type
// (§3 Zone: "a mapping from Name to (map from type to RRset)").
type node struct {
	name  dname.Name
	types map[uint16]*rrset.RRset
}

func newNode(name dname.Name) *node {
	return &node{name: name, types: make(map[uint16]*rrset.RRset)}
}

func (n *node) add(rr rdata.RR, class uint16) {
	rrType := rrset.Type(rr)
	set, ok := n.types[rrType]
	if !ok {
		set = rrset.NewRRset(n.name, class, rrType)
		n.types[rrType] = set
	}
	if rr.Header.Type == rdata.TypeRRSIG || rr.Header.Type == rdata.TypeSIG {
		_ = set.AddSignature(rr)
		return
	}
	_ = set.Add(rr)
}

func (n *node) get(rrType uint16) (*rrset.RRset, bool) {
	set, ok := n.types[rrType]
	return set, ok
}

// hasNonEmptyType reports whether any RRset at this node carries at
// least one sibling record (signature-only sets don't count).
func (n *node) hasNonEmptyType(rrType uint16) bool {
	set, ok := n.types[rrType]
	return ok && set.Len() > 0
}

func (n *node) allSets() []*rrset.RRset {
	out := make([]*rrset.RRset, 0, len(n.types))
	for _, set := range n.types {
		if set.Len() > 0 {
			out = append(out, set)
		}
	}
	return out
}

// substituteWildcardOwner returns a copy of set's records re-owned to
// name, the wildcard-synthesis step of §4.F's "Wildcard rule".
func substituteWildcardOwner(set *rrset.RRset, name dname.Name) *rrset.RRset {
	out := rrset.NewRRset(name, set.Class, set.Type)
	out.TTL = set.TTL
	for _, rr := range set.Records {
		rr.Header.Name = name
		_ = out.Add(rr)
	}
	for _, rr := range set.Signatures {
		rr.Header.Name = name
		_ = out.AddSignature(rr)
	}
	return out
}
