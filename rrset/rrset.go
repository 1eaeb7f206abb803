// Package rrset groups sibling records sharing (name, class, RRset-type)
// and codes the RFC 4034 §4.1.2 type bitmap used by NSEC/NSEC3.
package rrset

import (
	"fmt"
	"sort"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/rdata"
	"github.com/haldur/dnscore/wire"
)

// Type collapses SIG/RRSIG onto their covered type so a signature groups
// with the data it signs (§3 Record: "RRset-type collapses SIG/RRSIG onto
// their covered type").
func Type(rr rdata.RR) uint16 {
	switch rr.Header.Type {
	case rdata.TypeRRSIG:
		if sig, ok := rr.Rdata.(interface{ CoveredType() uint16 }); ok {
			return sig.CoveredType()
		}
	case rdata.TypeSIG:
		if sig, ok := rr.Rdata.(interface{ CoveredType() uint16 }); ok {
			return sig.CoveredType()
		}
	}
	return rr.Header.Type
}

// SameSet reports whether two records belong to the same RRset: matching
// name, class, and RRset-type (§3).
func SameSet(a, b rdata.RR) bool {
	return a.Header.Name.Equal(b.Header.Name) && a.Header.Class == b.Header.Class && Type(a) == Type(b)
}

// RRset is an ordered sequence of sibling records sharing name/class/type,
// plus an ordered sequence of covering signature records (§3 RRset). All
// siblings are required to share a TTL; on an insert conflict the set
// keeps the minimum of the two.
type RRset struct {
	Name  dname.Name
	Class uint16
	Type  uint16
	TTL   uint32

	Records    []rdata.RR
	Signatures []rdata.RR
}

// NewRRset starts an empty set for (name, class, rrsetType).
func NewRRset(name dname.Name, class, rrsetType uint16) *RRset {
	return &RRset{Name: name, Class: class, Type: rrsetType}
}

// ErrWrongSet is returned by Add/AddSignature when a record does not
// belong to this RRset's (name, class, type) key.
type ErrWrongSet struct {
	Set    *RRset
	Record rdata.RR
}

func (e *ErrWrongSet) Error() string {
	return fmt.Sprintf("rrset: record %s does not belong to set %s/%s/%s", e.Record, e.Set.Name, rdata.ClassString(e.Set.Class), rdata.TypeName(e.Set.Type))
}

// Add inserts rr as a sibling. If the set is currently empty, rr's TTL
// seeds the set's TTL; otherwise the set's TTL becomes the minimum of the
// existing TTL and rr's TTL (§3 "the set imposes the minimum TTL on
// insert conflict"). Returns ErrWrongSet if rr's (name,class,RRset-type)
// does not match.
func (s *RRset) Add(rr rdata.RR) error {
	if !rr.Header.Name.Equal(s.Name) || rr.Header.Class != s.Class || Type(rr) != s.Type {
		return &ErrWrongSet{Set: s, Record: rr}
	}
	if len(s.Records) == 0 && len(s.Signatures) == 0 {
		s.TTL = rr.Header.TTL
	} else if rr.Header.TTL < s.TTL {
		s.TTL = rr.Header.TTL
	}
	for _, existing := range s.Records {
		if existing.Equal(rr) {
			return nil
		}
	}
	s.Records = append(s.Records, rr)
	return nil
}

// AddSignature inserts a covering RRSIG/SIG record, applying the same
// minimum-TTL rule as Add.
func (s *RRset) AddSignature(rr rdata.RR) error {
	if !rr.Header.Name.Equal(s.Name) || rr.Header.Class != s.Class || Type(rr) != s.Type {
		return &ErrWrongSet{Set: s, Record: rr}
	}
	if len(s.Records) == 0 && len(s.Signatures) == 0 {
		s.TTL = rr.Header.TTL
	} else if rr.Header.TTL < s.TTL {
		s.TTL = rr.Header.TTL
	}
	s.Signatures = append(s.Signatures, rr)
	return nil
}

// Len returns the number of sibling records (signatures excluded).
func (s *RRset) Len() int { return len(s.Records) }

// String renders every sibling, one per line, in presentation form.
func (s *RRset) String() string {
	out := ""
	for i, rr := range s.Records {
		if i > 0 {
			out += "\n"
		}
		out += rr.String()
	}
	return out
}

// CanonicalSort orders the set's records per RFC 4034 §6.3 (the rdata's
// canonical wire form, ascending), used before RRSIG generation/verification.
func (s *RRset) CanonicalSort() {
	sort.Slice(s.Records, func(i, j int) bool {
		return canonicalRdataBytes(s.Records[i]) < canonicalRdataBytes(s.Records[j])
	})
}

func canonicalRdataBytes(rr rdata.RR) string {
	w := wire.NewWriter(64)
	_ = rr.Rdata.Pack(w, nil, true)
	return string(w.Buf)
}
