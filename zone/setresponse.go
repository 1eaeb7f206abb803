// Package zone implements the in-memory authoritative zone and the
// credibility-ranked cache, both built on the same lookup outcome
// algebra (§4.F).
package zone

import (
	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/rdata"
	"github.com/haldur/dnscore/rrset"
)

// Outcome tags a SetResponse's case (§3 SetResponse).
type Outcome int

const (
	Unknown Outcome = iota
	NXDomain
	NXRRSet
	Delegation
	CNAMEOutcome
	DNAMEOutcome
	Successful
)

func (o Outcome) String() string {
	switch o {
	case Unknown:
		return "UNKNOWN"
	case NXDomain:
		return "NXDOMAIN"
	case NXRRSet:
		return "NXRRSET"
	case Delegation:
		return "DELEGATION"
	case CNAMEOutcome:
		return "CNAME"
	case DNAMEOutcome:
		return "DNAME"
	case Successful:
		return "SUCCESSFUL"
	default:
		return "UNKNOWN"
	}
}

// SetResponse is the tagged lookup-outcome value every lookup(name, type,
// minCredibility) call returns (§3). Exactly one of its payload fields is
// meaningful, selected by Outcome:
//
//	NXRRSet:    Name
//	Delegation: NS
//	CNAME:      Record (a CNAME record)
//	DNAME:      Record (a DNAME record)
//	Successful: Answers
type SetResponse struct {
	Outcome Outcome
	Name    dname.Name
	NS      *rrset.RRset
	Record  rdata.RR
	Answers []*rrset.RRset
}

func unknown() SetResponse   { return SetResponse{Outcome: Unknown} }
func nxDomain() SetResponse  { return SetResponse{Outcome: NXDomain} }
func nxRRSet(n dname.Name) SetResponse {
	return SetResponse{Outcome: NXRRSet, Name: n}
}
func delegation(ns *rrset.RRset) SetResponse {
	return SetResponse{Outcome: Delegation, NS: ns}
}
func cname(rr rdata.RR) SetResponse {
	return SetResponse{Outcome: CNAMEOutcome, Record: rr}
}
func dnameOutcome(rr rdata.RR) SetResponse {
	return SetResponse{Outcome: DNAMEOutcome, Record: rr}
}
func successful(sets []*rrset.RRset) SetResponse {
	return SetResponse{Outcome: Successful, Answers: sets}
}

// IsSuccessful reports whether the outcome carries answer data.
func (s SetResponse) IsSuccessful() bool { return s.Outcome == Successful }
