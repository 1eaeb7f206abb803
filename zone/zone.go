package zone

import (
	"errors"
	"fmt"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/rdata"
	"github.com/haldur/dnscore/rrset"
)

// ErrNoSOA is returned by Validate when a zone has no SOA at its
// origin (§3 Zone invariant: "SOA present").
var ErrNoSOA = errors.New("zone: missing SOA at origin")

// ErrNoApexNS is returned when a zone has no NS RRset at its origin
// (§3 Zone invariant: "NS present").
var ErrNoApexNS = errors.New("zone: missing NS at origin")

// Zone is an in-memory authoritative zone: every name at or below an
// origin that is not below a delegation other than the zone's own apex
// NS (§3 Zone).
type Zone struct {
	Origin dname.Name
	Class  uint16

	nodes map[string]*node
}

// New creates an empty zone for origin. Callers must Add the SOA and
// apex NS records (and everything else) before calling Validate.
func New(origin dname.Name, class uint16) *Zone {
	return &Zone{Origin: origin, Class: class, nodes: make(map[string]*node)}
}

func key(n dname.Name) string { return n.CanonicalLower().String() }

// Add inserts rr into the zone at its owner name. Callers are expected to
// have already confirmed rr.Header.Name is at-or-below Origin.
func (z *Zone) Add(rr rdata.RR) {
	k := key(rr.Header.Name)
	n, ok := z.nodes[k]
	if !ok {
		n = newNode(rr.Header.Name)
		z.nodes[k] = n
	}
	n.add(rr, z.Class)
}

// Validate checks the zone invariants named in §3: SOA present at the
// origin, NS present at the origin.
func (z *Zone) Validate() error {
	apex, ok := z.nodes[key(z.Origin)]
	if !ok {
		return ErrNoSOA
	}
	if !apex.hasNonEmptyType(rdata.TypeSOA) {
		return ErrNoSOA
	}
	if !apex.hasNonEmptyType(rdata.TypeNS) {
		return ErrNoApexNS
	}
	return nil
}

// SOA returns the zone's SOA RRset, if present.
func (z *Zone) SOA() (*rrset.RRset, bool) {
	apex, ok := z.nodes[key(z.Origin)]
	if !ok {
		return nil, false
	}
	return apex.get(rdata.TypeSOA)
}

// isDelegationPoint reports whether n carries an NS RRset and is not the
// zone's own apex (§3: "any non-apex NS marks a delegation point").
func (z *Zone) isDelegationPoint(n *node) bool {
	if n.name.Equal(z.Origin) {
		return false
	}
	return n.hasNonEmptyType(rdata.TypeNS)
}

// Lookup implements the shared outcome algebra of §4.F for an
// authoritative zone: ancestor walk for DNAME/delegation, wildcard
// synthesis, CNAME/NXRRSET/SUCCESSFUL at the target.
func (z *Zone) Lookup(name dname.Name, qtype uint16) SetResponse {
	if !name.IsSubdomainOf(z.Origin) && !name.Equal(z.Origin) {
		return unknown()
	}

	ancestors := ancestorChain(z.Origin, name)
	for _, ancestor := range ancestors {
		if ancestor.Equal(name) {
			break
		}
		n, ok := z.nodes[key(ancestor)]
		if !ok {
			continue
		}
		if dnameSet, ok := n.get(rdata.TypeDNAME); ok && dnameSet.Len() > 0 {
			return dnameOutcome(dnameSet.Records[0])
		}
		if z.isDelegationPoint(n) {
			ns, _ := n.get(rdata.TypeNS)
			return delegation(ns)
		}
	}

	target, ok := z.nodes[key(name)]
	if !ok {
		if wild, ok := z.wildcardMatch(name, qtype); ok {
			return wild
		}
		return nxDomain()
	}

	if z.isDelegationPoint(target) && qtype != rdata.TypeNS {
		ns, _ := target.get(rdata.TypeNS)
		return delegation(ns)
	}

	return lookupAtNode(target, qtype)
}

// wildcardMatch implements §4.F's "if the target does not exist, look up
// *.closestEncloser" rule.
func (z *Zone) wildcardMatch(name dname.Name, qtype uint16) (SetResponse, bool) {
	labels := name.Labels()
	for i := 1; i < len(labels); i++ {
		wildName, err := dname.New(append([]string{"*"}, labels[i:]...)...)
		if err != nil {
			break
		}
		if n, ok := z.nodes[key(wildName)]; ok {
			return lookupAtNodeSynth(n, name, qtype), true
		}
	}
	return SetResponse{}, false
}

// lookupAtNodeSynth applies lookupAtNode's type/CNAME filtering to a
// wildcard node, then re-owns whatever it matched to owner (§4.F:
// synthesis answers only the requested type, never every type the
// wildcard node happens to carry).
func lookupAtNodeSynth(n *node, owner dname.Name, qtype uint16) SetResponse {
	resp := lookupAtNode(n, qtype)
	switch resp.Outcome {
	case Successful:
		out := make([]*rrset.RRset, 0, len(resp.Answers))
		for _, s := range resp.Answers {
			out = append(out, substituteWildcardOwner(s, owner))
		}
		return successful(out)
	case CNAMEOutcome:
		rr := resp.Record
		rr.Header.Name = owner
		return cname(rr)
	case NXRRSet:
		return nxRRSet(owner)
	default:
		return resp
	}
}

func lookupAtNode(n *node, qtype uint16) SetResponse {
	if qtype == rdata.TypeANY {
		return successful(n.allSets())
	}
	if set, ok := n.get(qtype); ok && set.Len() > 0 {
		return successful([]*rrset.RRset{set})
	}
	if cnameSet, ok := n.get(rdata.TypeCNAME); ok && cnameSet.Len() > 0 && qtype != rdata.TypeCNAME {
		return cname(cnameSet.Records[0])
	}
	return nxRRSet(n.name)
}

// ancestorChain returns origin, then each successively longer prefix of
// name down to (and including) name itself, used to walk for DNAME/NS
// cuts between the origin and the query name.
func ancestorChain(origin, name dname.Name) []dname.Name {
	nameLabels := name.Labels()
	cut := len(nameLabels) - len(origin.Labels())
	if cut < 0 {
		return nil
	}
	chain := make([]dname.Name, 0, cut+1)
	for i := cut; i >= 0; i-- {
		n, err := dname.New(nameLabels[i:]...)
		if err != nil {
			continue
		}
		chain = append(chain, n)
	}
	return chain
}

// AddAnswer looks up name/qtype in z and appends the answer RRsets to
// *answerSets, chasing CNAME/DNAME up to a bound of 6 hops to prevent
// loops (§4.F). Returns the final outcome reached.
func AddAnswer(z *Zone, answerSets *[]*rrset.RRset, name dname.Name, qtype uint16) (SetResponse, error) {
	const maxChase = 6
	current := name
	var last SetResponse
	for hop := 0; hop < maxChase; hop++ {
		resp := z.Lookup(current, qtype)
		last = resp
		switch resp.Outcome {
		case Successful:
			*answerSets = append(*answerSets, resp.Answers...)
			return resp, nil
		case CNAMEOutcome:
			cnameRR := resp.Record
			set := rrset.NewRRset(current, z.Class, rdata.TypeCNAME)
			_ = set.Add(cnameRR)
			*answerSets = append(*answerSets, set)
			target, ok := cnameRR.Rdata.(*rdata.NameRdata)
			if !ok {
				return resp, fmt.Errorf("zone: CNAME rdata has unexpected type %T", cnameRR.Rdata)
			}
			current = target.Target
			continue
		case DNAMEOutcome:
			dnameRR := resp.Record
			set := rrset.NewRRset(current, z.Class, rdata.TypeDNAME)
			_ = set.Add(dnameRR)
			*answerSets = append(*answerSets, set)
			target, ok := dnameRR.Rdata.(*rdata.NameRdata)
			if !ok {
				return resp, fmt.Errorf("zone: DNAME rdata has unexpected type %T", dnameRR.Rdata)
			}
			substituted, err := current.SubstituteSuffix(dnameRR.Header.Name, target.Target)
			if err != nil {
				return resp, err
			}
			current = substituted
			continue
		default:
			return resp, nil
		}
	}
	return last, fmt.Errorf("zone: CNAME/DNAME chase exceeded %d hops", maxChase)
}
