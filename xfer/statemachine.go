package xfer

import (
	"fmt"

	"github.com/haldur/dnscore/rdata"
)

// stateMachine drives the §4.H transitions across however many framed
// messages the connection delivers.
type stateMachine struct {
	state      State
	qtype      uint16
	ixfrSerial uint32
	endSerial  uint32
	// deltaToSerial is the "to" serial of the delta whose adds list is
	// currently (or was most recently) open — the boundary a following
	// SOA must match to start the next delta (§4.H IXFR_ADD).
	deltaToSerial uint32
	upToDate      bool

	// initialSOA is the first record of the transfer (§4.H INITIALSOA),
	// saved so an AXFR-format response can re-emit it as the closing
	// bracket's opening half once FIRSTDATA recognizes the format.
	initialSOA rdata.RR

	handler Handler
}

func isSOA(rr rdata.RR) (*rdata.SOA, bool) {
	soa, ok := rr.Rdata.(*rdata.SOA)
	return soa, ok
}

// processRecords advances the state machine over every record in one
// message's answer section, re-processing a record in place when a
// transition says to (FIRSTDATA -> IXFR_DELSOA/AXFR, IXFR_DEL -> IXFR_ADDSOA,
// IXFR_ADD -> IXFR_DELSOA for the next delta).
func (sm *stateMachine) processRecords(records []rdata.RR) error {
	i := 0
	for i < len(records) {
		rr := records[i]
		advance, err := sm.step(rr)
		if err != nil {
			return err
		}
		if advance {
			i++
		}
		if sm.state == StateEnd {
			return nil
		}
	}
	return nil
}

// step processes one record against the current state, returning whether
// the caller should move to the next record (false means re-process the
// same record in the new state, per §4.H's "re-process this record").
func (sm *stateMachine) step(rr rdata.RR) (bool, error) {
	switch sm.state {
	case StateInitialSOA:
		soa, ok := isSOA(rr)
		if !ok {
			return false, fmt.Errorf("xfer: first record must be SOA, got type %d", rr.Header.Type)
		}
		sm.endSerial = soa.Serial
		sm.initialSOA = rr
		if sm.qtype == rdata.TypeIXFR && !serialGreater(sm.endSerial, sm.ixfrSerial) {
			sm.upToDate = true
			sm.state = StateEnd
			return true, nil
		}
		sm.state = StateFirstData
		return true, nil

	case StateFirstData:
		if sm.qtype == rdata.TypeIXFR {
			if soa, ok := isSOA(rr); ok && soa.Serial == sm.ixfrSerial {
				sm.handler.StartIXFR()
				sm.state = StateIXFRDelSOA
				return false, nil
			}
		}
		sm.handler.StartAXFR()
		sm.qtype = rdata.TypeAXFR
		sm.state = StateAXFR
		sm.handler.HandleRecord(sm.initialSOA)
		return false, nil

	case StateIXFRDelSOA:
		if _, ok := isSOA(rr); !ok {
			return false, fmt.Errorf("xfer: expected delete-SOA, got type %d", rr.Header.Type)
		}
		sm.handler.StartIXFRDeletes(rr)
		sm.state = StateIXFRDel
		return true, nil

	case StateIXFRDel:
		if _, ok := isSOA(rr); ok {
			sm.state = StateIXFRAddSOA
			return false, nil
		}
		sm.handler.HandleRecord(rr)
		return true, nil

	case StateIXFRAddSOA:
		soa, ok := isSOA(rr)
		if !ok {
			return false, fmt.Errorf("xfer: expected add-SOA, got type %d", rr.Header.Type)
		}
		sm.handler.StartIXFRAdds(rr)
		sm.deltaToSerial = soa.Serial
		sm.state = StateIXFRAdd
		return true, nil

	case StateIXFRAdd:
		if soa, ok := isSOA(rr); ok {
			switch soa.Serial {
			case sm.endSerial:
				sm.state = StateEnd
				return true, nil
			case sm.deltaToSerial:
				sm.state = StateIXFRDelSOA
				return false, nil
			default:
				return false, fmt.Errorf("xfer: IXFR synchronization failure: unexpected SOA serial %d", soa.Serial)
			}
		}
		sm.handler.HandleRecord(rr)
		return true, nil

	case StateAXFR:
		if _, ok := isSOA(rr); ok {
			sm.handler.HandleRecord(rr)
			sm.state = StateEnd
			return true, nil
		}
		sm.handler.HandleRecord(rr)
		return true, nil

	default:
		return true, nil
	}
}
