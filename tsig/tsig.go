// Package tsig implements transaction signatures (RFC 2845): signing and
// verification of a single message, plus the streaming verifier used by
// zone transfer to batch unsigned intermediate messages into the MAC
// input of the next signed one.
package tsig

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"hash"
	"time"

	"github.com/haldur/dnscore/dname"
	"github.com/haldur/dnscore/rdata"
	"github.com/haldur/dnscore/wire"
)

// Key identifies a shared secret: the algorithm (e.g. hmac-sha256.) names
// a HashFunc the caller must register for it, the key name identifies
// which party, and Secret is the raw shared-secret bytes.
type Key struct {
	Algorithm dname.Name
	Name      dname.Name
	Secret    []byte
}

// HashFunc constructs the hash.Hash implementing a TSIG algorithm. Callers
// supply one per algorithm name they accept — this library hardcodes
// none, unlike the source it is modeled on, which always used MD5 (RFC
// 2845's original, now-deprecated algorithm).
type HashFunc func() hash.Hash

// Algorithms is the process-wide table of algorithm-name -> hash
// constructor. Populate it with the standard names ("hmac-sha256.",
// "hmac-sha1.", ...) at program startup; this package does not assume any
// entries exist.
var Algorithms = map[string]HashFunc{}

// ErrUnknownAlgorithm is returned when no HashFunc is registered for a
// key's algorithm.
var ErrUnknownAlgorithm = errors.New("tsig: unknown algorithm")

// ErrMACMismatch is returned by Verify when the computed MAC does not
// match the one carried in the record.
var ErrMACMismatch = errors.New("tsig: MAC mismatch")

// ErrFudgeExceeded is returned by Verify when the signer's clock and the
// verifier's clock disagree by more than the record's fudge window.
var ErrFudgeExceeded = errors.New("tsig: time outside fudge window")

func hashFor(key Key) (HashFunc, error) {
	fn, ok := Algorithms[key.Algorithm.CanonicalLower().String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, key.Algorithm)
	}
	return fn, nil
}

// variables builds the canonical TSIG-variables byte sequence signed
// alongside the message (RFC 2845 §3.4.1): key name, class, TTL=0,
// algorithm, time signed, fudge, error, other — all in canonical wire
// form, never compressed.
func variables(key Key, timeSigned uint64, fudge uint16, errCode uint16, other []byte) []byte {
	w := wire.NewWriter(64)
	_ = key.Name.CanonicalLower().Encode(w, nil, true)
	w.U16(rdata.ClassANY)
	w.U32(0)
	_ = key.Algorithm.CanonicalLower().Encode(w, nil, true)
	w.U16(uint16(timeSigned >> 32))
	w.U32(uint32(timeSigned & 0xFFFFFFFF))
	w.U16(fudge)
	w.U16(errCode)
	w.U16(uint16(len(other)))
	w.Bytes(other)
	return w.Buf
}

// Sign computes the MAC for message (the full wire-format message minus
// any TSIG record), optionally chained from a prior MAC (non-nil for the
// second and later messages in a streaming exchange per §4.G). fudge is
// in seconds; the signing time is taken from time.Now.
func Sign(key Key, message []byte, priorMAC []byte, fudge uint16) (mac []byte, timeSigned uint64, err error) {
	hashFn, err := hashFor(key)
	if err != nil {
		return nil, 0, err
	}
	now := uint64(time.Now().Unix())

	h := hmac.New(hashFn, key.Secret)
	if len(priorMAC) > 0 {
		lenBuf := wire.NewWriter(2)
		lenBuf.U16(uint16(len(priorMAC)))
		h.Write(lenBuf.Buf)
		h.Write(priorMAC)
	}
	h.Write(message)
	h.Write(variables(key, now, fudge, 0, nil))
	return h.Sum(nil), now, nil
}

// Verify recomputes the MAC over message (as Sign would) and compares it
// to mac, also checking the fudge window against the local clock.
func Verify(key Key, message []byte, priorMAC []byte, timeSigned uint64, fudge uint16, mac []byte) error {
	hashFn, err := hashFor(key)
	if err != nil {
		return err
	}
	now := uint64(time.Now().Unix())
	var drift uint64
	if now > timeSigned {
		drift = now - timeSigned
	} else {
		drift = timeSigned - now
	}
	if drift > uint64(fudge) {
		return ErrFudgeExceeded
	}

	h := hmac.New(hashFn, key.Secret)
	if len(priorMAC) > 0 {
		lenBuf := wire.NewWriter(2)
		lenBuf.U16(uint16(len(priorMAC)))
		h.Write(lenBuf.Buf)
		h.Write(priorMAC)
	}
	h.Write(message)
	h.Write(variables(key, timeSigned, fudge, 0, nil))
	expected := h.Sum(nil)
	if !hmac.Equal(expected, mac) {
		return ErrMACMismatch
	}
	return nil
}

// State is a streaming verifier's position in RFC 2845 §4.4's state
// machine.
type State int

const (
	// StateUnsigned means no message has been verified yet.
	StateUnsigned State = iota
	// StateIntermediate means at least one unsigned message has been
	// accumulated since the last signed one.
	StateIntermediate
	// StateSigned means the most recent message carried a valid TSIG.
	StateSigned
	// StateVerified is the terminal success state after the final
	// message of a transfer is itself signed.
	StateVerified
	// StateFailed is the terminal failure state: any MAC/fudge/ordering
	// violation moves the verifier here permanently.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnsigned:
		return "UNSIGNED"
	case StateIntermediate:
		return "INTERMEDIATE"
	case StateSigned:
		return "SIGNED"
	case StateVerified:
		return "VERIFIED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// maxUnsignedRun is the "every 100th message or the final message must be
// signed" bound from §4.G.
const maxUnsignedRun = 100

// Verifier accumulates verification state across a stream of messages
// (used by zone transfer's multi-message TSIG requirement, §4.G/§4.H).
// Callers create it with NewVerifier and reuse the same *Verifier for
// every message of the stream.
type Verifier struct {
	Key           Key
	state         State
	priorMAC      []byte
	unsignedCount int
	unsignedBuf   []byte
}

// NewVerifier starts a fresh streaming verification for key.
func NewVerifier(key Key) *Verifier {
	return &Verifier{Key: key, state: StateUnsigned}
}

// NewVerifierWithPriorMAC starts a streaming verification whose first
// signed message chains against an already-known prior MAC — the
// client's own signed query, in a zone-transfer exchange (RFC 2845
// §4.4: "the first message's MAC is digested with ... the DNS Message
// ... and the Request MAC").
func NewVerifierWithPriorMAC(key Key, priorMAC []byte) *Verifier {
	return &Verifier{Key: key, state: StateUnsigned, priorMAC: priorMAC}
}

// State returns the verifier's current state.
func (v *Verifier) State() State { return v.state }

// VerifyMessage processes one message in the stream. signed indicates
// whether this message carried a TSIG record; if so, timeSigned/fudge/mac
// are its TSIG fields. final indicates this is the last message of the
// transfer, which must carry a TSIG regardless of the 100-message rule.
func (v *Verifier) VerifyMessage(message []byte, signed bool, timeSigned uint64, fudge uint16, mac []byte, final bool) error {
	if v.state == StateFailed {
		return errors.New("tsig: verifier already failed")
	}

	if !signed {
		if final {
			v.state = StateFailed
			return errors.New("tsig: final message must be signed")
		}
		v.unsignedBuf = append(v.unsignedBuf, message...)
		v.unsignedCount++
		if v.unsignedCount > maxUnsignedRun {
			v.state = StateFailed
			return fmt.Errorf("tsig: %d consecutive unsigned messages exceeds limit of %d", v.unsignedCount, maxUnsignedRun)
		}
		v.state = StateIntermediate
		return nil
	}

	accumulated := append(append([]byte{}, v.unsignedBuf...), message...)
	if err := Verify(v.Key, accumulated, v.priorMAC, timeSigned, fudge, mac); err != nil {
		v.state = StateFailed
		return err
	}

	v.priorMAC = mac
	v.unsignedBuf = nil
	v.unsignedCount = 0
	if final {
		v.state = StateVerified
	} else {
		v.state = StateSigned
	}
	return nil
}
