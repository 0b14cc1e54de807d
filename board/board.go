// Package board implements the bulletin board data model (spec §3): an
// append-only, totally ordered log of typed protocol messages, plus the
// AccumulatorSet used by the inference engine to detect when all trustees
// have contributed to a given phase.
package board

import (
	"sort"

	"golang.org/x/crypto/sha3"

	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/serialize"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/sign"
)

// MaxTrustees bounds the size of every AccumulatorSet and every trustee
// index appearing on a board (spec §6: "MAX_TRUSTEES = 24").
const MaxTrustees = 24

// Hash is an opaque content hash used to refer to off-board artifacts
// (share sets, public keys, ciphertext vectors, plaintexts) from within a
// message without embedding the artifact itself. Boards never hash with a
// group context's own hash function, since the board log must remain
// comparable across the two group contexts this module supports; Sha3-256
// over the artifact's canonical serialize.Tuple/Vector encoding is used
// uniformly instead.
type Hash [32]byte

// HashBytes computes the board's content hash of an already-serialized
// value.
func HashBytes(b []byte) Hash {
	return Hash(sha3.Sum256(b))
}

// TrusteeIndex is a 1-based trustee position, 1..=P.
type TrusteeIndex uint8

// Configuration fixes the parameters of a protocol run (spec §6).
type Configuration struct {
	CfgHash    Hash
	T          uint8
	P          uint8
	SelfIndex  TrusteeIndex
}

// Kind discriminates the Message sum type (spec §3 table).
type Kind int

const (
	KindConfigurationValid Kind = iota
	KindShares
	KindPublicKey
	KindBallots
	KindMix
	KindMixSignature
	KindMixCompleteSignature
	KindPartialDecryptions
	KindPlaintexts
)

func (k Kind) String() string {
	switch k {
	case KindConfigurationValid:
		return "configuration_valid"
	case KindShares:
		return "shares"
	case KindPublicKey:
		return "public_key"
	case KindBallots:
		return "ballots"
	case KindMix:
		return "mix"
	case KindMixSignature:
		return "mix_signature"
	case KindMixCompleteSignature:
		return "mix_complete_signature"
	case KindPartialDecryptions:
		return "partial_decryptions"
	case KindPlaintexts:
		return "plaintexts"
	default:
		return "unknown"
	}
}

// Message is one entry on the bulletin board. Only the fields relevant to
// its Kind are populated; this mirrors the original's enum-of-structs more
// directly than splitting into eight Go types would, since the inference
// engine and the executor both need to range over a single []Message log
// and switch on Kind the way the original's Ascent rules pattern-match on
// the enum variant.
type Message struct {
	Kind Kind

	CfgHash Hash
	// ConfigurationValid
	T         uint8
	P         uint8
	SelfIndex TrusteeIndex
	// Shares, PublicKey, PartialDecryptions, Plaintexts, Mix, MixSignature,
	// MixCompleteSignature
	Sender TrusteeIndex
	// Shares
	SharesHash Hash
	// PublicKey
	PKHash Hash
	// Ballots
	PKHashRef      Hash
	CiphertextsHash Hash
	MixingTrustees []TrusteeIndex
	// Mix, MixSignature, MixCompleteSignature, PartialDecryptions, Plaintexts
	PKHashMix Hash
	// Mix, MixSignature, MixCompleteSignature
	InputHash  Hash
	OutputHash Hash
	// PartialDecryptions
	PDHash Hash
	// Plaintexts
	PlaintextsHash Hash

	// Sig is the Sender's Ed25519 signature over SigningPayload(), binding
	// the message to the trustee that posted it (spec §6: "External
	// interfaces: Ed25519"). ConfigurationValid messages, seeded directly
	// by New, carry no signature - there is no sender to authenticate.
	Sig []byte
}

// SigningPayload returns the deterministic byte encoding of m's
// identifying fields, the transcript a trustee signs before posting m and
// that VerifyMessage checks the signature against. It deliberately
// excludes Sig itself.
func (m Message) SigningPayload() []byte {
	return serialize.Tuple(
		[]byte{byte(m.Kind)},
		m.CfgHash[:],
		[]byte{byte(m.T), byte(m.P), byte(m.SelfIndex), byte(m.Sender)},
		m.SharesHash[:],
		m.PKHash[:],
		m.PKHashRef[:],
		m.CiphertextsHash[:],
		trusteeIndexBytes(m.MixingTrustees),
		m.PKHashMix[:],
		m.InputHash[:],
		m.OutputHash[:],
		m.PDHash[:],
		m.PlaintextsHash[:],
	)
}

func trusteeIndexBytes(ts []TrusteeIndex) []byte {
	out := make([]byte, len(ts))
	for i, t := range ts {
		out[i] = byte(t)
	}
	return out
}

// VerifyMessage checks m.Sig against m.SigningPayload() under vk, the
// verification counterpart of the key that should have signed m as its
// Sender. It is the authenticity check a trustee receiving m over the
// board's transport would perform before accepting it.
func VerifyMessage(m Message, vk sign.VerifyingKey) error {
	return sign.Verify(m.SigningPayload(), sign.Signature(m.Sig), vk)
}

// ConfigurationValid constructs a ConfigurationValid message.
func ConfigurationValid(cfg Hash, t, p uint8, self TrusteeIndex) Message {
	return Message{Kind: KindConfigurationValid, CfgHash: cfg, T: t, P: p, SelfIndex: self}
}

// Shares constructs a Shares message.
func Shares(cfg Hash, sharesHash Hash, sender TrusteeIndex) Message {
	return Message{Kind: KindShares, CfgHash: cfg, SharesHash: sharesHash, Sender: sender}
}

// PublicKey constructs a PublicKey message.
func PublicKey(cfg Hash, pkHash Hash, sender TrusteeIndex) Message {
	return Message{Kind: KindPublicKey, CfgHash: cfg, PKHash: pkHash, Sender: sender}
}

// Ballots constructs a Ballots message.
func Ballots(cfg, pk, ciphertextsHash Hash, mixingTrustees []TrusteeIndex) Message {
	return Message{
		Kind:            KindBallots,
		CfgHash:         cfg,
		PKHashRef:       pk,
		CiphertextsHash: ciphertextsHash,
		MixingTrustees:  mixingTrustees,
	}
}

// Mix constructs a Mix message.
func Mix(cfg, pk, in, out Hash, sender TrusteeIndex) Message {
	return Message{Kind: KindMix, CfgHash: cfg, PKHashMix: pk, InputHash: in, OutputHash: out, Sender: sender}
}

// MixSignature constructs a MixSignature message.
func MixSignature(cfg, pk, in, out Hash, sender TrusteeIndex) Message {
	return Message{Kind: KindMixSignature, CfgHash: cfg, PKHashMix: pk, InputHash: in, OutputHash: out, Sender: sender}
}

// MixCompleteSignature constructs a MixCompleteSignature message. This
// kind is reserved but unused by the inference engine (spec §9 Open
// Questions: "SignChain" derivation is commented out in the source).
func MixCompleteSignature(cfg, pk, in, out Hash, sender TrusteeIndex) Message {
	return Message{Kind: KindMixCompleteSignature, CfgHash: cfg, PKHashMix: pk, InputHash: in, OutputHash: out, Sender: sender}
}

// PartialDecryptions constructs a PartialDecryptions message.
func PartialDecryptions(cfg, pk, ciphertextsHash, pdHash Hash, sender TrusteeIndex) Message {
	return Message{
		Kind:            KindPartialDecryptions,
		CfgHash:         cfg,
		PKHashMix:       pk,
		CiphertextsHash: ciphertextsHash,
		PDHash:          pdHash,
		Sender:          sender,
	}
}

// Plaintexts constructs a Plaintexts message.
func Plaintexts(cfg, pk, ciphertextsHash, plaintextsHash Hash, sender TrusteeIndex) Message {
	return Message{
		Kind:            KindPlaintexts,
		CfgHash:         cfg,
		PKHashMix:       pk,
		CiphertextsHash: ciphertextsHash,
		PlaintextsHash:  plaintextsHash,
		Sender:          sender,
	}
}

// slot identifies the (kind, sender-or-position) bucket a message occupies
// for collision purposes (spec §3: "at most one message per (kind, slot)").
type slot struct {
	kind   Kind
	sender TrusteeIndex
	input  Hash // only meaningful for Mix/MixSignature/MixCompleteSignature, keyed additionally by input
}

// Collides reports whether m and other occupy the same board slot, i.e.
// whether appending both would violate the at-most-one-per-slot invariant.
// ConfigurationValid messages never collide with each other: the board is
// seeded with exactly one per trustee by construction and nothing else
// ever produces one. Mix-family messages are slotted by (sender, input),
// since a single trustee may legitimately mix at more than one chain
// position if the mix visits it twice in pathological configurations; the
// chain-consistency rules in the inference engine reject that case
// separately rather than relying on slot collision to do so.
func (m Message) Collides(other Message) bool {
	if m.Kind != other.Kind {
		return false
	}
	switch m.Kind {
	case KindConfigurationValid:
		return false
	case KindMix, KindMixSignature, KindMixCompleteSignature:
		return m.Sender == other.Sender && m.InputHash == other.InputHash
	default:
		return m.Sender == other.Sender
	}
}

func (m Message) slotKey() slot {
	switch m.Kind {
	case KindMix, KindMixSignature, KindMixCompleteSignature:
		return slot{kind: m.Kind, sender: m.Sender, input: m.InputHash}
	default:
		return slot{kind: m.Kind, sender: m.Sender}
	}
}

// AccumulatorSet is an immutable-by-construction finite map from trustee
// index (1..=MaxTrustees) to an optional hash, plus the set of accepted
// hash values (spec §3). Add never mutates the receiver; it returns a new
// AccumulatorSet, mirroring the original's functional-update discipline
// (spec §5: "the AccumulatorSet is immutable by construction").
type AccumulatorSet struct {
	byIndex [MaxTrustees + 1]*Hash
	values  map[Hash]struct{}
}

// NewAccumulatorSet returns an empty AccumulatorSet.
func NewAccumulatorSet() AccumulatorSet {
	return AccumulatorSet{values: map[Hash]struct{}{}}
}

// Add inserts h at index i. Per spec §9's inherited Open Question, a
// duplicate index OR a duplicate hash value is silently dropped (the
// receiver is returned unchanged) rather than reported as an error; the
// inference engine never exercises this branch for an honest trustee
// population, since ComputeShares/ComputePublicKey/etc. are each enabled
// at most once per trustee.
func (a AccumulatorSet) Add(h Hash, i TrusteeIndex) AccumulatorSet {
	if i < 1 || int(i) > MaxTrustees {
		panic("board: trustee index out of range for AccumulatorSet")
	}
	if a.byIndex[i] != nil {
		return a
	}
	if _, ok := a.values[h]; ok {
		return a
	}

	next := a
	next.byIndex = a.byIndex
	next.values = make(map[Hash]struct{}, len(a.values)+1)
	for k := range a.values {
		next.values[k] = struct{}{}
	}
	next.values[h] = struct{}{}
	hCopy := h
	next.byIndex[i] = &hCopy
	return next
}

// IsComplete reports whether the set holds exactly k distinct hashes.
func (a AccumulatorSet) IsComplete(k int) bool {
	return len(a.values) == k
}

// Len returns the number of distinct hashes currently held.
func (a AccumulatorSet) Len() int {
	return len(a.values)
}

// Extract returns the accepted hashes in ascending index order, skipping
// empty slots.
func (a AccumulatorSet) Extract() []Hash {
	var out []Hash
	for i := 1; i <= MaxTrustees; i++ {
		if a.byIndex[i] != nil {
			out = append(out, *a.byIndex[i])
		}
	}
	return out
}

// Log is an append-only bulletin-board message log. The zero value is a
// board with no messages; use New to seed it per spec §3's lifecycle rule
// ("board is created with P copies of ConfigurationValid").
type Log struct {
	messages []Message
}

// New creates a board seeded with one ConfigurationValid message per
// trustee 1..p, as required by spec §3's lifecycle ("messages are appended
// monotonically; no message is ever removed or rewritten").
func New(cfgHash Hash, t, p uint8) Log {
	msgs := make([]Message, 0, p)
	for i := uint8(1); i <= p; i++ {
		msgs = append(msgs, ConfigurationValid(cfgHash, t, p, TrusteeIndex(i)))
	}
	return Log{messages: msgs}
}

// Messages returns the board's current message sequence. The returned
// slice must not be mutated by the caller; use Append to extend the log.
func (l Log) Messages() []Message {
	return l.messages
}

// FromMessages builds a Log directly from msgs with no collision
// checking. This exists for test harnesses that need to construct a
// deliberately invalid board (spec §8 scenario 4: "a crafted log contains
// PublicKey(cfg, h1, 1) and PublicKey(cfg, h2, 1)") so the inference
// engine's own error rules, not Append's, are what is under test.
func FromMessages(msgs []Message) Log {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return Log{messages: out}
}

// Append adds msgs to the log after checking each one against every
// existing (and previously appended, within this call) message for a slot
// collision, returning a ProtocolError if any collision is found. On
// error, l is returned unchanged; a caller that wants partial-append
// semantics must call Append once per message.
func (l Log) Append(msgs ...Message) (Log, error) {
	seen := make([]Message, len(l.messages), len(l.messages)+len(msgs))
	copy(seen, l.messages)

	for _, m := range msgs {
		for _, existing := range seen {
			if m.Collides(existing) {
				return l, xerrors.New(xerrors.ProtocolError, "duplicate message slot: "+m.Kind.String())
			}
		}
		seen = append(seen, m)
	}

	next := Log{messages: seen}
	return next, nil
}

// ByKind returns every message of the given kind, in log order.
func (l Log) ByKind(k Kind) []Message {
	var out []Message
	for _, m := range l.messages {
		if m.Kind == k {
			out = append(out, m)
		}
	}
	return out
}

// Sorted returns a copy of the log's messages sorted into a canonical
// order (by kind, then sender, then input hash), matching the original's
// derived Ord on the Message enum which the board uses to make its
// construction deterministic regardless of trustee scheduling order.
func (l Log) Sorted() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].slotKey(), out[j].slotKey()
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		if a.sender != b.sender {
			return a.sender < b.sender
		}
		return a.input.less(b.input)
	})
	return out
}

func (h Hash) less(o Hash) bool {
	for i := range h {
		if h[i] != o[i] {
			return h[i] < o[i]
		}
	}
	return false
}
