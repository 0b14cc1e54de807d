// Package inference implements the protocol's forward-chaining rule
// engine (spec §4.7): a pure function from a bulletin-board message log
// to the set of actions currently permissible for each trustee and the
// set of protocol violations detected in the log. It is order-independent
// (spec §5: "computes the same derivation for any permutation of the
// log") and halts deriving actions as soon as any error is found (spec
// §4.7: "The engine halts deriving actions whenever error is non-empty").
package inference

import (
	"fmt"
	"sort"

	"github.com/FreeAndFair/MobileVotingCoreCryptography/board"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"
)

// ActionKind discriminates the engine's derivable actions (spec §4.7).
type ActionKind int

const (
	ComputeShares ActionKind = iota
	ComputePublicKey
	ComputeBallots
	ComputeMix
	SignMix
	ComputePartialDecryptions
	ComputePlaintexts
)

func (k ActionKind) String() string {
	switch k {
	case ComputeShares:
		return "ComputeShares"
	case ComputePublicKey:
		return "ComputePublicKey"
	case ComputeBallots:
		return "ComputeBallots"
	case ComputeMix:
		return "ComputeMix"
	case SignMix:
		return "SignMix"
	case ComputePartialDecryptions:
		return "ComputePartialDecryptions"
	case ComputePlaintexts:
		return "ComputePlaintexts"
	default:
		return "unknown"
	}
}

// Action is one instance of an enabled derivation, addressed to Trustee.
// Not every field is meaningful for every Kind; the per-field comments
// below name the kinds that use each field, and Infer's rule comments
// describe when each kind is enabled.
type Action struct {
	Kind ActionKind
	Cfg  board.Hash

	Trustee board.TrusteeIndex

	PK              board.Hash // ComputeMix, SignMix, ComputePartialDecryptions, ComputePlaintexts
	Input           board.Hash // ComputeMix, SignMix
	Output          board.Hash // ComputeMix (== input to next), SignMix
	CiphertextsHash board.Hash // ComputeMix (first form), ComputePartialDecryptions, ComputePlaintexts

	// SharesVec holds the P extracted Shares hashes, in index order, for
	// ComputePublicKey.
	SharesVec []board.Hash
	// PDVec holds the (at least T) extracted PartialDecryptions hashes, in
	// index order, for ComputePlaintexts.
	PDVec []board.Hash
}

// Trace records which rule fired to derive each action or error, for the
// executor's audit/model-checking harness (SPEC_FULL §C.5). It is
// additive instrumentation: nothing in the engine's derivation depends on
// it.
type Trace struct {
	entries []string
}

func (t *Trace) log(format string, args ...any) {
	if t == nil {
		return
	}
	t.entries = append(t.entries, fmt.Sprintf(format, args...))
}

// Entries returns the trace's recorded lines in derivation order.
func (t *Trace) Entries() []string {
	if t == nil {
		return nil
	}
	return t.entries
}

// Result is the outcome of running the engine once over a message log.
type Result struct {
	Actions []Action
	Errors  []error
	Trace   Trace
}

// HasErrors reports whether any protocol violation was detected.
func (r Result) HasErrors() bool { return len(r.Errors) > 0 }

// Infer runs the forward-chaining rule system over log's current
// messages and returns the actions it enables and the errors it detects.
// t and p are the configured threshold and participant count (spec §6).
func Infer(log board.Log, t, p uint8) Result {
	var trace Trace
	msgs := log.Messages()

	cfgHash, cfgOK := establishedConfig(msgs)
	if !cfgOK {
		return Result{Errors: []error{xerrors.New(xerrors.ProtocolError, "no ConfigurationValid messages on board")}, Trace: trace}
	}
	trace.log("configuration_valid established: cfg=%x", cfgHash[:4])

	var errs []error
	for _, m := range msgs {
		if m.Kind != board.KindConfigurationValid && m.CfgHash != cfgHash {
			errs = append(errs, xerrors.New(xerrors.ProtocolError, "message cfg_hash does not match established configuration"))
		}
	}

	selfIndices := configuredTrustees(msgs, cfgHash)

	// shares(cfg, shares_hash, sender): dealers contribute distinct random
	// polynomial-commitment hashes, so completion is a genuine
	// AccumulatorSet dedup-by-value (spec §4.7 rule 2).
	sharesBySender := map[board.TrusteeIndex]board.Hash{}
	sharesAcc := board.NewAccumulatorSet()
	for _, m := range msgs {
		if m.Kind != board.KindShares || m.CfgHash != cfgHash {
			continue
		}
		if existing, ok := sharesBySender[m.Sender]; ok && existing != m.SharesHash {
			errs = append(errs, xerrors.New(xerrors.ProtocolError, "two Shares messages from the same trustee disagree"))
			continue
		}
		sharesBySender[m.Sender] = m.SharesHash
		sharesAcc = sharesAcc.Add(m.SharesHash, m.Sender)
	}

	// public_key(cfg, pk_hash, sender): every honest trustee derives the
	// SAME combined public key, so completion is a sequential count of
	// distinct senders reporting, NOT a value-dedup AccumulatorSet (every
	// value is expected to collide).
	pkBySender := map[board.TrusteeIndex]board.Hash{}
	for _, m := range msgs {
		if m.Kind != board.KindPublicKey || m.CfgHash != cfgHash {
			continue
		}
		if existing, ok := pkBySender[m.Sender]; ok && existing != m.PKHash {
			errs = append(errs, xerrors.New(xerrors.ProtocolError, "two PublicKey messages from the same trustee disagree"))
			continue
		}
		pkBySender[m.Sender] = m.PKHash
	}

	// ballots(cfg, pk, ciphertexts_hash, mixing_trustees)
	var ballotsMsg *board.Message
	for i, m := range msgs {
		if m.Kind == board.KindBallots && m.CfgHash == cfgHash {
			if ballotsMsg != nil {
				errs = append(errs, xerrors.New(xerrors.ProtocolError, "more than one Ballots message on the board"))
				break
			}
			mm := msgs[i]
			ballotsMsg = &mm
		}
	}

	// mixing_position: a trustee's 1-based position within
	// mixing_trustees. Duplicate positions for the same trustee (the
	// trustee listed twice in the Ballots message) are a static error.
	var mixingTrustees []board.TrusteeIndex
	mixingPosition := map[board.TrusteeIndex]int{}
	if ballotsMsg != nil {
		mixingTrustees = ballotsMsg.MixingTrustees
		seen := map[board.TrusteeIndex]bool{}
		for pos, trustee := range mixingTrustees {
			if seen[trustee] {
				errs = append(errs, xerrors.New(xerrors.ProtocolError, "duplicate mixing_position for a trustee"))
				continue
			}
			seen[trustee] = true
			mixingPosition[trustee] = pos + 1
		}
	}

	// mix(cfg, pk, in, out, sender) and mix_signature(cfg, pk, in, out,
	// sender). Mix-signature completion is a sequential count of distinct
	// signer positions on a given (in, out) edge, not a value-dedup
	// AccumulatorSet: every honest signer's contribution is a signature
	// over the SAME (in, out) pair, so a value-set accumulator would
	// treat the second signer's identical content as a duplicate and
	// never reach completion.
	var mixEdges []mixEdge
	mixByInput := map[board.Hash][]mixEdge{}
	mixByOutput := map[board.Hash][]mixEdge{}
	edgeKey := func(in, out board.Hash) [2]board.Hash {
		return [2]board.Hash{in, out}
	}
	signedBy := map[[2]board.Hash]map[board.TrusteeIndex]bool{}

	for _, m := range msgs {
		if m.Kind != board.KindMix || m.CfgHash != cfgHash {
			continue
		}
		e := mixEdge{sender: m.Sender, in: m.InputHash, out: m.OutputHash}
		mixEdges = append(mixEdges, e)
		mixByInput[m.InputHash] = append(mixByInput[m.InputHash], e)
		mixByOutput[m.OutputHash] = append(mixByOutput[m.OutputHash], e)
	}
	for in, edges := range mixByInput {
		if len(edges) > 1 {
			for i := 1; i < len(edges); i++ {
				if edges[i].sender != edges[0].sender {
					errs = append(errs, xerrors.New(xerrors.ProtocolError, "two Mix messages claim the same input"))
				}
			}
		}
		_ = in
	}
	for out, edges := range mixByOutput {
		if len(edges) > 1 {
			for i := 1; i < len(edges); i++ {
				if edges[i].sender != edges[0].sender {
					errs = append(errs, xerrors.New(xerrors.ProtocolError, "two Mix messages claim the same output"))
				}
			}
		}
		_ = out
	}
	for _, m := range msgs {
		if m.Kind != board.KindMixSignature || m.CfgHash != cfgHash {
			continue
		}
		k := edgeKey(m.InputHash, m.OutputHash)
		if signedBy[k] == nil {
			signedBy[k] = map[board.TrusteeIndex]bool{}
		}
		signedBy[k][m.Sender] = true
	}
	signatureCount := func(in, out board.Hash) int {
		return len(signedBy[edgeKey(in, out)])
	}

	// Validate chain consistency: a Mix from the trustee at mixing
	// position k>1 must take as input the output of the mix produced by
	// the trustee at position k-1; any other participant combination is
	// "unexpected mix chain participants" (spec §4.7, §8 scenario 5).
	for _, e := range mixEdges {
		pos, ok := mixingPosition[e.sender]
		if !ok || pos == 1 {
			continue
		}
		prevTrustee := mixingTrustees[pos-2]
		prevEdge, found := findEdgeFrom(mixEdges, prevTrustee)
		if !found || prevEdge.out != e.in {
			errs = append(errs, xerrors.New(xerrors.ProtocolError, "unexpected mix chain participants"))
		}
	}

	// partial_decryptions(cfg, pk, ciphertexts_hash, pd_hash, sender):
	// genuine AccumulatorSet, completion at T distinct trustees (spec
	// §4.7 rule 6: "partial_decryptions from >= T distinct trustees").
	pdBySender := map[board.TrusteeIndex]board.Hash{}
	pdAcc := board.NewAccumulatorSet()
	var pdCiphertextsHash board.Hash
	havePD := false
	for _, m := range msgs {
		if m.Kind != board.KindPartialDecryptions || m.CfgHash != cfgHash {
			continue
		}
		if existing, ok := pdBySender[m.Sender]; ok && existing != m.PDHash {
			errs = append(errs, xerrors.New(xerrors.ProtocolError, "two PartialDecryptions messages from the same trustee disagree"))
			continue
		}
		pdBySender[m.Sender] = m.PDHash
		pdAcc = pdAcc.Add(m.PDHash, m.Sender)
		pdCiphertextsHash = m.CiphertextsHash
		havePD = true
	}
	_ = havePD

	// plaintexts(cfg, pk, ciphertexts_hash, plaintexts_hash, sender):
	// distinct senders must agree on plaintexts_hash.
	plaintextsBySender := map[board.TrusteeIndex]board.Hash{}
	var plaintextsHash board.Hash
	havePlaintexts := false
	for _, m := range msgs {
		if m.Kind != board.KindPlaintexts || m.CfgHash != cfgHash {
			continue
		}
		if havePlaintexts && m.PlaintextsHash != plaintextsHash {
			errs = append(errs, xerrors.New(xerrors.ProtocolError, "Plaintexts messages disagree on hash"))
			continue
		}
		plaintextsBySender[m.Sender] = m.PlaintextsHash
		plaintextsHash = m.PlaintextsHash
		havePlaintexts = true
	}

	if len(errs) > 0 {
		trace.log("errors detected, halting action derivation: %v", errs)
		return Result{Errors: errs, Trace: trace}
	}

	var actions []Action

	// Rule 1: ComputeShares(cfg, i) iff configuration_valid(cfg,...,i) and
	// no shares(cfg,_,i) exists.
	for _, i := range selfIndices {
		if _, ok := sharesBySender[i]; !ok {
			actions = append(actions, Action{Kind: ComputeShares, Cfg: cfgHash, Trustee: i})
			trace.log("ComputeShares enabled for trustee %d", i)
		}
	}

	// Rule 2: ComputePublicKey(cfg, shares_vec, i) iff the shares
	// accumulator is complete over all P trustees.
	if sharesAcc.IsComplete(int(p)) {
		sharesVec := sharesAcc.Extract()
		for _, i := range selfIndices {
			if _, ok := pkBySender[i]; !ok {
				actions = append(actions, Action{Kind: ComputePublicKey, Cfg: cfgHash, Trustee: i, SharesVec: sharesVec})
				trace.log("ComputePublicKey enabled for trustee %d", i)
			}
		}
	}

	// ComputeBallots(cfg, pk) iff all P trustees have reported the same
	// public key and no Ballots message exists yet. This is not in the
	// spec's numbered rule list but is required to bridge key generation
	// into the mixing phase (spec §4.8's BallotsPosted state), and exists
	// symmetrically in the original's composed protocol rules.
	var pkHash board.Hash
	pkComplete := len(pkBySender) == int(p)
	if pkComplete {
		for _, h := range pkBySender {
			pkHash = h
			break
		}
		if ballotsMsg == nil {
			for _, i := range selfIndices {
				actions = append(actions, Action{Kind: ComputeBallots, Cfg: cfgHash, Trustee: i, PK: pkHash})
			}
			trace.log("ComputeBallots enabled")
		}
	}

	if ballotsMsg != nil {
		pkHash = ballotsMsg.PKHashRef

		// Rule 3: ComputeMix has two forms.
		for _, trustee := range mixingTrustees {
			pos := mixingPosition[trustee]
			var inputHash board.Hash
			enabled := false
			if pos == 1 {
				inputHash = ballotsMsg.CiphertextsHash
				enabled = true
			} else {
				prevTrustee := mixingTrustees[pos-2]
				prevEdge, ok := findEdgeFrom(mixEdges, prevTrustee)
				if ok && signatureCount(prevEdge.in, prevEdge.out) >= int(t) {
					inputHash = prevEdge.out
					enabled = true
				}
			}
			if !enabled {
				continue
			}
			if _, already := findEdgeFromWithInput(mixEdges, trustee, inputHash); already {
				continue
			}
			actions = append(actions, Action{Kind: ComputeMix, Cfg: cfgHash, Trustee: trustee, PK: pkHash, CiphertextsHash: inputHash})
			trace.log("ComputeMix enabled for trustee %d (input %x)", trustee, inputHash[:4])
		}

		// Rule 4: SignMix(cfg,pk,in,out,i) for every mixing trustee once a
		// Mix(in,out,_) message exists that i has not signed yet.
		for _, e := range mixEdges {
			k := edgeKey(e.in, e.out)
			for _, trustee := range mixingTrustees {
				if !signedBy[k][trustee] {
					actions = append(actions, Action{Kind: SignMix, Cfg: cfgHash, Trustee: trustee, PK: pkHash, Input: e.in, Output: e.out})
					trace.log("SignMix enabled for trustee %d (edge %x -> %x)", trustee, e.in[:4], e.out[:4])
				}
			}
		}

		// Mix chain completion: a chain of length T of signed mixes whose
		// first input is the ballots hash.
		finalOut, chainComplete := mixChainOutput(mixEdges, mixingTrustees, ballotsMsg.CiphertextsHash, signatureCount, int(t))

		if chainComplete {
			// Rule 5: ComputePartialDecryptions(cfg,pk,final_out,i) for
			// every mixing trustee once the chain is complete.
			for _, trustee := range mixingTrustees {
				if _, ok := pdBySender[trustee]; !ok {
					actions = append(actions, Action{Kind: ComputePartialDecryptions, Cfg: cfgHash, Trustee: trustee, PK: pkHash, CiphertextsHash: finalOut})
					trace.log("ComputePartialDecryptions enabled for trustee %d", trustee)
				}
			}

			// Rule 6: ComputePlaintexts(cfg,pk,final_out,pd_vec,i) once
			// partial_decryptions from >= T distinct trustees have
			// accumulated.
			if pdAcc.Len() >= int(t) {
				pdVec := pdAcc.Extract()
				for _, trustee := range mixingTrustees {
					if _, ok := plaintextsBySender[trustee]; ok {
						continue
					}
					actions = append(actions, Action{Kind: ComputePlaintexts, Cfg: cfgHash, Trustee: trustee, PK: pkHash, CiphertextsHash: pdCiphertextsHash, PDVec: pdVec})
					trace.log("ComputePlaintexts enabled for trustee %d", trustee)
				}
			}
		}
	}

	return Result{Actions: actions, Trace: trace}
}

func establishedConfig(msgs []board.Message) (board.Hash, bool) {
	for _, m := range msgs {
		if m.Kind == board.KindConfigurationValid {
			return m.CfgHash, true
		}
	}
	return board.Hash{}, false
}

func configuredTrustees(msgs []board.Message, cfgHash board.Hash) []board.TrusteeIndex {
	seen := map[board.TrusteeIndex]bool{}
	var out []board.TrusteeIndex
	for _, m := range msgs {
		if m.Kind == board.KindConfigurationValid && m.CfgHash == cfgHash && !seen[m.SelfIndex] {
			seen[m.SelfIndex] = true
			out = append(out, m.SelfIndex)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type mixEdge struct {
	sender  board.TrusteeIndex
	in, out board.Hash
}

func findEdgeFrom(edges []mixEdge, sender board.TrusteeIndex) (mixEdge, bool) {
	for _, e := range edges {
		if e.sender == sender {
			return e, true
		}
	}
	return mixEdge{}, false
}

func findEdgeFromWithInput(edges []mixEdge, sender board.TrusteeIndex, input board.Hash) (mixEdge, bool) {
	for _, e := range edges {
		if e.sender == sender && e.in == input {
			return e, true
		}
	}
	return mixEdge{}, false
}

// mixChainOutput walks the mixing_trustees positions 1..T, requiring each
// edge to be present and fully signed (T mix_signature messages) before
// considering the next position, and returns the final output hash once
// all T positions have a complete, consecutively-chained mix.
func mixChainOutput(
	edges []mixEdge,
	mixingTrustees []board.TrusteeIndex,
	ballotsHash board.Hash,
	signatureCount func(in, out board.Hash) int,
	t int,
) (board.Hash, bool) {
	if len(mixingTrustees) < t {
		return board.Hash{}, false
	}
	expectedInput := ballotsHash
	var lastOutput board.Hash
	for pos := 1; pos <= t; pos++ {
		trustee := mixingTrustees[pos-1]
		e, ok := findEdgeFrom(edges, trustee)
		if !ok || e.in != expectedInput {
			return board.Hash{}, false
		}
		if signatureCount(e.in, e.out) < t {
			return board.Hash{}, false
		}
		lastOutput = e.out
		expectedInput = e.out
	}
	return lastOutput, true
}
