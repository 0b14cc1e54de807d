// Package executor applies the actions the inference engine enables
// (spec §4.8): it carries out the cryptography each Action names using
// the group/elgamal/naoryung/zkp/dkg/sign packages and appends the
// resulting message to the board. It is the only package that ever
// mutates off-board cryptographic state; inference stays pure.
//
// A real deployment transports dealt shares, ciphertext vectors and
// shuffle proofs between trustees over the network, publishing only
// their content hashes to the board (spec §3). Board, here, keeps that
// off-board material in one process as a stand-in for that channel -
// the same role the original's in-memory BulletinBoard struct plays in
// its stateright harness.
package executor

import (
	"crypto/rand"
	"math/big"
	"sort"

	"github.com/FreeAndFair/MobileVotingCoreCryptography/board"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/dkg"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/elgamal"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/group"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/inference"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/naoryung"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/serialize"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/sign"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/zkp"
)

// DefaultBallotCount is how many ballots ComputeBallots produces when a
// Board is not given an explicit count, matching the small batches used
// throughout spec §8's worked scenarios.
const DefaultBallotCount = 3

type dealerContribution struct {
	commitments []group.Element
	sharesOut   []dkg.Share // sharesOut[i] is destined for recipient i+1
}

type trusteeKeys struct {
	share dkg.Share
	vk    group.Element
}

type mixMaterial struct {
	input  []elgamal.Ciphertext
	output []elgamal.Ciphertext
	proof  zkp.ShuffleProof
}

// Board couples a public board.Log with the off-board cryptographic
// material the inference engine only ever addresses through content
// hashes.
type Board struct {
	Log     board.Log
	Ctx     group.Context
	Width   int
	T, P    uint8
	CfgHash board.Hash

	// BallotCount overrides DefaultBallotCount when positive.
	BallotCount int

	dealers map[board.TrusteeIndex]dealerContribution
	keys    map[board.TrusteeIndex]trusteeKeys
	pk      elgamal.PublicKey
	nyPK    naoryung.PublicKey
	havePK  bool

	ciphertextsByHash map[board.Hash][]elgamal.Ciphertext
	mixes             map[board.Hash]mixMaterial // keyed by output hash
	decryptionFactors map[board.Hash]map[board.TrusteeIndex][]dkg.DecryptionFactor
	plaintextsByHash  map[board.Hash][][]group.Element
	ballotsByHash     map[board.Hash][][]group.Element // original plaintexts, keyed by the ballots ciphertexts hash

	signers   map[board.TrusteeIndex]sign.SigningKey
	verifiers map[board.TrusteeIndex]sign.VerifyingKey
}

// NewBoard creates an executor-backed board seeded with ConfigurationValid
// messages for trustees 1..p (spec §3's lifecycle rule), ready to drive
// through inference.Infer. It also generates an Ed25519 signing key for
// each trustee 1..p, standing in for the keys trustees would hold before
// the protocol starts; every message the executor later posts on a
// trustee's behalf is signed with that trustee's key and verified against
// its counterpart before being appended (spec §6: "External interfaces:
// Ed25519").
func NewBoard(ctx group.Context, cfgHash board.Hash, t, p uint8, width int) (*Board, error) {
	// Index 0 has no corresponding trustee; it signs Ballots messages,
	// which carry no individual Sender since a Ballots message collapses
	// to a single board entry regardless of which trustee proposed it
	// (board.Message.Collides never distinguishes Ballots by sender).
	signers := make(map[board.TrusteeIndex]sign.SigningKey, p+1)
	verifiers := make(map[board.TrusteeIndex]sign.VerifyingKey, p+1)
	for i := uint8(0); i <= p; i++ {
		sk, err := sign.Generate()
		if err != nil {
			return nil, err
		}
		signers[board.TrusteeIndex(i)] = sk
		verifiers[board.TrusteeIndex(i)] = sk.VerifyingKey()
	}

	return &Board{
		Log:               board.New(cfgHash, t, p),
		Ctx:               ctx,
		Width:             width,
		T:                 t,
		P:                 p,
		CfgHash:           cfgHash,
		dealers:           map[board.TrusteeIndex]dealerContribution{},
		keys:              map[board.TrusteeIndex]trusteeKeys{},
		ciphertextsByHash: map[board.Hash][]elgamal.Ciphertext{},
		mixes:             map[board.Hash]mixMaterial{},
		decryptionFactors: map[board.Hash]map[board.TrusteeIndex][]dkg.DecryptionFactor{},
		plaintextsByHash:  map[board.Hash][][]group.Element{},
		ballotsByHash:     map[board.Hash][][]group.Element{},
		signers:           signers,
		verifiers:         verifiers,
	}, nil
}

// appendSigned signs m under m.Sender's key, verifies that signature the
// way a peer receiving m over the board's transport would, and appends m
// to b.Log. A failed self-check here would indicate a bug in the executor
// rather than an adversarial message, since the executor is both signer
// and verifier in this single-process harness; the check is kept anyway
// so every posted message passes the same signature check a peer would
// apply. A tampered off-board shuffle proof (as in
// TestTamperedShuffleProofNeverGetsSigned) is not caught here: signMix
// refuses it through zkp.VerifyShuffle before any message is signed.
func (b *Board) appendSigned(m board.Message) error {
	sk, ok := b.signers[m.Sender]
	if !ok {
		return xerrors.New(xerrors.ProtocolError, "executor: no signing key for sender")
	}
	m.Sig = []byte(sk.Sign(m.SigningPayload()))
	if err := board.VerifyMessage(m, b.verifiers[m.Sender]); err != nil {
		return err
	}
	log, err := b.Log.Append(m)
	if err != nil {
		return err
	}
	b.Log = log
	return nil
}

// OriginalBallots returns the plaintext vectors ComputeBallots generated
// for a given ballots ciphertexts_hash, for tests that compare them
// against the recovered Plaintexts.
func (b *Board) OriginalBallots(ciphertextsHash board.Hash) ([][]group.Element, bool) {
	m, ok := b.ballotsByHash[ciphertextsHash]
	return m, ok
}

// Plaintexts returns the recovered plaintext vectors for a given
// plaintexts_hash, for tests that want to assert against the original
// ballots. It returns false if no ComputePlaintexts action for that
// hash has been applied yet.
func (b *Board) Plaintexts(plaintextsHash board.Hash) ([][]group.Element, bool) {
	m, ok := b.plaintextsByHash[plaintextsHash]
	return m, ok
}

// Apply executes action's cryptography and appends the resulting
// message to b.Log. If active is non-nil and does not mark
// action.Trustee present, the action is skipped (the trustee is not
// currently participating) and Apply returns false with no error. A
// trustee that IS active but whose cryptography is refused - an
// invalid shuffle proof under SignMix (spec §8 scenario 6) - also
// returns false with no error: that is a correct protocol outcome, not
// an executor failure.
func (b *Board) Apply(action inference.Action, active map[board.TrusteeIndex]bool) (bool, error) {
	if active != nil && !active[action.Trustee] {
		return false, nil
	}
	switch action.Kind {
	case inference.ComputeShares:
		return true, b.computeShares(action)
	case inference.ComputePublicKey:
		return true, b.computePublicKey(action)
	case inference.ComputeBallots:
		return true, b.computeBallots(action)
	case inference.ComputeMix:
		return true, b.computeMix(action)
	case inference.SignMix:
		return b.signMix(action)
	case inference.ComputePartialDecryptions:
		return true, b.computePartialDecryptions(action)
	case inference.ComputePlaintexts:
		return true, b.computePlaintexts(action)
	default:
		return false, xerrors.New(xerrors.ProtocolError, "executor: unknown action kind")
	}
}

// RunUntilStable repeatedly infers the board's currently enabled
// actions and applies a single one per round - one trustee's
// contribution at a time, mirroring the original's one-action-per-step
// model transitions - until inference reports an error or no active
// trustee's action can be applied. It returns the last inference.Result
// observed, so callers can distinguish "finished cleanly", "stuck
// because a required trustee is inactive" and "halted on a protocol
// error" (spec §8 scenarios 2, 3 and 4/5 respectively).
func (b *Board) RunUntilStable(active map[board.TrusteeIndex]bool, maxRounds int) (inference.Result, error) {
	var last inference.Result
	for round := 0; round < maxRounds; round++ {
		last = inference.Infer(b.Log, b.T, b.P)
		if last.HasErrors() {
			return last, nil
		}
		applied := false
		for _, action := range last.Actions {
			ok, err := b.Apply(action, active)
			if err != nil {
				return last, err
			}
			if ok {
				applied = true
				break
			}
		}
		if !applied {
			return last, nil
		}
	}
	return last, xerrors.New(xerrors.ProtocolError, "executor: did not reach a fixed point within maxRounds")
}

func (b *Board) computeShares(a inference.Action) error {
	commitments, shares, err := dkg.Deal(b.Ctx, b.T, b.P)
	if err != nil {
		return err
	}
	b.dealers[a.Trustee] = dealerContribution{commitments: commitments, sharesOut: shares}

	sharesHash := hashElements(commitments)
	return b.appendSigned(board.Shares(a.Cfg, sharesHash, a.Trustee))
}

func (b *Board) computePublicKey(a inference.Action) error {
	allCommitments := make([][]group.Element, b.P)
	for d := uint8(1); d <= b.P; d++ {
		dc, ok := b.dealers[board.TrusteeIndex(d)]
		if !ok {
			return xerrors.New(xerrors.ProtocolError, "executor: missing dealer contribution for public key combination")
		}
		allCommitments[d-1] = dc.commitments
	}

	shares := make([]dkg.Share, 0, b.P)
	for d := uint8(1); d <= b.P; d++ {
		dc := b.dealers[board.TrusteeIndex(d)]
		share := dc.sharesOut[a.Trustee-1]
		if err := dkg.VerifyShare(b.Ctx, dc.commitments, share); err != nil {
			return err
		}
		shares = append(shares, share)
	}
	combined, err := dkg.CombineShares(b.Ctx, shares)
	if err != nil {
		return err
	}
	vk := dkg.VerificationKey(b.Ctx, allCommitments, uint8(a.Trustee))
	b.keys[a.Trustee] = trusteeKeys{share: combined, vk: vk}

	if !b.havePK {
		pk, err := dkg.CombinePublicKey(b.Ctx, allCommitments)
		if err != nil {
			return err
		}
		nyPK, err := naoryung.Augment(b.Ctx, pk, b.CfgHash[:])
		if err != nil {
			return err
		}
		b.pk, b.nyPK, b.havePK = pk, nyPK, true
	}

	pkHash := hashElements([]group.Element{b.pk.Element()})
	return b.appendSigned(board.PublicKey(a.Cfg, pkHash, a.Trustee))
}

func (b *Board) computeBallots(a inference.Action) error {
	n := b.BallotCount
	if n <= 0 {
		n = DefaultBallotCount
	}

	plaintexts := make([][]group.Element, n)
	stripped := make([]elgamal.Ciphertext, n)
	for i := 0; i < n; i++ {
		m := make([]group.Element, b.Width)
		for w := 0; w < b.Width; w++ {
			e, err := b.Ctx.RandomElement()
			if err != nil {
				return err
			}
			m[w] = e
		}
		ct, err := b.nyPK.Encrypt(m)
		if err != nil {
			return err
		}
		eg, err := b.nyPK.Strip(ct)
		if err != nil {
			return err
		}
		plaintexts[i] = m
		stripped[i] = eg
	}

	ciphertextsHash := hashCiphertexts(stripped)
	b.ciphertextsByHash[ciphertextsHash] = stripped
	b.ballotsByHash[ciphertextsHash] = plaintexts

	mixingTrustees := make([]board.TrusteeIndex, b.T)
	for i := range mixingTrustees {
		mixingTrustees[i] = board.TrusteeIndex(i + 1)
	}

	pkHash := hashElements([]group.Element{b.pk.Element()})
	return b.appendSigned(board.Ballots(a.Cfg, pkHash, ciphertextsHash, mixingTrustees))
}

func (b *Board) computeMix(a inference.Action) error {
	input, ok := b.ciphertextsByHash[a.CiphertextsHash]
	if !ok {
		return xerrors.New(xerrors.ProtocolError, "executor: unknown ciphertexts hash for mix input")
	}
	n := len(input)

	perm, err := randomPermutation(n)
	if err != nil {
		return err
	}
	rho := make([]group.Scalar, n)
	for i := range rho {
		r, err := b.Ctx.RandomScalar()
		if err != nil {
			return err
		}
		rho[i] = r
	}

	output, proof, err := zkp.Shuffle(b.Ctx, b.pk, input, perm, rho)
	if err != nil {
		return err
	}
	outputHash := hashCiphertexts(output)
	b.ciphertextsByHash[outputHash] = output
	b.mixes[outputHash] = mixMaterial{input: input, output: output, proof: proof}

	return b.appendSigned(board.Mix(a.Cfg, a.PK, a.CiphertextsHash, outputHash, a.Trustee))
}

func (b *Board) signMix(a inference.Action) (bool, error) {
	mat, ok := b.mixes[a.Output]
	if !ok {
		return false, xerrors.New(xerrors.ProtocolError, "executor: unknown mix output for signing")
	}
	if err := zkp.VerifyShuffle(b.Ctx, b.pk, mat.input, mat.output, mat.proof); err != nil {
		return false, nil
	}
	if err := b.appendSigned(board.MixSignature(a.Cfg, a.PK, a.Input, a.Output, a.Trustee)); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Board) computePartialDecryptions(a inference.Action) error {
	cts, ok := b.ciphertextsByHash[a.CiphertextsHash]
	if !ok {
		return xerrors.New(xerrors.ProtocolError, "executor: unknown ciphertexts hash for partial decryption")
	}
	tk, ok := b.keys[a.Trustee]
	if !ok {
		return xerrors.New(xerrors.ProtocolError, "executor: trustee has no combined share yet")
	}

	factors := make([]dkg.DecryptionFactor, len(cts))
	for i, c := range cts {
		f, err := dkg.PartialDecrypt(b.Ctx, tk.share, tk.vk, c)
		if err != nil {
			return err
		}
		factors[i] = f
	}

	if b.decryptionFactors[a.CiphertextsHash] == nil {
		b.decryptionFactors[a.CiphertextsHash] = map[board.TrusteeIndex][]dkg.DecryptionFactor{}
	}
	b.decryptionFactors[a.CiphertextsHash][a.Trustee] = factors

	pdHash := hashDecryptionFactors(factors)
	return b.appendSigned(board.PartialDecryptions(a.Cfg, a.PK, a.CiphertextsHash, pdHash, a.Trustee))
}

func (b *Board) computePlaintexts(a inference.Action) error {
	cts, ok := b.ciphertextsByHash[a.CiphertextsHash]
	if !ok {
		return xerrors.New(xerrors.ProtocolError, "executor: unknown ciphertexts hash for plaintext recovery")
	}
	byTrustee := b.decryptionFactors[a.CiphertextsHash]
	if len(byTrustee) < int(b.T) {
		return xerrors.New(xerrors.ProtocolError, "executor: fewer than T partial decryptions available")
	}

	contributors := make([]board.TrusteeIndex, 0, len(byTrustee))
	for trustee := range byTrustee {
		contributors = append(contributors, trustee)
	}
	sort.Slice(contributors, func(i, j int) bool { return contributors[i] < contributors[j] })
	contributors = contributors[:b.T]

	recovered := make([][]group.Element, len(cts))
	for i, c := range cts {
		factors := make([]dkg.DecryptionFactor, 0, len(contributors))
		for _, trustee := range contributors {
			f := byTrustee[trustee][i]
			if err := dkg.VerifyDecryptionFactor(b.Ctx, b.keys[trustee].vk, c, f); err != nil {
				return err
			}
			factors = append(factors, f)
		}
		m, err := dkg.Recover(b.Ctx, c, factors)
		if err != nil {
			return err
		}
		recovered[i] = m
	}

	plaintextsHash := hashBallots(recovered)
	b.plaintextsByHash[plaintextsHash] = recovered

	return b.appendSigned(board.Plaintexts(a.Cfg, a.PK, a.CiphertextsHash, plaintextsHash, a.Trustee))
}

func encodeElements(es []group.Element) []byte {
	parts := make([][]byte, len(es))
	for i, e := range es {
		parts[i] = e.Bytes()
	}
	return serialize.Vector(parts)
}

func hashElements(es []group.Element) board.Hash {
	return board.HashBytes(encodeElements(es))
}

func encodeCiphertext(c elgamal.Ciphertext) []byte {
	combined := make([]group.Element, 0, len(c.U)+len(c.V))
	combined = append(combined, c.U...)
	combined = append(combined, c.V...)
	return encodeElements(combined)
}

func hashCiphertexts(cts []elgamal.Ciphertext) board.Hash {
	items := make([][]byte, len(cts))
	for i, c := range cts {
		items[i] = encodeCiphertext(c)
	}
	return board.HashBytes(serialize.Vector(items))
}

func hashDecryptionFactors(factors []dkg.DecryptionFactor) board.Hash {
	items := make([][]byte, len(factors))
	for i, f := range factors {
		items[i] = f.D.Bytes()
	}
	return board.HashBytes(serialize.Vector(items))
}

func hashBallots(bs [][]group.Element) board.Hash {
	items := make([][]byte, len(bs))
	for i, m := range bs {
		items[i] = encodeElements(m)
	}
	return board.HashBytes(serialize.Vector(items))
}

// randomPermutation draws a uniformly random permutation of 0..n-1 from
// the operating system's CSPRNG via Fisher-Yates (spec §5: "every
// random_* function MUST draw from a cryptographically secure RNG").
func randomPermutation(n int) ([]int, error) {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, xerrors.Wrap(xerrors.ProtocolError, "sampling shuffle permutation", err)
		}
		j := int(jBig.Int64())
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm, nil
}
