// Package elgamal implements width-W ElGamal encryption over a prime-order
// group context (spec §4.3, "EVS: Definition 11.15"). A ciphertext pairs two
// equal-length vectors of group elements rather than a single pair, so a
// single key pair can encrypt a product-group plaintext (e.g. a ballot with
// several parallel choices) in one exponentiation per component.
package elgamal

import (
	"github.com/FreeAndFair/MobileVotingCoreCryptography/group"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"
)

// KeyPair is an ElGamal secret/public key pair: pk = g^sk.
type KeyPair struct {
	ctx group.Context
	sk  group.Scalar
	pk  group.Element
}

// PublicKey is the public half of a KeyPair, usable on its own for
// encryption and re-encryption.
type PublicKey struct {
	ctx group.Context
	pk  group.Element
}

// Ciphertext is a width-W ElGamal ciphertext: U[i] = g^r (replicated),
// V[i] = pk^r * M[i], for i in 0..W.
type Ciphertext struct {
	U []group.Element
	V []group.Element
}

// Width reports W, the number of parallel plaintext components.
func (c Ciphertext) Width() int { return len(c.U) }

// Generate samples a fresh ElGamal key pair.
func Generate(ctx group.Context) (KeyPair, error) {
	sk, err := ctx.RandomScalar()
	if err != nil {
		return KeyPair{}, xerrors.Wrap(xerrors.ProtocolError, "sampling elgamal secret key", err)
	}
	return KeyPair{ctx: ctx, sk: sk, pk: ctx.GExp(sk)}, nil
}

// FromSecret constructs a KeyPair from an existing secret scalar, used when
// the secret share comes from DKG combination (spec §4.6) rather than
// fresh sampling.
func FromSecret(ctx group.Context, sk group.Scalar) KeyPair {
	return KeyPair{ctx: ctx, sk: sk, pk: ctx.GExp(sk)}
}

func (kp KeyPair) PublicKey() PublicKey { return PublicKey{ctx: kp.ctx, pk: kp.pk} }
func (kp KeyPair) Secret() group.Scalar { return kp.sk }

// Element returns the underlying group element pk = g^sk, for use by
// callers (e.g. the shuffle proof) that need to combine it algebraically
// with other elements.
func (pk PublicKey) Element() group.Element { return pk.pk }

// NewPublicKey wraps a raw group element as a PublicKey, used when the key
// comes from DKG combination rather than local generation.
func NewPublicKey(ctx group.Context, pk group.Element) PublicKey {
	return PublicKey{ctx: ctx, pk: pk}
}

// Encrypt encrypts a width-W plaintext vector under pk, sampling fresh
// randomness r: U[i] = g^r, V[i] = pk^r * M[i].
func (pk PublicKey) Encrypt(m []group.Element) (Ciphertext, error) {
	r, err := pk.ctx.RandomScalar()
	if err != nil {
		return Ciphertext{}, xerrors.Wrap(xerrors.ProtocolError, "sampling elgamal randomness", err)
	}
	return pk.EncryptWithRandomness(m, r)
}

// EncryptWithRandomness encrypts under an explicitly supplied r. Used by
// Naor-Yung (which needs the same r for both component ciphertexts) and by
// proof construction (which needs the randomness to build the witness).
func (pk PublicKey) EncryptWithRandomness(m []group.Element, r group.Scalar) (Ciphertext, error) {
	w := len(m)
	gr := pk.ctx.GExp(r)
	pkr := pk.pk.ScalarMult(r)

	u := make([]group.Element, w)
	v := make([]group.Element, w)
	for i := 0; i < w; i++ {
		u[i] = gr
		v[i] = pkr.Add(m[i])
	}
	return Ciphertext{U: u, V: v}, nil
}

// Decrypt recovers the plaintext vector: M[i] = V[i] - U[i]^sk.
func (kp KeyPair) Decrypt(c Ciphertext) ([]group.Element, error) {
	if len(c.U) != len(c.V) {
		return nil, xerrors.New(xerrors.ProtocolError, "elgamal ciphertext component length mismatch")
	}
	negSk := kp.sk.Neg()
	out := make([]group.Element, len(c.V))
	for i := range c.V {
		out[i] = c.V[i].Add(c.U[i].ScalarMult(negSk))
	}
	return out, nil
}

// ReEncrypt homomorphically re-randomizes a ciphertext: (u, v) -> (u*g^r',
// v*pk^r') for a fresh r'. The result decrypts to the same plaintext but is
// unlinkable to the input under the DDH assumption.
func (pk PublicKey) ReEncrypt(c Ciphertext) (Ciphertext, error) {
	r, err := pk.ctx.RandomScalar()
	if err != nil {
		return Ciphertext{}, xerrors.Wrap(xerrors.ProtocolError, "sampling re-encryption randomness", err)
	}
	return pk.ReEncryptWithRandomness(c, r)
}

// ReEncryptWithRandomness re-encrypts with an explicit randomness value,
// used by the shuffle proof (zkp package) which must know rho per output.
func (pk PublicKey) ReEncryptWithRandomness(c Ciphertext, r group.Scalar) (Ciphertext, error) {
	if len(c.U) != len(c.V) {
		return Ciphertext{}, xerrors.New(xerrors.ProtocolError, "elgamal ciphertext component length mismatch")
	}
	gr := pk.ctx.GExp(r)
	pkr := pk.pk.ScalarMult(r)
	w := len(c.U)
	u := make([]group.Element, w)
	v := make([]group.Element, w)
	for i := 0; i < w; i++ {
		u[i] = c.U[i].Add(gr)
		v[i] = c.V[i].Add(pkr)
	}
	return Ciphertext{U: u, V: v}, nil
}
