package group

import (
	"crypto/elliptic"
	"crypto/rand"
	"math/big"

	"golang.org/x/crypto/sha3"

	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/parallel"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"
)

// p256Scalar is an integer modulo the P-256 group order N.
type p256Scalar struct{ v *big.Int }

func p256Curve() elliptic.Curve { return elliptic.P256() }

func p256Mod(v *big.Int) *big.Int {
	n := p256Curve().Params().N
	return new(big.Int).Mod(v, n)
}

func (s p256Scalar) Add(o Scalar) Scalar {
	return p256Scalar{p256Mod(new(big.Int).Add(s.v, o.(p256Scalar).v))}
}

func (s p256Scalar) Sub(o Scalar) Scalar {
	return p256Scalar{p256Mod(new(big.Int).Sub(s.v, o.(p256Scalar).v))}
}

func (s p256Scalar) Mul(o Scalar) Scalar {
	return p256Scalar{p256Mod(new(big.Int).Mul(s.v, o.(p256Scalar).v))}
}

func (s p256Scalar) Invert() Scalar {
	n := p256Curve().Params().N
	return p256Scalar{new(big.Int).ModInverse(s.v, n)}
}

func (s p256Scalar) Neg() Scalar {
	return p256Scalar{p256Mod(new(big.Int).Neg(s.v))}
}

func (s p256Scalar) Equal(o Scalar) bool { return s.v.Cmp(o.(p256Scalar).v) == 0 }
func (s p256Scalar) IsZero() bool        { return s.v.Sign() == 0 }

func (s p256Scalar) Bytes() []byte {
	b := make([]byte, 32)
	s.v.FillBytes(b)
	return b
}

func (s p256Scalar) SetBytes(b []byte) error {
	if len(b) != 32 {
		return xerrors.New(xerrors.DeserializationError, "p256 scalar must be 32 bytes")
	}
	s.v.SetBytes(b)
	s.v.Mod(s.v, p256Curve().Params().N)
	return nil
}

func (s p256Scalar) Clone() Scalar { return p256Scalar{new(big.Int).Set(s.v)} }

// p256Element is a point on the P-256 curve, or the point at infinity
// when infinity is true. Element is always held as *p256Element so that
// SetBytes can mutate in place.
type p256Element struct {
	x, y     *big.Int
	infinity bool
}

func (e *p256Element) Add(o Element) Element {
	ov := o.(*p256Element)
	if e.infinity {
		return ov.Clone()
	}
	if ov.infinity {
		return e.Clone()
	}
	x, y := p256Curve().Add(e.x, e.y, ov.x, ov.y)
	return &p256Element{x: x, y: y}
}

func (e *p256Element) Neg() Element {
	if e.infinity {
		return &p256Element{infinity: true}
	}
	p := p256Curve().Params().P
	return &p256Element{x: new(big.Int).Set(e.x), y: new(big.Int).Sub(p, e.y)}
}

func (e *p256Element) Sub(o Element) Element {
	return e.Add(o.Neg())
}

func (e *p256Element) ScalarMult(s Scalar) Element {
	if e.infinity {
		return &p256Element{infinity: true}
	}
	k := s.(p256Scalar).v.Bytes()
	x, y := p256Curve().ScalarMult(e.x, e.y, k)
	if x.Sign() == 0 && y.Sign() == 0 {
		return &p256Element{infinity: true}
	}
	return &p256Element{x: x, y: y}
}

func (e *p256Element) Equal(o Element) bool {
	ov := o.(*p256Element)
	if e.infinity || ov.infinity {
		return e.infinity == ov.infinity
	}
	return e.x.Cmp(ov.x) == 0 && e.y.Cmp(ov.y) == 0
}

func (e *p256Element) IsIdentity() bool { return e.infinity }

// Bytes encodes the element using SEC1 compressed form (33 bytes),
// matching spec §6's "P-256 SEC1 compressed: 33 bytes".
func (e *p256Element) Bytes() []byte {
	if e.infinity {
		return make([]byte, 33)
	}
	out := make([]byte, 33)
	if e.y.Bit(0) == 0 {
		out[0] = 0x02
	} else {
		out[0] = 0x03
	}
	e.x.FillBytes(out[1:])
	return out
}

func (e *p256Element) SetBytes(b []byte) error {
	if len(b) != 33 {
		return xerrors.New(xerrors.DeserializationError, "p256 element must be 33 bytes (SEC1 compressed)")
	}
	zero := true
	for _, c := range b {
		if c != 0 {
			zero = false
			break
		}
	}
	if zero {
		e.infinity = true
		e.x, e.y = nil, nil
		return nil
	}
	if b[0] != 0x02 && b[0] != 0x03 {
		return xerrors.New(xerrors.DeserializationError, "invalid p256 SEC1 compressed tag")
	}
	curve := p256Curve().Params()
	x := new(big.Int).SetBytes(b[1:])
	y, ok := p256YFromX(x, b[0] == 0x03)
	if !ok {
		return xerrors.New(xerrors.DeserializationError, "p256 x-coordinate is not on curve")
	}
	if x.Cmp(curve.P) >= 0 {
		return xerrors.New(xerrors.DeserializationError, "p256 x-coordinate out of range")
	}
	e.x, e.y, e.infinity = x, y, false
	return nil
}

// p256YFromX recovers a y-coordinate for x on the P-256 curve equation
// y^2 = x^3 - 3x + b mod p, selecting the root whose parity matches odd.
func p256YFromX(x *big.Int, odd bool) (*big.Int, bool) {
	params := p256Curve().Params()
	p := params.P

	x3 := new(big.Int).Exp(x, big.NewInt(3), p)
	threeX := new(big.Int).Mul(x, big.NewInt(3))
	rhs := new(big.Int).Sub(x3, threeX)
	rhs.Add(rhs, params.B)
	rhs.Mod(rhs, p)

	// p ≡ 3 mod 4 for P-256, so sqrt(a) = a^((p+1)/4) mod p when a is a QR.
	exp := new(big.Int).Add(p, big.NewInt(1))
	exp.Rsh(exp, 2)
	y := new(big.Int).Exp(rhs, exp, p)

	check := new(big.Int).Exp(y, big.NewInt(2), p)
	if check.Cmp(rhs) != 0 {
		return nil, false
	}
	if y.Bit(0) == 1 != odd {
		y = new(big.Int).Sub(p, y)
	}
	return y, true
}

func (e *p256Element) Clone() Element {
	if e.infinity {
		return &p256Element{infinity: true}
	}
	return &p256Element{x: new(big.Int).Set(e.x), y: new(big.Int).Set(e.y)}
}

// P256 is the NIST P-256 group context. No pack dependency provides a
// prime-order group over this curve (gnark-crypto ships BN254/BLS
// families, decred's secp256k1 is a different curve), so this context is
// built on the standard library's crypto/elliptic — see DESIGN.md.
type P256 struct{}

var _ Context = P256{}

func (P256) Name() string { return "p256" }

func (P256) Generator() Element {
	params := p256Curve().Params()
	return &p256Element{x: new(big.Int).Set(params.Gx), y: new(big.Int).Set(params.Gy)}
}

func (c P256) GExp(s Scalar) Element {
	x, y := p256Curve().ScalarBaseMult(s.(p256Scalar).v.Bytes())
	return &p256Element{x: x, y: y}
}

func (P256) NewScalar() Scalar   { return p256Scalar{big.NewInt(0)} }
func (P256) NewElement() Element { return &p256Element{infinity: true} }

// ScalarFromUint64 wraps v directly in a big.Int; p256Scalar's underlying
// representation has no byte-order pitfall to avoid.
func (P256) ScalarFromUint64(v uint64) Scalar {
	return p256Scalar{new(big.Int).SetUint64(v)}
}

func (c P256) RandomScalar() (Scalar, error) {
	n := p256Curve().Params().N
	v, err := rand.Int(rand.Reader, n)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.HashToScalarError, "reading randomness", err)
	}
	return p256Scalar{v}, nil
}

func (c P256) RandomElement() (Element, error) {
	s, err := c.RandomScalar()
	if err != nil {
		return nil, err
	}
	return c.GExp(s), nil
}

// expandMessageXMDSha3256 implements expand_message_xmd from RFC 9380
// §5.3.1 using Sha3-256, ported from wurp-go-oprf's SHA-512 instance.
func expandMessageXMDSha3256(msg, dst []byte, lenInBytes int) ([]byte, error) {
	const outBytes = 32
	const blockSize = 136 // SHA3-256 rate

	ell := (lenInBytes + outBytes - 1) / outBytes
	if ell > 255 {
		return nil, xerrors.New(xerrors.HashToScalarError, "expand_message_xmd: len too large")
	}

	dstPrime := append(append([]byte{}, dst...), byte(len(dst)))
	zPad := make([]byte, blockSize)
	libStr := []byte{byte(lenInBytes >> 8), byte(lenInBytes)}

	h := sha3.New256()
	h.Write(zPad)
	h.Write(msg)
	h.Write(libStr)
	h.Write([]byte{0})
	h.Write(dstPrime)
	b0 := h.Sum(nil)

	h.Reset()
	h.Write(b0)
	h.Write([]byte{1})
	h.Write(dstPrime)
	b1 := h.Sum(nil)

	out := make([]byte, 0, ell*outBytes)
	out = append(out, b1...)
	prev := b1
	for i := 2; i <= ell; i++ {
		xored := make([]byte, outBytes)
		for j := range xored {
			xored[j] = b0[j] ^ prev[j]
		}
		h.Reset()
		h.Write(xored)
		h.Write([]byte{byte(i)})
		h.Write(dstPrime)
		bi := h.Sum(nil)
		out = append(out, bi...)
		prev = bi
	}
	return out[:lenInBytes], nil
}

func p256Transcript(slices [][]byte, dsTags [][]byte) []byte {
	var msg []byte
	for i, s := range slices {
		msg = append(msg, s...)
		if i < len(dsTags) {
			msg = append(msg, dsTags[i]...)
		}
	}
	return msg
}

func (c P256) HashToScalar(slices [][]byte, dsTags [][]byte) (Scalar, error) {
	msg := p256Transcript(slices, dsTags)
	// L = ceil((ceil(log2(n)) + k) / 8) with k = 128 security bits, n ~ 256 bits => L = 48.
	uniform, err := expandMessageXMDSha3256(msg, []byte("MOBILEVOTE-P256-HASH-TO-SCALAR"), 48)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.HashToScalarError, "expand_message_xmd", err)
	}
	v := new(big.Int).SetBytes(uniform)
	return p256Scalar{p256Mod(v)}, nil
}

// HashToElement derives a P-256 point deterministically from the
// transcript. It does not implement the full RFC 9380 simplified-SWU
// map (out of scope for this core's budget); instead it expands the
// transcript to a candidate x-coordinate and a parity bit and walks a
// deterministic counter until the curve equation has a root, the same
// technique used by Encode/Decode (group/p256_plaintext.go).
func (c P256) HashToElement(slices [][]byte, dsTags [][]byte) (Element, error) {
	msg := p256Transcript(slices, dsTags)
	p := p256Curve().Params().P
	for counter := 0; counter < 256; counter++ {
		uniform, err := expandMessageXMDSha3256(append(msg, byte(counter)), []byte("MOBILEVOTE-P256-HASH-TO-CURVE"), 48)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.HashToElementError, "expand_message_xmd", err)
		}
		x := new(big.Int).Mod(new(big.Int).SetBytes(uniform), p)
		if y, ok := p256YFromX(x, uniform[len(uniform)-1]&1 == 1); ok {
			return &p256Element{x: x, y: y}, nil
		}
	}
	return nil, xerrors.New(xerrors.HashToElementError, "failed to hash to p256 point")
}

// IndGenerators derives n generators by hashing (label || i) under the
// domain-separation tag "independent_generators_p256_counter", computed
// in parallel (spec §4.1, §5).
func (c P256) IndGenerators(n int, label []byte) ([]Element, error) {
	out := make([]Element, n)
	tag := []byte("independent_generators_p256_counter")
	err := parallel.For(n, func(i int) error {
		var idx [8]byte
		be64(idx[:], uint64(i))
		e, err := c.HashToElement([][]byte{label, idx[:]}, [][]byte{tag, tag})
		if err != nil {
			return err
		}
		out[i] = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c P256) ScalarSize() int  { return 32 }
func (c P256) ElementSize() int { return 33 }
