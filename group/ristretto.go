package group

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/gtank/ristretto255"
	"golang.org/x/crypto/sha3"

	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/parallel"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"
)

// ristrettoScalar wraps gtank/ristretto255.Scalar to satisfy Scalar.
type ristrettoScalar struct{ s *ristretto255.Scalar }

func (r ristrettoScalar) Add(o Scalar) Scalar {
	out := ristretto255.NewScalar()
	out.Add(r.s, o.(ristrettoScalar).s)
	return ristrettoScalar{out}
}

func (r ristrettoScalar) Sub(o Scalar) Scalar {
	out := ristretto255.NewScalar()
	out.Subtract(r.s, o.(ristrettoScalar).s)
	return ristrettoScalar{out}
}

func (r ristrettoScalar) Mul(o Scalar) Scalar {
	out := ristretto255.NewScalar()
	out.Multiply(r.s, o.(ristrettoScalar).s)
	return ristrettoScalar{out}
}

func (r ristrettoScalar) Invert() Scalar {
	out := ristretto255.NewScalar()
	out.Invert(r.s)
	return ristrettoScalar{out}
}

func (r ristrettoScalar) Neg() Scalar {
	out := ristretto255.NewScalar()
	out.Negate(r.s)
	return ristrettoScalar{out}
}

func (r ristrettoScalar) Equal(o Scalar) bool {
	return r.s.Equal(o.(ristrettoScalar).s) == 1
}

func (r ristrettoScalar) IsZero() bool {
	zero := ristretto255.NewScalar()
	return r.s.Equal(zero) == 1
}

func (r ristrettoScalar) Bytes() []byte { return r.s.Encode(nil) }

func (r ristrettoScalar) SetBytes(b []byte) error {
	if err := r.s.Decode(b); err != nil {
		return xerrors.Wrap(xerrors.DeserializationError, "ristretto255 scalar decode", err)
	}
	return nil
}

func (r ristrettoScalar) Clone() Scalar {
	out := ristretto255.NewScalar()
	out.Add(out, r.s)
	return ristrettoScalar{out}
}

// ristrettoElement wraps gtank/ristretto255.Element to satisfy Element.
type ristrettoElement struct{ e *ristretto255.Element }

func (r ristrettoElement) Add(o Element) Element {
	out := ristretto255.NewElement()
	out.Add(r.e, o.(ristrettoElement).e)
	return ristrettoElement{out}
}

func (r ristrettoElement) Sub(o Element) Element {
	out := ristretto255.NewElement()
	out.Subtract(r.e, o.(ristrettoElement).e)
	return ristrettoElement{out}
}

func (r ristrettoElement) Neg() Element {
	out := ristretto255.NewElement()
	out.Negate(r.e)
	return ristrettoElement{out}
}

func (r ristrettoElement) ScalarMult(s Scalar) Element {
	out := ristretto255.NewElement()
	out.ScalarMult(s.(ristrettoScalar).s, r.e)
	return ristrettoElement{out}
}

func (r ristrettoElement) Equal(o Element) bool {
	return r.e.Equal(o.(ristrettoElement).e) == 1
}

func (r ristrettoElement) IsIdentity() bool {
	id := ristretto255.NewElement()
	return r.e.Equal(id) == 1
}

func (r ristrettoElement) Bytes() []byte { return r.e.Encode(nil) }

func (r ristrettoElement) SetBytes(b []byte) error {
	if err := r.e.Decode(b); err != nil {
		return xerrors.Wrap(xerrors.DeserializationError, "ristretto255 element decode", err)
	}
	return nil
}

func (r ristrettoElement) Clone() Element {
	out := ristretto255.NewElement()
	out.Add(out, r.e)
	return ristrettoElement{out}
}

// Ristretto255 is the Ristretto255 group context: hash-to-scalar and
// hash-to-element via Sha3-512 wide reduction (spec §4.1), Sha3-512 as
// the context's hash function (spec §3, §6).
type Ristretto255 struct{}

var _ Context = Ristretto255{}

func (Ristretto255) Name() string { return "ristretto255" }

func (Ristretto255) Generator() Element {
	one := ristretto255.NewScalar()
	one.Add(one, scalarOne())
	out := ristretto255.NewElement()
	out.ScalarBaseMult(one)
	return ristrettoElement{out}
}

func scalarOne() *ristretto255.Scalar {
	var buf [32]byte
	buf[0] = 1
	s := ristretto255.NewScalar()
	_ = s.Decode(buf[:])
	return s
}

func (Ristretto255) GExp(s Scalar) Element {
	out := ristretto255.NewElement()
	out.ScalarBaseMult(s.(ristrettoScalar).s)
	return ristrettoElement{out}
}

func (Ristretto255) NewScalar() Scalar   { return ristrettoScalar{ristretto255.NewScalar()} }
func (Ristretto255) NewElement() Element { return ristrettoElement{ristretto255.NewElement()} }

// ScalarFromUint64 encodes v into the scalar's 32-byte little-endian wire
// form directly, the same pattern Generator uses for the constant 1.
func (Ristretto255) ScalarFromUint64(v uint64) Scalar {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[:8], v)
	s := ristretto255.NewScalar()
	_ = s.Decode(buf[:])
	return ristrettoScalar{s}
}

func (c Ristretto255) RandomScalar() (Scalar, error) {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, xerrors.Wrap(xerrors.HashToScalarError, "reading randomness", err)
	}
	s := ristretto255.NewScalar()
	s.FromUniformBytes(buf[:])
	return ristrettoScalar{s}, nil
}

func (c Ristretto255) RandomElement() (Element, error) {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, xerrors.Wrap(xerrors.HashToElementError, "reading randomness", err)
	}
	e := ristretto255.NewElement()
	e.FromUniformBytes(buf[:])
	return ristrettoElement{e}, nil
}

// sha3_512Transcript hashes data slices interleaved with their
// domain-separation tags, following the original's update_hasher: for
// each slice, write the slice then (if present) its tag.
func sha3_512Transcript(slices [][]byte, dsTags [][]byte) []byte {
	h := sha3.New512()
	for i, s := range slices {
		h.Write(s)
		if i < len(dsTags) {
			h.Write(dsTags[i])
		}
	}
	return h.Sum(nil)
}

func (c Ristretto255) HashToScalar(slices [][]byte, dsTags [][]byte) (Scalar, error) {
	digest := sha3_512Transcript(slices, dsTags)
	s := ristretto255.NewScalar()
	s.FromUniformBytes(digest)
	return ristrettoScalar{s}, nil
}

func (c Ristretto255) HashToElement(slices [][]byte, dsTags [][]byte) (Element, error) {
	digest := sha3_512Transcript(slices, dsTags)
	e := ristretto255.NewElement()
	e.FromUniformBytes(digest)
	return ristrettoElement{e}, nil
}

// IndGenerators derives n generators by hashing (label || i) under the
// domain-separation tag "independent_generators_ristretto255_counter",
// computed in parallel (spec §4.1, §5).
func (c Ristretto255) IndGenerators(n int, label []byte) ([]Element, error) {
	out := make([]Element, n)
	tag := []byte("independent_generators_ristretto255_counter")
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

func (c Ristretto255) ScalarSize() int  { return 32 }
func (c Ristretto255) ElementSize() int { return 32 }

func be64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
