package group

import (
	"math/big"

	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"
)

// p256PlaintextBytes is the payload size of the P-256 plaintext encoding.
// The original source leaves this encoding unimplemented (spec §9 Open
// Questions); this is a Koblitz-style incremental-counter scheme: the
// payload plus a 1-byte counter are placed in the LOW 21 bytes of the
// x-coordinate (high 11 bytes held at zero), which keeps x far below the
// field prime P unconditionally, so every candidate x is a valid field
// element and only the curve-membership search (does x^3 - 3x + b have a
// square root mod P) needs to iterate.
const p256PlaintextBytes = 20

func (c P256) PlaintextSize() int { return p256PlaintextBytes }

func (c P256) Encode(payload []byte) (Element, error) {
	if len(payload) != p256PlaintextBytes {
		return nil, xerrors.New(xerrors.EncodingError, "p256 plaintext must be 20 bytes")
	}

	params := p256Curve().Params()
	p := params.P
	b := params.B

	var xbuf [32]byte
	copy(xbuf[12:], payload)

	for counter := 0; counter < 256; counter++ {
		xbuf[11] = byte(counter)
		x := new(big.Int).SetBytes(xbuf[:])

		y2 := rhsP256(x, p, b)
		y, ok := sqrtModP256(y2, p)
		if !ok {
			continue
		}
		return &p256Element{x: x, y: y}, nil
	}
	return nil, xerrors.New(xerrors.EncodingError, "failed to encode into p256 point")
}

func (c P256) Decode(e Element) ([]byte, error) {
	pe, ok := e.(*p256Element)
	if !ok || pe.infinity {
		return nil, xerrors.New(xerrors.EncodingError, "cannot decode the point at infinity")
	}
	var xbuf [32]byte
	pe.x.FillBytes(xbuf[:])
	out := make([]byte, p256PlaintextBytes)
	copy(out, xbuf[12:])
	return out, nil
}

// rhsP256 computes x^3 - 3x + b mod p, the right-hand side of the P-256
// curve equation y^2 = x^3 - 3x + b.
func rhsP256(x, p, b *big.Int) *big.Int {
	x3 := new(big.Int).Exp(x, big.NewInt(3), p)
	threeX := new(big.Int).Mul(x, big.NewInt(3))
	out := new(big.Int).Sub(x3, threeX)
	out.Add(out, b)
	return out.Mod(out, p)
}

// sqrtModP256 computes a square root of v mod p using p ≡ 3 (mod 4),
// where sqrt = v^((p+1)/4) mod p, and verifies the result.
func sqrtModP256(v, p *big.Int) (*big.Int, bool) {
	exp := new(big.Int).Add(p, big.NewInt(1))
	exp.Rsh(exp, 2)
	root := new(big.Int).Exp(v, exp, p)
	check := new(big.Int).Exp(root, big.NewInt(2), p)
	if check.Cmp(new(big.Int).Mod(v, p)) != 0 {
		return nil, false
	}
	return root, true
}
