package group

import "github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"

// ristrettoPlaintextBytes is the payload size of the Ristretto255
// plaintext encoding: 30 bytes placed in the middle of a 32-byte
// compressed point representation, leaving byte 0 (a 7-bit "variant"
// counter, even values only) and byte 31 (a "j" counter, 0..63) free to
// search for a valid compressed encoding.
//
// Ported from the reference encode/decode search: for j in 0..64, for i
// in 0..128, try byte[0] = 2*i, byte[31] = j until CompressedRistretto
// decompresses. See https://github.com/hdevalence/ristretto255-data-encoding.
const ristrettoPlaintextBytes = 30

func (c Ristretto255) PlaintextSize() int { return ristrettoPlaintextBytes }

func (c Ristretto255) Encode(payload []byte) (Element, error) {
	if len(payload) != ristrettoPlaintextBytes {
		return nil, xerrors.New(xerrors.EncodingError, "ristretto255 plaintext must be 30 bytes")
	}

	var bytes [32]byte
	copy(bytes[1:1+len(payload)], payload)

	for j := 0; j < 64; j++ {
		bytes[31] = byte(j)
		for i := 0; i < 128; i++ {
			bytes[0] = byte(2 * i)
			e := c.NewElement()
			if err := e.SetBytes(bytes[:]); err == nil {
				return e, nil
			}
		}
	}
	return nil, xerrors.New(xerrors.EncodingError, "failed to encode into ristretto255 point")
}

func (c Ristretto255) Decode(e Element) ([]byte, error) {
	encoded := e.Bytes()
	if len(encoded) != 32 {
		return nil, xerrors.New(xerrors.EncodingError, "unexpected ristretto255 element length")
	}
	out := make([]byte, ristrettoPlaintextBytes)
	copy(out, encoded[1:1+ristrettoPlaintextBytes])
	return out, nil
}
