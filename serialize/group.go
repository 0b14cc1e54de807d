package serialize

import "github.com/FreeAndFair/MobileVotingCoreCryptography/group"

// Scalars serializes a slice of scalars as a LargeVector, since every
// scalar in a given group context has the same fixed width.
func Scalars(ctx group.Context, ss []group.Scalar) []byte {
	return LargeVector(ss, ctx.ScalarSize(), func(s group.Scalar) []byte { return s.Bytes() })
}

func DeserScalars(ctx group.Context, buf []byte) ([]group.Scalar, error) {
	return DeserLargeVector(buf, ctx.ScalarSize(), func(b []byte) (group.Scalar, error) {
		s := ctx.NewScalar()
		if err := s.SetBytes(b); err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Elements serializes a slice of group elements as a LargeVector.
func Elements(ctx group.Context, es []group.Element) []byte {
	return LargeVector(es, ctx.ElementSize(), func(e group.Element) []byte { return e.Bytes() })
}

func DeserElements(ctx group.Context, buf []byte) ([]group.Element, error) {
	return DeserLargeVector(buf, ctx.ElementSize(), func(b []byte) (group.Element, error) {
		e := ctx.NewElement()
		if err := e.SetBytes(b); err != nil {
			return nil, err
		}
		return e, nil
	})
}
