// Package serialize implements the deterministic, versionless byte
// encoding used for the bulletin board's message signing payload (board)
// and for the content hashes the executor publishes (executor). It has
// two length disciplines (spec §6):
//
//   - Variable-length values carry an 8-byte big-endian byte-length
//     prefix: each item of a Vector, every field of a Tuple except the
//     last, and a String.
//   - LargeVector prefixes the whole sequence once, with the *count* of
//     fixed-size elements rather than a byte length, since every element
//     already has a known, uniform size.
package serialize

import (
	"encoding/binary"

	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/parallel"
	"github.com/FreeAndFair/MobileVotingCoreCryptography/internal/xerrors"
)

// LengthBytes is the width of every length prefix used by this package,
// matching the original's LengthU = u64.
const LengthBytes = 8

func putLength(n int) []byte {
	b := make([]byte, LengthBytes)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}

func takeLength(buf []byte) (int, []byte, error) {
	if len(buf) < LengthBytes {
		return 0, nil, xerrors.New(xerrors.DeserializationError, "truncated length prefix")
	}
	n := binary.BigEndian.Uint64(buf[:LengthBytes])
	return int(n), buf[LengthBytes:], nil
}

// Vector serializes a sequence of already-encoded variable-length values,
// each as <8-byte length><bytes>, matching Vec<T>::ser in the original.
func Vector(items [][]byte) []byte {
	var out []byte
	for _, it := range items {
		out = append(out, putLength(len(it))...)
		out = append(out, it...)
	}
	return out
}

// DeserVector splits a buffer produced by Vector back into its items.
func DeserVector(buf []byte) ([][]byte, error) {
	var out [][]byte
	rest := buf
	for len(rest) > 0 {
		n, tail, err := takeLength(rest)
		if err != nil {
			return nil, err
		}
		if len(tail) < n {
			return nil, xerrors.New(xerrors.DeserializationError, "vector item truncated")
		}
		out = append(out, tail[:n])
		rest = tail[n:]
	}
	return out, nil
}

// Tuple serializes a heterogeneous sequence the way the original's
// generate_tuple_impl macro does: every element but the last is preceded
// by its own 8-byte length prefix, and the final element is appended with
// no prefix (its own end is simply the end of the buffer). This lets a
// tuple of (A, B, C) be parsed by peeling A, then B, leaving C as
// whatever remains.
func Tuple(parts ...[]byte) []byte {
	var out []byte
	for i, p := range parts {
		if i < len(parts)-1 {
			out = append(out, putLength(len(p))...)
		}
		out = append(out, p...)
	}
	return out
}

// DeserTuple is the inverse of Tuple for a tuple of arity n: it returns
// exactly n byte slices, the last of which is whatever bytes remain
// after peeling the first n-1 length-prefixed fields.
func DeserTuple(buf []byte, n int) ([][]byte, error) {
	if n <= 0 {
		return nil, xerrors.New(xerrors.DeserializationError, "tuple arity must be positive")
	}
	parts := make([][]byte, n)
	rest := buf
	for i := 0; i < n-1; i++ {
		l, tail, err := takeLength(rest)
		if err != nil {
			return nil, err
		}
		if len(tail) < l {
			return nil, xerrors.New(xerrors.DeserializationError, "tuple field truncated")
		}
		parts[i] = tail[:l]
		rest = tail[l:]
	}
	parts[n-1] = rest
	return parts, nil
}

// String serializes a UTF-8 string as a variable-length value. Mirrors
// the original's VSerializable impl for String, used only by test
// fixtures and diagnostic message fields.
func String(s string) []byte {
	b := []byte(s)
	return append(putLength(len(b)), b...)
}

func DeserString(buf []byte) (string, error) {
	n, tail, err := takeLength(buf)
	if err != nil {
		return "", err
	}
	if len(tail) < n {
		return "", xerrors.New(xerrors.DeserializationError, "string field truncated")
	}
	return string(tail[:n]), nil
}

// Uint32 serializes a uint32 big-endian, used for ParticipantPosition-
// style small integers (spec §4.6, trustee indices).
func Uint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func DeserUint32(buf []byte) (uint32, error) {
	if len(buf) != 4 {
		return 0, xerrors.New(xerrors.DeserializationError, "uint32 field must be 4 bytes")
	}
	return binary.BigEndian.Uint32(buf), nil
}

// LargeVector serializes a sequence of n fixed-size elements of uniform
// width size, each encoded by toBytes, into <8-byte count><elements...>.
// Encoding is split into parallel.ChunkSize chunks and assembled in
// order, matching the original's rayon-chunked LargeVector::ser.
func LargeVector[T any](items []T, size int, toBytes func(T) []byte) []byte {
	chunkCount := (len(items) + parallel.ChunkSize - 1) / parallel.ChunkSize
	if chunkCount == 0 {
		return putLength(0)
	}
	chunks := make([][]byte, chunkCount)
	_ = parallel.Chunks(len(items), func(start, end int) error {
		buf := make([]byte, 0, (end-start)*size)
		for i := start; i < end; i++ {
			buf = append(buf, toBytes(items[i])...)
		}
		chunks[start/parallel.ChunkSize] = buf
		return nil
	})

	out := make([]byte, 0, LengthBytes+len(items)*size)
	out = append(out, putLength(len(items))...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// DeserLargeVector is the inverse of LargeVector: it reads the element
// count, verifies the remaining bytes factor exactly into count elements
// of width size, then decodes each chunk in parallel via fromBytes.
func DeserLargeVector[T any](buf []byte, size int, fromBytes func([]byte) (T, error)) ([]T, error) {
	n, tail, err := takeLength(buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if len(tail) != 0 {
			return nil, xerrors.New(xerrors.DeserializationError, "unexpected trailing bytes for empty LargeVector")
		}
		return nil, nil
	}
	if len(tail) != n*size {
		return nil, xerrors.New(xerrors.DeserializationError, "unexpected chunk size for LargeVector")
	}

	out := make([]T, n)
	chunkErr := parallel.Chunks(n, func(start, end int) error {
		for i := start; i < end; i++ {
			v, err := fromBytes(tail[i*size : (i+1)*size])
			if err != nil {
				return err
			}
			out[i] = v
		}
		return nil
	})
	if chunkErr != nil {
		return nil, chunkErr
	}
	return out, nil
}
