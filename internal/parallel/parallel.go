// Package parallel provides the chunked, worker-pool execution helpers
// used by independent-generator derivation, LargeVector serialization and
// bulk proof verification (spec §5: these are the only places the core
// parallelizes, since the engine and executor themselves are single-shot
// pure functions over a message snapshot).
package parallel

import "golang.org/x/sync/errgroup"

// ChunkSize is the default chunk size for LargeVector-style serialization,
// mirroring the original implementation's LARGEVECTOR_CHUNK_SIZE.
const ChunkSize = 256

// For runs fn(i) for every i in [0, n) concurrently and, once every call
// has returned, reports the first error any of them returned; an error
// does not stop the other calls. It is used for embarrassingly parallel,
// side-effect-free per-index computations such as independent-generator
// derivation and bulk ZKP verification.
func For(n int, fn func(i int) error) error {
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return fn(i)
		})
	}
	return g.Wait()
}

// Chunks splits [0, n) into contiguous chunks of at most ChunkSize items
// and runs fn(start, end) for each chunk concurrently, reporting the first
// error once every chunk has finished. Used by LargeVector ser/deser to parallelize over chunks
// rather than individual elements.
func Chunks(n int, fn func(start, end int) error) error {
	if n == 0 {
		return nil
	}
	var g errgroup.Group
	for start := 0; start < n; start += ChunkSize {
		end := start + ChunkSize
		if end > n {
			end = n
		}
		start, end := start, end
		g.Go(func() error {
			return fn(start, end)
		})
	}
	return g.Wait()
}
