package sendqueue

import "sync"

// Size-bucketed buffer pools for queue-entry payloads, kept near-verbatim
// from internal/queue/pool.go's GetBuffer/PutBuffer pattern: a *[]byte
// wrapper around sync.Pool to avoid the allocation sync.Pool itself would
// otherwise incur boxing a plain []byte into its any parameter.
const (
	bucket4K  = 4 * 1024
	bucket16K = 16 * 1024
	bucket64K = 64 * 1024
)

var (
	pool4K  = sync.Pool{New: func() any { b := make([]byte, bucket4K); return &b }}
	pool16K = sync.Pool{New: func() any { b := make([]byte, bucket16K); return &b }}
	pool64K = sync.Pool{New: func() any { b := make([]byte, bucket64K); return &b }}
)

// GetBuffer returns a buffer of at least size bytes from the
// smallest bucket that fits, falling back to a direct allocation above the
// largest bucket (unbounded command payloads are expected to be rare and
// small in practice, so no hard allocation-failure ceiling applies here
// the way it does for internal/receiver's per-message arena).
func GetBuffer(size uint32) []byte {
	switch {
	case size <= bucket4K:
		b := pool4K.Get().(*[]byte)
		return (*b)[:size]
	case size <= bucket16K:
		b := pool16K.Get().(*[]byte)
		return (*b)[:size]
	case size <= bucket64K:
		b := pool64K.Get().(*[]byte)
		return (*b)[:size]
	default:
		return make([]byte, size)
	}
}

// PutBuffer returns buf to its owning pool by capacity.
func PutBuffer(buf []byte) {
	switch cap(buf) {
	case bucket4K:
		b := buf[:bucket4K]
		pool4K.Put(&b)
	case bucket16K:
		b := buf[:bucket16K]
		pool16K.Put(&b)
	case bucket64K:
		b := buf[:bucket64K]
		pool64K.Put(&b)
	}
}
