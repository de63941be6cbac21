package receiver

import "sync"

// Size-bucketed buffer pools for message bodies, mirroring
// internal/queue/pool.go's GetBuffer/PutBuffer pattern almost verbatim —
// only the bucket sizes differ, tuned to typical SOME/IP/PDU payload sizes
// instead of block-I/O page multiples.
const (
	bucketSmall  = 256
	bucketMedium = 4 * 1024
	bucketLarge  = 64 * 1024
	bucketHuge   = 1 << 20 // matches writer.MaxMessageSize
)

var (
	smallPool = sync.Pool{New: func() any { b := make([]byte, bucketSmall); return &b }}
	medPool   = sync.Pool{New: func() any { b := make([]byte, bucketMedium); return &b }}
	largePool = sync.Pool{New: func() any { b := make([]byte, bucketLarge); return &b }}
	hugePool  = sync.Pool{New: func() any { b := make([]byte, bucketHuge); return &b }}
)

// getBuffer returns a buffer of at least size bytes, or ok=false if size
// exceeds the largest bucket — the caller treats that as an allocation
// failure per spec, not a silent fallback.
func getBuffer(size int) (buf []byte, ok bool) {
	switch {
	case size == 0:
		return nil, true
	case size <= bucketSmall:
		b := smallPool.Get().(*[]byte)
		return (*b)[:size], true
	case size <= bucketMedium:
		b := medPool.Get().(*[]byte)
		return (*b)[:size], true
	case size <= bucketLarge:
		b := largePool.Get().(*[]byte)
		return (*b)[:size], true
	case size <= bucketHuge:
		b := hugePool.Get().(*[]byte)
		return (*b)[:size], true
	default:
		return nil, false
	}
}

// putBuffer returns buf to its owning pool by capacity. Safe to call with
// a nil or foreign-sized slice (no-op).
func putBuffer(buf []byte) {
	switch cap(buf) {
	case bucketSmall:
		b := buf[:bucketSmall]
		smallPool.Put(&b)
	case bucketMedium:
		b := buf[:bucketMedium]
		medPool.Put(&b)
	case bucketLarge:
		b := buf[:bucketLarge]
		largePool.Put(&b)
	case bucketHuge:
		b := buf[:bucketHuge]
		hugePool.Put(&b)
	}
}
