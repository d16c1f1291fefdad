// Package buffer implements the growable byte buffer used as both the
// receive and send queue on every connection, per spec §3/§4.1. It is
// grounded on the original muduo-lite Buffer.h/Buffer.cc (original_source/),
// reworked into idiomatic Go: a single []byte with reader/writer cursors
// instead of a raw char* + std::vector.
package buffer

const (
	// PrependSize is the cheap-prepend reserve that lets callers stash a
	// length prefix ahead of the readable region without reallocating.
	PrependSize = 8
	// InitialSize is the default writable capacity a new Buffer starts with,
	// on top of the prepend reserve.
	InitialSize = 1024
)

// Buffer is a growable byte buffer with a prependable prefix, a readable
// region, and a writable tail. It is not safe for concurrent use; each
// TcpConnection owns its input and output buffers exclusively on its worker
// loop.
type Buffer struct {
	buf    []byte
	reader int
	writer int
}

// New returns a Buffer with InitialSize bytes of writable capacity.
func New() *Buffer {
	return NewSize(InitialSize)
}

// NewSize returns a Buffer with at least initialSize bytes of writable
// capacity beyond the prepend reserve.
func NewSize(initialSize int) *Buffer {
	return &Buffer{
		buf:    make([]byte, PrependSize+initialSize),
		reader: PrependSize,
		writer: PrependSize,
	}
}

// ReadableBytes returns the number of bytes available to read.
func (b *Buffer) ReadableBytes() int { return b.writer - b.reader }

// WritableBytes returns the number of bytes that can be appended without
// growing the underlying storage.
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.writer }

// PrependableBytes returns the bytes currently free ahead of the readable
// region, including any already-retrieved space that has not been reclaimed.
func (b *Buffer) PrependableBytes() int { return b.reader }

// Peek returns a slice over the current readable region. The slice aliases
// the buffer's storage and is invalidated by any mutating call.
func (b *Buffer) Peek() []byte { return b.buf[b.reader:b.writer] }

// Retrieve advances the reader cursor by min(n, ReadableBytes). If the
// buffer is fully drained as a result, both cursors reset to PrependSize so
// the prepend reserve is reclaimed.
func (b *Buffer) Retrieve(n int) {
	if n < b.ReadableBytes() {
		b.reader += n
		return
	}
	b.RetrieveAll()
}

// RetrieveAll discards all readable bytes and resets both cursors to
// PrependSize.
func (b *Buffer) RetrieveAll() {
	b.reader = PrependSize
	b.writer = PrependSize
}

// RetrieveAsString drains up to n readable bytes and returns them as a
// freshly copied string.
func (b *Buffer) RetrieveAsString(n int) string {
	if n > b.ReadableBytes() {
		n = b.ReadableBytes()
	}
	s := string(b.buf[b.reader : b.reader+n])
	b.Retrieve(n)
	return s
}

// RetrieveAllAsString drains the entire readable region as a string.
func (b *Buffer) RetrieveAllAsString() string {
	return b.RetrieveAsString(b.ReadableBytes())
}

// Append copies data into the writable tail, growing storage if needed, and
// advances the writer cursor.
func (b *Buffer) Append(data []byte) {
	b.ensureWritable(len(data))
	n := copy(b.buf[b.writer:], data)
	b.writer += n
}

// ensureWritable guarantees WritableBytes() >= needed, either by shifting the
// readable region back to PrependSize (cheap) or by growing the underlying
// array (only when shifting would not free enough room).
func (b *Buffer) ensureWritable(needed int) {
	if b.WritableBytes() >= needed {
		return
	}
	b.makeSpace(needed)
}

func (b *Buffer) makeSpace(needed int) {
	if b.WritableBytes()+b.reader-PrependSize < needed {
		grown := make([]byte, b.writer+needed)
		copy(grown, b.buf[:b.writer])
		b.buf = grown
		return
	}

	readable := b.ReadableBytes()
	copy(b.buf[PrependSize:], b.buf[b.reader:b.writer])
	b.reader = PrependSize
	b.writer = b.reader + readable
}

// Prepend writes data immediately before the current readable region,
// consuming the prepend reserve. Callers must ensure PrependableBytes() is
// large enough; it exists for length-prefixed framing built on top of this
// buffer and is not exercised by the raw-bytestream core itself.
func (b *Buffer) Prepend(data []byte) {
	b.reader -= len(data)
	copy(b.buf[b.reader:], data)
}

// Cap returns the buffer's current total storage size, exposed so tests can
// assert the growth-monotonicity invariant (capacity never shrinks).
func (b *Buffer) Cap() int { return len(b.buf) }
