// Package fast provides minimal linear byte buffers for the canonical
// encoder. bytes.Buffer carries synchronization and growth bookkeeping the
// serializer does not need; these wrappers just append to a slice (Writer)
// or advance an offset (Reader).
//
// The Reader performs no bounds checking of its own: reading past the end
// panics with a slice bounds error. Callers that consume untrusted input
// must recover the panic and report a malformed encoding.
package fast

// Writer appends to an underlying byte slice.
type Writer struct {
	buf []byte
}

// Reader consumes an underlying byte slice from left to right.
type Reader struct {
	buf    []byte
	offset int
}

// NewWriter creates a Writer that appends to the provided initial slice,
// usually make([]byte, 0, capacity).
func NewWriter(bb []byte) *Writer {
	return &Writer{buf: bb}
}

// NewReader creates a Reader over the provided byte slice.
func NewReader(bb []byte) *Reader {
	return &Reader{buf: bb}
}

// WriteByte appends a single byte.
func (w *Writer) WriteByte(v byte) {
	w.buf = append(w.buf, v)
}

// Write appends a slice of bytes.
func (w *Writer) Write(v []byte) {
	w.buf = append(w.buf, v...)
}

// Bytes returns the accumulated bytes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// ReadByte consumes and returns the next byte. Panics past the end.
func (r *Reader) ReadByte() byte {
	b := r.buf[r.offset]
	r.offset++
	return b
}

// Read consumes and returns the next n bytes. The returned slice shares
// memory with the underlying buffer. Panics past the end.
func (r *Reader) Read(n int) []byte {
	res := r.buf[r.offset : r.offset+n]
	r.offset += n
	return res
}

// Bytes returns the whole underlying buffer, including consumed bytes.
func (r *Reader) Bytes() []byte {
	return r.buf
}

// Position returns the number of bytes consumed so far.
func (r *Reader) Position() int {
	return r.offset
}

// Empty reports whether every byte has been consumed.
func (r *Reader) Empty() bool {
	return r.offset >= len(r.buf)
}
