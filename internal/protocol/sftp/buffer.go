package sftp

import "encoding/binary"

// reader walks a packet payload. The first failure sticks so callers can
// decode a whole packet and check err once.
type reader struct {
	t   PacketType
	buf []byte
	err error
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = malformed(r.t, format, args...)
	}
}

func (r *reader) remaining() int { return len(r.buf) }

func (r *reader) uint32() uint32 {
	if r.err != nil {
		return 0
	}
	if len(r.buf) < 4 {
		r.fail("short buffer reading uint32: %d bytes left", len(r.buf))
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf)
	r.buf = r.buf[4:]
	return v
}

func (r *reader) uint64() uint64 {
	if r.err != nil {
		return 0
	}
	if len(r.buf) < 8 {
		r.fail("short buffer reading uint64: %d bytes left", len(r.buf))
		return 0
	}
	v := binary.BigEndian.Uint64(r.buf)
	r.buf = r.buf[8:]
	return v
}

// bytes reads a length-prefixed byte string. The result is a copy so the
// frame buffer can be reused.
func (r *reader) bytes() []byte {
	n := r.uint32()
	if r.err != nil {
		return nil
	}
	if uint64(n) > uint64(len(r.buf)) {
		r.fail("string length %d exceeds remaining %d bytes", n, len(r.buf))
		return nil
	}
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[:n])
	r.buf = r.buf[n:]
	return out
}

func (r *reader) string() string {
	n := r.uint32()
	if r.err != nil {
		return ""
	}
	if uint64(n) > uint64(len(r.buf)) {
		r.fail("string length %d exceeds remaining %d bytes", n, len(r.buf))
		return ""
	}
	s := string(r.buf[:n])
	r.buf = r.buf[n:]
	return s
}

// count reads an array length and checks it against the minimum encoded
// size of one element, so a hostile count cannot force a huge allocation.
func (r *reader) count(minElem int) int {
	n := r.uint32()
	if r.err != nil {
		return 0
	}
	if uint64(n)*uint64(minElem) > uint64(len(r.buf)) {
		r.fail("array count %d exceeds remaining %d bytes", n, len(r.buf))
		return 0
	}
	return int(n)
}

// done fails if unread bytes remain.
func (r *reader) done() error {
	if r.err == nil && len(r.buf) != 0 {
		r.fail("%d trailing bytes", len(r.buf))
	}
	return r.err
}

// writer appends big-endian fields to a frame.
type writer struct {
	buf []byte
}

func (w *writer) byte(b byte)     { w.buf = append(w.buf, b) }
func (w *writer) uint32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *writer) uint64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }
func (w *writer) raw(b []byte)    { w.buf = append(w.buf, b...) }

func (w *writer) bytes(b []byte) {
	w.uint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) string(s string) {
	w.uint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}
