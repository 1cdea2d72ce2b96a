// Package codec implements the big-endian primitives used by the session
// checkpoint files.
//
// Layout rules:
//   - int32 and int64 values are written big-endian with no padding
//   - strings are a uint32 byte length followed by the raw bytes; text is
//     normally UTF-8 but file names need not be, so bytes are kept as is
//   - counts are int32 and must be non-negative
//
// There is no header or version tag; readers must know which snapshot type
// they are decoding.
package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxStringLen bounds a single decoded string. Editor buffers larger than this
// are treated as corruption rather than allocated.
const MaxStringLen = 256 << 20

// MaxCount bounds decoded element counts.
const MaxCount = 1 << 20

// ErrCorrupt is returned when a stream does not follow the layout rules.
var ErrCorrupt = errors.New("corrupt checkpoint data")

// Encoder writes primitives to an underlying writer. The first error is
// sticky; later writes are no-ops and Err reports it.
type Encoder struct {
	w   *bufio.Writer
	buf [8]byte
	err error
}

// NewEncoder returns an Encoder writing to w. Call Flush when done.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// WriteInt32 writes v as four big-endian bytes.
func (e *Encoder) WriteInt32(v int32) {
	if e.err != nil {
		return
	}
	binary.BigEndian.PutUint32(e.buf[:4], uint32(v))
	_, e.err = e.w.Write(e.buf[:4])
}

// WriteInt64 writes v as eight big-endian bytes.
func (e *Encoder) WriteInt64(v int64) {
	if e.err != nil {
		return
	}
	binary.BigEndian.PutUint64(e.buf[:8], uint64(v))
	_, e.err = e.w.Write(e.buf[:8])
}

// WriteCount writes a slice length as int32.
func (e *Encoder) WriteCount(n int) {
	if e.err != nil {
		return
	}
	if n < 0 || n > MaxCount {
		e.err = fmt.Errorf("count %d out of range", n)
		return
	}
	e.WriteInt32(int32(n))
}

// WriteString writes s as a uint32 length followed by its bytes.
func (e *Encoder) WriteString(s string) {
	if e.err != nil {
		return
	}
	if len(s) > MaxStringLen {
		e.err = fmt.Errorf("string of %d bytes exceeds limit", len(s))
		return
	}
	binary.BigEndian.PutUint32(e.buf[:4], uint32(len(s)))
	if _, e.err = e.w.Write(e.buf[:4]); e.err != nil {
		return
	}
	_, e.err = e.w.WriteString(s)
}

// Flush writes buffered data and returns the first error encountered.
func (e *Encoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

// Err returns the first write error, if any.
func (e *Encoder) Err() error {
	return e.err
}

// Decoder reads primitives written by Encoder. Like Encoder, the first
// error is sticky.
type Decoder struct {
	r   *bufio.Reader
	buf [8]byte
	err error
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

func (d *Decoder) fill(n int) bool {
	if d.err != nil {
		return false
	}
	if _, err := io.ReadFull(d.r, d.buf[:n]); err != nil {
		d.err = fmt.Errorf("%w: %v", ErrCorrupt, err)
		return false
	}
	return true
}

// ReadInt32 reads a big-endian int32.
func (d *Decoder) ReadInt32() int32 {
	if !d.fill(4) {
		return 0
	}
	return int32(binary.BigEndian.Uint32(d.buf[:4]))
}

// ReadInt64 reads a big-endian int64.
func (d *Decoder) ReadInt64() int64 {
	if !d.fill(8) {
		return 0
	}
	return int64(binary.BigEndian.Uint64(d.buf[:8]))
}

// ReadCount reads an int32 element count and rejects negative or oversized
// values.
func (d *Decoder) ReadCount() int {
	n := d.ReadInt32()
	if d.err != nil {
		return 0
	}
	if n < 0 || n > MaxCount {
		d.err = fmt.Errorf("%w: count %d out of range", ErrCorrupt, n)
		return 0
	}
	return int(n)
}

// ReadString reads a length-prefixed string. The bytes are returned exactly
// as written.
func (d *Decoder) ReadString() string {
	if !d.fill(4) {
		return ""
	}
	n := binary.BigEndian.Uint32(d.buf[:4])
	if n > MaxStringLen {
		d.err = fmt.Errorf("%w: string length %d exceeds limit", ErrCorrupt, n)
		return ""
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.err = fmt.Errorf("%w: %v", ErrCorrupt, err)
		return ""
	}
	return string(b)
}

// Err returns the first read error, if any.
func (d *Decoder) Err() error {
	return d.err
}

// ExpectEOF fails with ErrCorrupt when unread bytes remain.
func (d *Decoder) ExpectEOF() error {
	if d.err != nil {
		return d.err
	}
	if _, err := d.r.ReadByte(); err == nil {
		d.err = fmt.Errorf("%w: trailing data", ErrCorrupt)
	} else if err != io.EOF {
		d.err = fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return d.err
}
