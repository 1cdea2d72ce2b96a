package codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncoder_Layout(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.WriteInt32(2)
	enc.WriteInt64(-1)
	enc.WriteString("ab")
	if err := enc.Flush(); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}

	want := []byte{
		0, 0, 0, 2,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0, 0, 0, 2, 'a', 'b',
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("encoded bytes = %v, want %v", buf.Bytes(), want)
	}
}

func TestDecoder_ReadsWhatEncoderWrites(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.WriteCount(3)
	enc.WriteInt64(1700000000123)
	enc.WriteString("")
	enc.WriteString("SELECT 'ä' FROM dual;")
	if err := enc.Flush(); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}

	dec := NewDecoder(&buf)
	if n := dec.ReadCount(); n != 3 {
		t.Errorf("ReadCount() = %d, want 3", n)
	}
	if v := dec.ReadInt64(); v != 1700000000123 {
		t.Errorf("ReadInt64() = %d", v)
	}
	if s := dec.ReadString(); s != "" {
		t.Errorf("ReadString() = %q, want empty", s)
	}
	if s := dec.ReadString(); s != "SELECT 'ä' FROM dual;" {
		t.Errorf("ReadString() = %q", s)
	}
	if err := dec.ExpectEOF(); err != nil {
		t.Errorf("ExpectEOF() failed: %v", err)
	}
}

func TestDecoder_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(d *Decoder)
	}{
		{"short int32", []byte{0, 0, 1}, func(d *Decoder) { d.ReadInt32() }},
		{"short int64", []byte{0, 0, 0, 0, 1}, func(d *Decoder) { d.ReadInt64() }},
		{"negative count", []byte{0xff, 0xff, 0xff, 0xfe}, func(d *Decoder) { d.ReadCount() }},
		{"truncated string", []byte{0, 0, 0, 5, 'a'}, func(d *Decoder) { d.ReadString() }},
		{"oversized string", []byte{0x7f, 0xff, 0xff, 0xff}, func(d *Decoder) { d.ReadString() }},
		{"trailing data", []byte{0, 0, 0, 1, 9}, func(d *Decoder) { d.ReadInt32(); d.ExpectEOF() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(bytes.NewReader(tt.data))
			tt.read(dec)
			if !errors.Is(dec.Err(), ErrCorrupt) {
				t.Errorf("Err() = %v, want ErrCorrupt", dec.Err())
			}
		})
	}
}

func TestEncoder_StickyError(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.WriteCount(-1)
	enc.WriteString("ignored")
	if err := enc.Flush(); err == nil {
		t.Fatal("Flush() should report the negative count")
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be written after an error, got %d bytes", buf.Len())
	}
}

func TestString_NonUTF8RoundTrip(t *testing.T) {
	values := []string{"a\xffb.sql", "\xc3", "ok", "\x00\xfe\xfd"}

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, v := range values {
		enc.WriteString(v)
	}
	if err := enc.Flush(); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}

	dec := NewDecoder(&buf)
	for _, want := range values {
		if got := dec.ReadString(); got != want {
			t.Errorf("ReadString() = %q, want %q", got, want)
		}
	}
	if err := dec.ExpectEOF(); err != nil {
		t.Errorf("ExpectEOF() failed: %v", err)
	}
}
