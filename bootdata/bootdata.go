// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package bootdata implements a reader for the boot metadata blob handed off
// by the bootloader, a sequence of type-length-value records each starting
// with a fixed header.
//
// All reads are bounds checked against the blob, malformed input is reported
// as an error and never dereferenced.
package bootdata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic is the sentinel value found in every record header.
const Magic = 0x868cf7e6

const (
	// HeaderSize is the size in bytes of a record header.
	HeaderSize = 16
	// Alignment is the record boundary stride.
	Alignment = 8
)

// Record types
const (
	TypeContainer = 0x544f4f42 // BOOT
	TypeMDI       = 0x3149444d // MDI1
	TypeBootFS    = 0x42534642 // BFSB
	TypeCmdline   = 0x4c444d43 // CMDL
)

var (
	// ErrNotFound is returned when no record of the requested type exists.
	ErrNotFound = errors.New("bootdata record not found")
	// ErrTruncated is returned when a header or payload overruns the blob.
	ErrTruncated = errors.New("bootdata record truncated")
)

// MagicError reports a record header carrying an invalid magic, the blob is
// either corrupt or not a boot metadata blob at all.
type MagicError struct {
	Offset int
	Magic  uint32
}

func (e *MagicError) Error() string {
	return fmt.Sprintf("bad magic in bootdata header at %#x (%#x)", e.Offset, e.Magic)
}

// Header represents a record header.
type Header struct {
	Magic  uint32
	Type   uint32
	Length uint32
	Extra  uint32
}

// Align rounds n up to the record alignment.
func Align(n int) int {
	return (n + Alignment - 1) &^ (Alignment - 1)
}

// TypeName returns a printable name for a record type.
func TypeName(t uint32) string {
	switch t {
	case TypeContainer:
		return "container"
	case TypeMDI:
		return "mdi"
	case TypeBootFS:
		return "bootfs"
	case TypeCmdline:
		return "cmdline"
	}

	return fmt.Sprintf("%#.8x", t)
}

func parseHeader(buf []byte) Header {
	return Header{
		Magic:  binary.LittleEndian.Uint32(buf[0:]),
		Type:   binary.LittleEndian.Uint32(buf[4:]),
		Length: binary.LittleEndian.Uint32(buf[8:]),
		Extra:  binary.LittleEndian.Uint32(buf[12:]),
	}
}

func (h Header) put(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Type)
	binary.LittleEndian.PutUint32(buf[8:], h.Length)
	binary.LittleEndian.PutUint32(buf[12:], h.Extra)
}

// Record represents a single record within a blob.
type Record struct {
	Header

	// Offset is the record header position within the blob.
	Offset int

	payload []byte
}

// Payload returns the record payload, the returned slice aliases the blob
// and must not be modified.
func (r Record) Payload() []byte {
	return r.payload
}

// Size returns the record length including header and alignment padding.
func (r Record) Size() int {
	return Align(HeaderSize + int(r.Length))
}

// Cursor walks the records of a blob sequentially.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a cursor positioned on the first record of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Offset returns the current record boundary.
func (c *Cursor) Offset() int {
	return c.off
}

// Done reports whether the cursor reached or passed the end of the blob.
func (c *Cursor) Done() bool {
	return c.off >= len(c.buf)
}

// Header validates and returns the header at the current offset without
// advancing.
func (c *Cursor) Header() (h Header, err error) {
	if c.Done() {
		return h, io.EOF
	}

	if len(c.buf)-c.off < HeaderSize {
		return h, ErrTruncated
	}

	h = parseHeader(c.buf[c.off:])

	if h.Magic != Magic {
		return h, &MagicError{Offset: c.off, Magic: h.Magic}
	}

	return
}

// Skip advances the cursor past the record described by h.
func (c *Cursor) Skip(h Header) {
	n := uint64(c.off) + uint64(Align(HeaderSize+int(h.Length)))

	if n > uint64(len(c.buf)) {
		n = uint64(len(c.buf))
	}

	c.off = int(n)
}

// Next returns the record at the current offset and advances past it, io.EOF
// is returned once the end of the blob is reached.
func (c *Cursor) Next() (r Record, err error) {
	h, err := c.Header()

	if err != nil {
		return
	}

	if r, err = c.record(h); err != nil {
		return
	}

	c.Skip(h)

	return
}

func (c *Cursor) record(h Header) (r Record, err error) {
	start := uint64(c.off) + HeaderSize
	end := start + uint64(h.Length)

	if end > uint64(len(c.buf)) {
		return r, ErrTruncated
	}

	return Record{
		Header:  h,
		Offset:  c.off,
		payload: c.buf[start:end],
	}, nil
}

// Find scans buf from its start and returns the offset of the first record
// of type typ.
//
// A bad magic on any visited header is reported as *MagicError, which callers
// must treat as fatal, while the absence of the record is reported as
// ErrNotFound so that optional records can be tolerated.
func Find(buf []byte, typ uint32) (off int, err error) {
	r, err := Lookup(buf, typ)

	if err != nil {
		return -1, err
	}

	return r.Offset, nil
}

// Lookup is like Find but returns the whole record.
func Lookup(buf []byte, typ uint32) (r Record, err error) {
	c := NewCursor(buf)

	for !c.Done() {
		var h Header

		if h, err = c.Header(); err != nil {
			return
		}

		if h.Type == typ {
			return c.record(h)
		}

		c.Skip(h)
	}

	return r, ErrNotFound
}

// Walk calls fn for every record of buf in order, stopping at the first error
// returned by either the cursor or fn.
func Walk(buf []byte, fn func(Record) error) (err error) {
	c := NewCursor(buf)

	for {
		var r Record

		r, err = c.Next()

		if err == io.EOF {
			return nil
		}

		if err != nil {
			return
		}

		if err = fn(r); err != nil {
			return
		}
	}
}
