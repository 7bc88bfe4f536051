// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package bootdata

import (
	"bytes"
)

// Writer builds a blob one record at a time.
type Writer struct {
	buf bytes.Buffer
}

// Append adds a record of type typ and returns its offset, the payload is
// padded to the record alignment.
func (w *Writer) Append(typ uint32, extra uint32, payload []byte) (off int) {
	off = w.buf.Len()

	hdr := make([]byte, HeaderSize)

	Header{
		Magic:  Magic,
		Type:   typ,
		Length: uint32(len(payload)),
		Extra:  extra,
	}.put(hdr)

	w.buf.Write(hdr)
	w.buf.Write(payload)

	if pad := Align(HeaderSize+len(payload)) - HeaderSize - len(payload); pad > 0 {
		w.buf.Write(make([]byte, pad))
	}

	return
}

// Len returns the current blob length.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Bytes returns the blob.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}
