// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mdi

import (
	"encoding/binary"
)

// Builder represents a node being assembled for encoding.
type Builder struct {
	id       ID
	value    [8]byte
	data     []byte
	children []*Builder
}

// List returns a list node builder holding children.
func List(id ID, children ...*Builder) *Builder {
	return &Builder{
		id:       id,
		children: children,
	}
}

// Uint32 returns a uint32 node builder.
func Uint32(id ID, v uint32) *Builder {
	b := &Builder{id: id}
	binary.LittleEndian.PutUint32(b.value[:], v)
	return b
}

// Int32 returns an int32 node builder.
func Int32(id ID, v int32) *Builder {
	return Uint32(id, uint32(v))
}

// Uint64 returns a uint64 node builder.
func Uint64(id ID, v uint64) *Builder {
	b := &Builder{id: id}
	binary.LittleEndian.PutUint64(b.value[:], v)
	return b
}

// Bool returns a boolean node builder.
func Bool(id ID, v bool) *Builder {
	b := &Builder{id: id}

	if v {
		b.value[0] = 1
	}

	return b
}

// String returns a string node builder, the value is stored NUL terminated.
func String(id ID, s string) *Builder {
	b := &Builder{
		id:   id,
		data: append([]byte(s), 0),
	}

	binary.LittleEndian.PutUint32(b.value[:], uint32(len(b.data)))

	return b
}

// Add appends children to a list node builder.
func (b *Builder) Add(children ...*Builder) *Builder {
	b.children = append(b.children, children...)
	return b
}

func align(n int) int {
	return (n + Alignment - 1) &^ (Alignment - 1)
}

func (b *Builder) size() (n int) {
	n = align(HeaderSize + len(b.data))

	for _, c := range b.children {
		n += c.size()
	}

	return
}

func (b *Builder) encode(buf []byte) int {
	n := b.size()

	binary.LittleEndian.PutUint32(buf[0:], uint32(b.id))
	binary.LittleEndian.PutUint32(buf[4:], uint32(n))
	copy(buf[8:16], b.value[:])

	if b.id.Type() == TypeList {
		binary.LittleEndian.PutUint32(buf[8:], uint32(len(b.children)))
	}

	off := copy(buf[HeaderSize:], b.data) + HeaderSize
	off = align(off)

	for _, c := range b.children {
		off += c.encode(buf[off:])
	}

	return n
}

// Bytes returns the encoded node and its subtree.
func (b *Builder) Bytes() []byte {
	buf := make([]byte, b.size())
	b.encode(buf)

	return buf
}
