// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mdi implements a reader for the machine description index (MDI), a
// schema-free tree of typed nodes carried by a boot metadata record.
//
// Every node starts with a 16 byte header: a 32-bit identifier, the 32-bit
// total node length (header and children included) and an 8 byte inline
// value. The children of a list node follow its header back to back, in
// declaration order.
package mdi

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the size in bytes of a node header.
const HeaderSize = 16

// Alignment is the node length granularity.
const Alignment = 8

// Type represents a node value type.
type Type uint8

// Node types
const (
	TypeInvalid Type = iota
	TypeList
	TypeInt32
	TypeUint32
	TypeUint64
	TypeBoolean
	TypeString
)

var typeNames = map[Type]string{
	TypeList:    "list",
	TypeInt32:   "int32",
	TypeUint32:  "uint32",
	TypeUint64:  "uint64",
	TypeBoolean: "boolean",
	TypeString:  "string",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}

	return fmt.Sprintf("type(%d)", uint8(t))
}

// ID represents a namespaced node identifier, the node type is held in the
// upper 8 bits.
type ID uint32

// MakeID returns the identifier for node number n of type t.
func MakeID(t Type, n uint32) ID {
	return ID(uint32(t)<<24 | n&0xffffff)
}

// Type returns the node type encoded in the identifier.
func (id ID) Type() Type {
	return Type(id >> 24)
}

// Number returns the identifier number within its type.
func (id ID) Number() uint32 {
	return uint32(id) & 0xffffff
}

func (id ID) String() string {
	if s, ok := names[id]; ok {
		return s
	}

	return fmt.Sprintf("%s:%d", id.Type(), id.Number())
}

var (
	// ErrMalformed is returned when a node header or length is invalid.
	ErrMalformed = errors.New("malformed mdi node")
	// ErrType is returned when a value accessor does not match the node type.
	ErrType = errors.New("mdi node type mismatch")
)

// Node represents a reference to a node within an MDI payload, the
// referenced memory is never copied.
type Node struct {
	buf []byte
}

func parse(buf []byte) (n Node, err error) {
	if len(buf) < HeaderSize {
		return n, fmt.Errorf("%w, short header (%d bytes)", ErrMalformed, len(buf))
	}

	length := binary.LittleEndian.Uint32(buf[4:])

	if length < HeaderSize || uint64(length) > uint64(len(buf)) {
		return n, fmt.Errorf("%w, invalid length %d", ErrMalformed, length)
	}

	return Node{buf: buf[:length]}, nil
}

// Init validates the root node at the start of an MDI payload.
func Init(payload []byte) (root Node, err error) {
	if root, err = parse(payload); err != nil {
		return
	}

	if root.Type() != TypeList {
		return Node{}, fmt.Errorf("%w, root node is %s", ErrMalformed, root.Type())
	}

	return
}

// Valid reports whether n references a node.
func (n Node) Valid() bool {
	return len(n.buf) >= HeaderSize
}

// ID returns the node identifier.
func (n Node) ID() ID {
	if !n.Valid() {
		return 0
	}

	return ID(binary.LittleEndian.Uint32(n.buf))
}

// Type returns the node type.
func (n Node) Type() Type {
	return n.ID().Type()
}

// Len returns the node length including its children.
func (n Node) Len() int {
	return len(n.buf)
}

func (n Node) value(t Type) ([]byte, error) {
	if !n.Valid() || n.Type() != t {
		return nil, fmt.Errorf("%w, %s is not %s", ErrType, n.ID(), t)
	}

	return n.buf[8:16], nil
}

// Int32 returns the value of an int32 node.
func (n Node) Int32() (int32, error) {
	v, err := n.value(TypeInt32)

	if err != nil {
		return 0, err
	}

	return int32(binary.LittleEndian.Uint32(v)), nil
}

// Uint32 returns the value of a uint32 node.
func (n Node) Uint32() (uint32, error) {
	v, err := n.value(TypeUint32)

	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(v), nil
}

// Uint64 returns the value of a uint64 node.
func (n Node) Uint64() (uint64, error) {
	v, err := n.value(TypeUint64)

	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(v), nil
}

// Bool returns the value of a boolean node.
func (n Node) Bool() (bool, error) {
	v, err := n.value(TypeBoolean)

	if err != nil {
		return false, err
	}

	return v[0] != 0, nil
}

// Text returns the value of a string node, the trailing NUL is not included.
func (n Node) Text() (string, error) {
	v, err := n.value(TypeString)

	if err != nil {
		return "", err
	}

	size := uint64(binary.LittleEndian.Uint32(v))

	if HeaderSize+size > uint64(len(n.buf)) {
		return "", fmt.Errorf("%w, string length %d", ErrMalformed, size)
	}

	s := n.buf[HeaderSize : HeaderSize+size]

	if size > 0 && s[size-1] == 0 {
		s = s[:size-1]
	}

	return string(s), nil
}

// Children returns an iterator over the direct children of a list node, a
// non-list node yields no children.
func (n Node) Children() *Iterator {
	it := &Iterator{
		buf: n.buf,
		off: HeaderSize,
	}

	if n.Type() == TypeList {
		it.count = binary.LittleEndian.Uint32(n.buf[8:])
	}

	return it
}

// Child returns the first direct child with identifier id.
func (n Node) Child(id ID) (child Node, ok bool) {
	it := n.Children()

	for it.Next() {
		if it.Node().ID() == id {
			return it.Node(), true
		}
	}

	return
}

// Iterator walks the children of a list node once, in encoding order.
type Iterator struct {
	buf   []byte
	off   int
	count uint32
	node  Node
	err   error
}

// Next advances the iterator and reports whether a child is available.
func (it *Iterator) Next() bool {
	if it.err != nil || it.count == 0 {
		return false
	}

	child, err := parse(it.buf[it.off:])

	if err != nil {
		it.err = err
		return false
	}

	it.node = child
	it.off += child.Len()
	it.count--

	return true
}

// Node returns the current child.
func (it *Iterator) Node() Node {
	return it.node
}

// Err returns the error, if any, which stopped the iteration.
func (it *Iterator) Err() error {
	return it.err
}
