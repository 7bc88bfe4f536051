// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mdi

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes an indented textual representation of the tree rooted at n.
func Fprint(w io.Writer, n Node) error {
	return fprint(w, n, 0)
}

func fprint(w io.Writer, n Node, depth int) (err error) {
	indent := strings.Repeat("  ", depth)

	var v interface{}

	switch n.Type() {
	case TypeList:
		if _, err = fmt.Fprintf(w, "%s%s {\n", indent, n.ID()); err != nil {
			return
		}

		it := n.Children()

		for it.Next() {
			if err = fprint(w, it.Node(), depth+1); err != nil {
				return
			}
		}

		if err = it.Err(); err != nil {
			return
		}

		_, err = fmt.Fprintf(w, "%s}\n", indent)

		return
	case TypeInt32:
		v, err = n.Int32()
	case TypeUint32:
		v, err = n.Uint32()
	case TypeUint64:
		var u uint64
		u, err = n.Uint64()
		v = fmt.Sprintf("%#x", u)
	case TypeBoolean:
		v, err = n.Bool()
	case TypeString:
		var s string
		s, err = n.Text()
		v = fmt.Sprintf("%q", s)
	default:
		v = "?"
	}

	if err != nil {
		return
	}

	_, err = fmt.Fprintf(w, "%s%s = %v\n", indent, n.ID(), v)

	return
}
