// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package console implements the early debug console on top of a polled
// serial port.
package console

import (
	"bytes"
	"runtime"
	"sync"
)

const outputLimit = 1024
const flushChr = 0x0a // \n

// UART represents a polled serial port.
type UART interface {
	// Tx transmits a single byte.
	Tx(c byte)
	// Rx returns a received byte, if any is available.
	Rx() (c byte, valid bool)
}

// Console represents a line buffered debug console, output line endings are
// translated to CRLF.
type Console struct {
	sync.Mutex

	// UART is the underlying serial port
	UART UART
	// Unbuffered disables output buffering, when set every byte is
	// transmitted immediately
	Unbuffered bool

	buf bytes.Buffer
}

// New returns a console instance for the argument serial port.
func New(uart UART) *Console {
	return &Console{UART: uart}
}

// EarlyInit initializes the serial port, if required, and disables output
// buffering until Init.
func (c *Console) EarlyInit() error {
	c.Lock()
	defer c.Unlock()

	if u, ok := c.UART.(interface{ Init() error }); ok {
		if err := u.Init(); err != nil {
			return err
		}
	}

	c.Unbuffered = true

	return nil
}

// Init enables line buffering.
func (c *Console) Init() error {
	c.Lock()
	defer c.Unlock()

	c.Unbuffered = false

	return nil
}

func (c *Console) tx(b []byte) {
	for _, ch := range b {
		if ch == flushChr {
			c.UART.Tx('\r')
		}

		c.UART.Tx(ch)
	}
}

func (c *Console) flush() {
	c.tx(c.buf.Bytes())
	c.buf.Reset()
}

// Write buffers the argument bytes, the buffer is transmitted on each newline
// or once its size exceeds the output limit.
func (c *Console) Write(p []byte) (n int, err error) {
	c.Lock()
	defer c.Unlock()

	if c.Unbuffered {
		c.tx(p)
		return len(p), nil
	}

	for _, ch := range p {
		c.buf.WriteByte(ch)

		if ch == flushChr || c.buf.Len() > outputLimit {
			c.flush()
		}
	}

	return len(p), nil
}

// Puts writes a string to the console, flushing any pending output.
func (c *Console) Puts(s string) {
	c.Lock()
	defer c.Unlock()

	c.buf.WriteString(s)
	c.flush()
}

// Flush transmits any pending output.
func (c *Console) Flush() {
	c.Lock()
	defer c.Unlock()

	c.flush()
}

// Getc returns a received byte, when wait is true it blocks until one is
// available.
func (c *Console) Getc(wait bool) (byte, bool) {
	for {
		if ch, ok := c.UART.Rx(); ok || !wait {
			return ch, ok
		}

		runtime.Gosched()
	}
}

// Read blocks until at least one byte is received and then returns all
// available input.
func (c *Console) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return
	}

	p[0], _ = c.Getc(true)
	n = 1

	for n < len(p) {
		ch, ok := c.Getc(false)

		if !ok {
			break
		}

		p[n] = ch
		n++
	}

	return
}
