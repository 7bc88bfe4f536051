// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package shell implements the boot shell served on the debug console.
package shell

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"sort"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/usbarmory/bcm28xx-platform/platform"
)

// Cmd represents a shell command.
type Cmd struct {
	Name    string
	Args    int
	Pattern *regexp.Regexp
	Syntax  string
	Help    string
	Fn      func(sh *Shell, arg []string) (res string, err error)
}

var cmds = make(map[string]*Cmd)

// ErrUnknown is returned for unrecognized command lines.
var ErrUnknown = errors.New("unknown command, type `help`")

// Add registers a shell command.
func Add(cmd Cmd) {
	cmds[cmd.Name] = &cmd
}

// Shell represents a boot shell instance.
type Shell struct {
	// Banner is the welcome banner
	Banner string
	// Platform is the boot context inspected by commands
	Platform *platform.Platform
	// Term is the terminal instance
	Term *term.Terminal
}

// Help returns the command list.
func (sh *Shell) Help() string {
	var buf bytes.Buffer
	var names []string

	for name := range cmds {
		names = append(names, name)
	}

	sort.Strings(names)

	w := tabwriter.NewWriter(&buf, 0, 8, 1, ' ', 0)

	for _, name := range names {
		cmd := cmds[name]
		fmt.Fprintf(w, "%s\t%s\t # %s\n", cmd.Name, cmd.Syntax, cmd.Help)
	}

	w.Flush()

	if sh.Term != nil {
		return string(sh.Term.Escape.Cyan) + buf.String() + string(sh.Term.Escape.Reset)
	}

	return buf.String()
}

// Exec runs a command line, io.EOF is returned when the session must end.
func (sh *Shell) Exec(line string) (res string, err error) {
	for _, cmd := range cmds {
		var arg []string

		if cmd.Pattern == nil {
			if line != cmd.Name {
				continue
			}
		} else {
			m := cmd.Pattern.FindStringSubmatch(line)

			if len(m) != cmd.Args+1 {
				continue
			}

			arg = m[1:]
		}

		return cmd.Fn(sh, arg)
	}

	return "", ErrUnknown
}

// Handle runs a command line and prints its output.
func (sh *Shell) Handle(line string) (err error) {
	res, err := sh.Exec(line)

	if len(res) > 0 {
		fmt.Fprintf(sh.Term, "%s\n", res)
	}

	return
}

// Start serves the shell on the argument console until the session ends.
func (sh *Shell) Start(rw io.ReadWriter) {
	sh.Term = term.NewTerminal(rw, "")
	sh.Term.SetPrompt(string(sh.Term.Escape.Red) + "> " + string(sh.Term.Escape.Reset))

	fmt.Fprintf(sh.Term, "%s\n", sh.Banner)
	fmt.Fprintf(sh.Term, "%s\n", sh.Help())

	for {
		line, err := sh.Term.ReadLine()

		if err == io.EOF {
			break
		}

		if err != nil {
			log.Printf("readline error, %v", err)
			continue
		}

		if len(line) == 0 {
			continue
		}

		err = sh.Handle(line)

		if err == io.EOF {
			break
		}

		if err != nil {
			fmt.Fprintf(sh.Term, "error: %v\n", err)
		}
	}
}
