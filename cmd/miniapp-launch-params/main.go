// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/heyqbnk/mini-apps-backend-template/lib/process"
	"github.com/heyqbnk/mini-apps-backend-template/lib/version"
)

func main() {
	if err := run(os.Args[1:], streams{in: os.Stdin, out: os.Stdout, err: os.Stderr}); err != nil {
		process.Fatal(err)
	}
}

// streams are the process's standard files, swapped out by tests.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

type command struct {
	summary string
	run     func(args []string, std streams) error
}

var commands = map[string]command{
	"sign":   {"print a signed launch parameter query", runSign},
	"verify": {"check a launch parameter query against a credential list", runVerify},
	"keygen": {"generate an age identity for sealed credentials", runKeygen},
	"seal":   {"encrypt a credential list to age recipients", runSeal},
}

func run(args []string, std streams) error {
	if len(args) == 0 {
		printUsage(std.err)
		return process.Usagef("a command is required")
	}
	switch args[0] {
	case "-h", "--help", "help":
		printUsage(std.out)
		return nil
	case "--version", "version":
		fmt.Fprintf(std.out, "miniapp-launch-params %s\n", version.Info())
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(std.err)
		return process.Usagef("unknown command %q", args[0])
	}
	if err := cmd.run(args[1:], std); err != nil && !errors.Is(err, pflag.ErrHelp) {
		return err
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: miniapp-launch-params <command> [flags]\n\nCommands:\n")
	for _, name := range []string{"sign", "verify", "keygen", "seal"} {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
}
