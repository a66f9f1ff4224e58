// Command programctl is an operator CLI for the Deterministic Program
// Instantiator and the components it wires: instantiate a demo program,
// send messages against one of its authorizations, tick its processor, and
// inspect the resulting chain/registry state.
//
// Usage:
//
//	programctl instantiate [--owner addr]
//	programctl send --label NAME --message JSON
//	programctl tick [--caller addr]
//	programctl inspect
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	"github.com/valence-labs/corechain/internal/corelog"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "instantiate":
		err = runInstantiate(args)
	case "send":
		err = runSend(args)
	case "tick":
		err = runTick(args)
	case "inspect":
		err = runInspect(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "error: ")
		corelog.NewStderr().Err().Err(err).Str("command", cmd).Log("programctl: command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: programctl <instantiate|send|tick|inspect> [flags]")
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}
