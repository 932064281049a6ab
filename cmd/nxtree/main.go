// nxtree inspects and edits NeXus container files.
//
// Usage:
//
//	nxtree <command> [flags] FILE [args...]
//
// Commands:
//
//	tree     print the group hierarchy below a path
//	get      print the contents of a dataset
//	mkgroup  create groups
//	put      create a dataset from values, or append rows to one
//	attr     list or set attributes
//	link     create hard, soft or external links
//	sum      print the BLAKE3 digest of container files
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

type command struct {
	name    string
	summary string
	run     func(args []string, stdout io.Writer) error
}

var commands = []command{
	{"tree", "print the group hierarchy below a path", runTree},
	{"get", "print the contents of a dataset", runGet},
	{"mkgroup", "create groups", runMkgroup},
	{"put", "create a dataset from values, or append rows to one", runPut},
	{"attr", "list or set attributes", runAttr},
	{"link", "create hard, soft or external links", runLink},
	{"sum", "print the BLAKE3 digest of container files", runSum},
}

// usageError reports bad arguments; it exits with status 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		err := c.run(args[1:], stdout)
		switch {
		case err == nil:
			return 0
		case errors.Is(err, pflag.ErrHelp):
			return 0
		}
		fmt.Fprintf(stderr, "nxtree %s: %v\n", c.name, err)
		var ue *usageError
		if errors.As(err, &ue) {
			return 2
		}
		return 1
	}
	fmt.Fprintf(stderr, "nxtree: unknown command %q\n", args[0])
	printUsage(stderr)
	return 2
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: nxtree <command> [flags] FILE [args...]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'nxtree <command> --help' for the flags of a command.")
}
