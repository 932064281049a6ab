package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/robert-malhotra/go-nexus/internal/config"
	"github.com/robert-malhotra/go-nexus/nexus"
)

// globalFlags are accepted by every command.
type globalFlags struct {
	config string
	format string
}

func newFlagSet(name, usage string, g *globalFlags) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.StringVarP(&g.config, "config", "c", "", "configuration file (default $XDG_CONFIG_HOME/nxtree/config.yaml)")
	flags.StringVarP(&g.format, "format", "o", "text", "output format: text, json, yaml or cbor")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: nxtree %s\n\nflags:\n%s", usage, flags.FlagUsages())
	}
	return flags
}

// parse parses args and checks the number of positional arguments.
func parse(flags *pflag.FlagSet, args []string, minArgs, maxArgs int) ([]string, error) {
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			flags.Usage()
			return nil, err
		}
		return nil, usagef("%v", err)
	}
	rest := flags.Args()
	if len(rest) < minArgs || (maxArgs >= 0 && len(rest) > maxArgs) {
		flags.Usage()
		return nil, usagef("wrong number of arguments")
	}
	return rest, nil
}

// session carries what a command needs once flags are parsed.
type session struct {
	cfg    *config.Config
	log    *slog.Logger
	opts   []nexus.Option
	out    *encoder
	closer io.Closer
}

func newSession(g *globalFlags, stdout io.Writer) (*session, error) {
	out, err := newEncoder(stdout, g.format)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(g.config)
	if err != nil {
		return nil, err
	}
	logger, closer, err := cfg.Logging.NewLogger()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.TreeOptions(logger)
	if err != nil {
		closer.Close()
		return nil, err
	}
	return &session{cfg: cfg, log: logger, opts: opts, out: out, closer: closer}, nil
}

func (s *session) Close() error { return s.closer.Close() }

func (s *session) openRead(path string) (*nexus.Tree, error) {
	s.log.Debug("opening tree", "path", path, "mode", "read")
	return nexus.OpenToRead(path, s.opts...)
}

func (s *session) openWrite(path string, create bool) (*nexus.Tree, error) {
	s.log.Debug("opening tree", "path", path, "mode", "write", "create", create)
	return nexus.OpenToWrite(path, create, s.opts...)
}

// closeTree closes t and keeps the first error.
func closeTree(t *nexus.Tree, err *error) {
	if cerr := t.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
