package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// texter renders a result in the text format.
type texter interface {
	writeText(w io.Writer, tty bool) error
}

type encoder struct {
	w      io.Writer
	format string
	tty    bool
}

func newEncoder(w io.Writer, format string) (*encoder, error) {
	format = strings.ToLower(format)
	switch format {
	case "text", "json", "yaml", "cbor":
	default:
		return nil, usagef("unknown output format %q", format)
	}
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &encoder{w: w, format: format, tty: tty}, nil
}

func (e *encoder) encode(v texter) error {
	switch e.format {
	case "json":
		enc := json.NewEncoder(e.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(e.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "cbor":
		data, err := cbor.Marshal(v)
		if err != nil {
			return err
		}
		_, err = e.w.Write(data)
		return err
	default:
		return v.writeText(e.w, e.tty)
	}
}

// treeEntry is one line of the tree command.
type treeEntry struct {
	Path  string `json:"path" yaml:"path"`
	Kind  string `json:"kind" yaml:"kind"`
	Class string `json:"class,omitempty" yaml:"class,omitempty"`
	Shape []int  `json:"shape,omitempty" yaml:"shape,omitempty,flow"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	depth int
}

type treeListing []treeEntry

func (l treeListing) writeText(w io.Writer, tty bool) error {
	for i, e := range l {
		var b strings.Builder
		if e.depth > 0 {
			b.WriteString(treePrefix(l, i, tty))
		}
		b.WriteString(entryName(e.Path))
		if e.Class != "" {
			b.WriteString(":" + e.Class)
		}
		switch {
		case e.Error != "":
			fmt.Fprintf(&b, "  [%s]", e.Error)
		case e.Kind == "dataset":
			fmt.Fprintf(&b, "  %s %s", e.Type, shapeString(e.Shape))
		}
		if _, err := fmt.Fprintln(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

// treePrefix draws the indentation of entry i. Terminals get box drawing
// guides; pipes and files get plain indentation.
func treePrefix(l treeListing, i int, tty bool) string {
	depth := l[i].depth
	if !tty {
		return strings.Repeat("  ", depth)
	}
	var b strings.Builder
	for level := 1; level < depth; level++ {
		if lastAt(l, i, level) {
			b.WriteString("    ")
		} else {
			b.WriteString("│   ")
		}
	}
	if lastAt(l, i, depth) {
		b.WriteString("└── ")
	} else {
		b.WriteString("├── ")
	}
	return b.String()
}

// lastAt reports whether no sibling at level follows the ancestor of
// entry i at that level.
func lastAt(l treeListing, i, level int) bool {
	for j := i + 1; j < len(l); j++ {
		switch {
		case l[j].depth < level:
			return true
		case l[j].depth == level:
			return false
		}
	}
	return true
}

func entryName(path string) string {
	if path == "/" {
		return "/"
	}
	return path[strings.LastIndexByte(path, '/')+1:]
}

func shapeString(shape []int) string {
	if len(shape) == 0 {
		return "scalar"
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, " x ") + "]"
}

// dataResult is the output of the get command.
type dataResult struct {
	Path  string `json:"path" yaml:"path"`
	Type  string `json:"type" yaml:"type"`
	Shape []int  `json:"shape" yaml:"shape,flow"`
	Data  any    `json:"data" yaml:"data,flow"`
}

func (r dataResult) writeText(w io.Writer, _ bool) error {
	_, err := fmt.Fprintf(w, "%s %s %s\n%v\n", r.Path, r.Type, shapeString(r.Shape), r.Data)
	return err
}

type attrEntry struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value,flow"`
}

type attrListing []attrEntry

func (l attrListing) writeText(w io.Writer, _ bool) error {
	for _, a := range l {
		if _, err := fmt.Fprintf(w, "%s = %v\n", a.Name, a.Value); err != nil {
			return err
		}
	}
	return nil
}

type sumEntry struct {
	File   string `json:"file" yaml:"file"`
	BLAKE3 string `json:"blake3" yaml:"blake3"`
}

type sumListing []sumEntry

func (l sumListing) writeText(w io.Writer, _ bool) error {
	for _, s := range l {
		if _, err := fmt.Fprintf(w, "%s  %s\n", s.BLAKE3, s.File); err != nil {
			return err
		}
	}
	return nil
}

// done is the result of commands that only modify the tree.
type done struct {
	Op    string   `json:"op" yaml:"op"`
	Paths []string `json:"paths" yaml:"paths"`
}

func (d done) writeText(w io.Writer, _ bool) error {
	for _, p := range d.Paths {
		if _, err := fmt.Fprintf(w, "%s %s\n", d.Op, p); err != nil {
			return err
		}
	}
	return nil
}
