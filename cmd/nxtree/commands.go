package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/robert-malhotra/go-nexus/nexus"
)

func runTree(args []string, stdout io.Writer) (err error) {
	var g globalFlags
	flags := newFlagSet("tree", "tree [flags] FILE [PATH]", &g)
	depth := flags.IntP("depth", "d", -1, "descend at most this many levels (-1 for no limit)")
	rest, err := parse(flags, args, 1, 2)
	if err != nil {
		return err
	}
	root := "/"
	if len(rest) == 2 {
		root = rest[1]
	}

	s, err := newSession(&g, stdout)
	if err != nil {
		return err
	}
	defer s.Close()
	t, err := s.openRead(rest[0])
	if err != nil {
		return err
	}
	defer closeTree(t, &err)

	p, err := nexus.ParsePath(root)
	if err != nil {
		return err
	}
	base := len(p)
	var listing treeListing
	err = t.Walk(root, func(path string, kind nexus.Kind, werr error) error {
		p, perr := nexus.ParsePath(path)
		if perr != nil {
			return perr
		}
		e := treeEntry{Path: path, Kind: kind.String(), depth: len(p) - base}
		if werr != nil {
			// The group itself was already listed; record the failure on it.
			for i := len(listing) - 1; i >= 0; i-- {
				if listing[i].Path == path {
					listing[i].Error = werr.Error()
					break
				}
			}
			return nil
		}
		describeEntry(t, &e)
		listing = append(listing, e)
		if kind == nexus.KindGroup && *depth >= 0 && e.depth >= *depth {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.out.encode(listing)
}

func describeEntry(t *nexus.Tree, e *treeEntry) {
	if e.Kind == nexus.KindGroup.String() {
		g, err := t.GetGroup(e.Path)
		if err != nil {
			e.Error = err.Error()
			return
		}
		if class, err := g.Class(); err == nil {
			e.Class = class
		}
		return
	}
	d, err := t.GetData(e.Path)
	if err != nil {
		e.Error = err.Error()
		return
	}
	e.Shape = d.Shape()
	e.Type = typeName(d.ElementType(), d.Unsigned())
}

func typeName(elem nexus.ElementType, unsigned bool) string {
	if unsigned {
		return "u" + elem.String()
	}
	return elem.String()
}

func runGet(args []string, stdout io.Writer) (err error) {
	var g globalFlags
	flags := newFlagSet("get", "get [flags] FILE PATH", &g)
	start := flags.IntSlice("start", nil, "first index per dimension")
	count := flags.IntSlice("count", nil, "number of elements per dimension")
	step := flags.IntSlice("step", nil, "stride per dimension")
	rest, err := parse(flags, args, 2, 2)
	if err != nil {
		return err
	}

	s, err := newSession(&g, stdout)
	if err != nil {
		return err
	}
	defer s.Close()
	t, err := s.openRead(rest[0])
	if err != nil {
		return err
	}
	defer closeTree(t, &err)

	d, err := t.GetData(rest[1])
	if err != nil {
		return err
	}
	res := dataResult{Path: d.Path(), Type: typeName(d.ElementType(), d.Unsigned())}
	if d.Scalar() {
		v, err := d.ReadScalar()
		if err != nil {
			return err
		}
		res.Shape, res.Data = []int{}, v
		return s.out.encode(res)
	}
	buf, err := d.ReadSlice(nexus.Slice{Start: *start, Count: *count, Step: *step})
	if err != nil {
		return err
	}
	res.Shape, res.Data = buf.Shape, buf.Data
	return s.out.encode(res)
}

func runMkgroup(args []string, stdout io.Writer) (err error) {
	var g globalFlags
	flags := newFlagSet("mkgroup", "mkgroup [flags] FILE PATH...", &g)
	parents := flags.BoolP("parents", "p", false, "create missing parent groups")
	rest, err := parse(flags, args, 2, -1)
	if err != nil {
		return err
	}

	s, err := newSession(&g, stdout)
	if err != nil {
		return err
	}
	defer s.Close()
	t, err := s.openWrite(rest[0], true)
	if err != nil {
		return err
	}
	defer closeTree(t, &err)

	created := make([]string, 0, len(rest)-1)
	for _, path := range rest[1:] {
		grp, err := t.CreateGroup(path, *parents)
		if err != nil {
			return err
		}
		created = append(created, grp.Path())
	}
	return s.out.encode(done{Op: "mkgroup", Paths: created})
}

func runPut(args []string, stdout io.Writer) (err error) {
	var g globalFlags
	flags := newFlagSet("put", "put [flags] FILE PATH VALUE...", &g)
	typ := flags.StringP("type", "t", "float64", "element type: int8 to int64, uint8 to uint64, float32, float64 or string")
	shape := flags.IntSlice("shape", nil, "dataset shape (default: one dimension holding the values)")
	maxShape := flags.IntSlice("max", nil, "maximum shape, -1 for unlimited")
	chunk := flags.IntSlice("chunk", nil, "chunk shape")
	scalar := flags.Bool("scalar", false, "store a single value as a scalar")
	appendRows := flags.BoolP("append", "a", false, "append the values as rows of an existing extendible dataset")
	parents := flags.BoolP("parents", "p", false, "create missing parent groups")
	rest, err := parse(flags, args, 2, -1)
	if err != nil {
		return err
	}
	file, path, values := rest[0], rest[1], rest[2:]
	if *scalar && len(values) != 1 {
		return usagef("--scalar takes exactly one value")
	}

	s, err := newSession(&g, stdout)
	if err != nil {
		return err
	}
	defer s.Close()
	t, err := s.openWrite(file, !*appendRows)
	if err != nil {
		return err
	}
	defer closeTree(t, &err)

	if *appendRows {
		if err := appendValues(t, path, values); err != nil {
			return err
		}
		return s.out.encode(done{Op: "append", Paths: []string{path}})
	}

	elem, unsigned, err := parseType(*typ)
	if err != nil {
		return err
	}
	data, err := parseValues(elem, unsigned, values)
	if err != nil {
		return err
	}
	desc := nexus.ShapeDescriptor{
		Shape:    *shape,
		MaxShape: *maxShape,
		Chunking: *chunk,
		Type:     elem,
		Unsigned: unsigned,
		Value:    data,
	}
	switch {
	case *scalar:
		desc.Shape = []int{}
		desc.Value = first(data)
	case desc.Shape == nil:
		desc.Shape = []int{len(values)}
	}
	if len(values) == 0 {
		desc.Value = nil
	}
	d, err := t.CreateData(path, desc, *parents)
	if err != nil {
		return err
	}
	return s.out.encode(done{Op: "put", Paths: []string{d.Path()}})
}

// appendValues extends the first dimension of the dataset at path by as
// many rows as values fill and writes them.
func appendValues(t *nexus.Tree, path string, values []string) error {
	d, err := t.GetWritableData(path)
	if err != nil {
		return err
	}
	shape := d.Shape()
	if len(shape) == 0 {
		return fmt.Errorf("%s: cannot append to a scalar", path)
	}
	row := 1
	for _, n := range shape[1:] {
		row *= n
	}
	if row == 0 || len(values)%row != 0 {
		return fmt.Errorf("%s: %d values do not fill rows of %d", path, len(values), row)
	}
	data, err := parseValues(d.ElementType(), d.Unsigned(), values)
	if err != nil {
		return err
	}

	grown := append([]int{shape[0] + len(values)/row}, shape[1:]...)
	if err := d.Extend(grown); err != nil {
		return err
	}
	start := make([]int, len(shape))
	start[0] = shape[0]
	count := append([]int{len(values) / row}, shape[1:]...)
	return d.WriteSlice(nexus.Slice{Start: start, Count: count}, nexus.NewBuffer(data, count...))
}

func runAttr(args []string, stdout io.Writer) (err error) {
	var g globalFlags
	flags := newFlagSet("attr", "attr [flags] FILE PATH [NAME=VALUE...]", &g)
	typ := flags.StringP("type", "t", "string", "element type of assigned values")
	rest, err := parse(flags, args, 2, -1)
	if err != nil {
		return err
	}
	file, path, assigns := rest[0], rest[1], rest[2:]

	var attrs []nexus.Attribute
	if len(assigns) > 0 {
		elem, unsigned, err := parseType(*typ)
		if err != nil {
			return err
		}
		for _, a := range assigns {
			name, value, ok := strings.Cut(a, "=")
			if !ok || name == "" {
				return usagef("attribute %q is not NAME=VALUE", a)
			}
			var data any = []string{value}
			if elem != nexus.String {
				if data, err = parseValues(elem, unsigned, strings.Split(value, ",")); err != nil {
					return err
				}
			}
			attr := nexus.Attribute{Name: name, Value: data}
			if nexus.NewBuffer(data).Len() == 1 {
				attr.Value = first(data)
			}
			attrs = append(attrs, attr)
		}
	}

	s, err := newSession(&g, stdout)
	if err != nil {
		return err
	}
	defer s.Close()

	var t *nexus.Tree
	if len(attrs) > 0 {
		t, err = s.openWrite(file, false)
	} else {
		t, err = s.openRead(file)
	}
	if err != nil {
		return err
	}
	defer closeTree(t, &err)

	if len(attrs) > 0 {
		if err := t.AddAttribute(path, attrs...); err != nil {
			return err
		}
	}
	list, err := t.Attributes(path)
	if err != nil {
		return err
	}
	out := make(attrListing, len(list))
	for i, a := range list {
		out[i] = attrEntry{Name: a.Name, Value: a.Value}
	}
	return s.out.encode(out)
}

func runLink(args []string, stdout io.Writer) (err error) {
	var g globalFlags
	flags := newFlagSet("link", "link [flags] FILE SOURCE DEST", &g)
	soft := flags.BoolP("soft", "s", false, "create a soft link to the SOURCE path")
	rest, err := parse(flags, args, 3, 3)
	if err != nil {
		return err
	}

	s, err := newSession(&g, stdout)
	if err != nil {
		return err
	}
	defer s.Close()
	t, err := s.openWrite(rest[0], false)
	if err != nil {
		return err
	}
	defer closeTree(t, &err)

	if *soft {
		err = t.LinkSoft(rest[1], rest[2])
	} else {
		err = t.Link(rest[1], rest[2])
	}
	if err != nil {
		return err
	}
	return s.out.encode(done{Op: "link", Paths: []string{rest[2]}})
}

func runSum(args []string, stdout io.Writer) error {
	var g globalFlags
	flags := newFlagSet("sum", "sum [flags] FILE...", &g)
	rest, err := parse(flags, args, 1, -1)
	if err != nil {
		return err
	}

	s, err := newSession(&g, stdout)
	if err != nil {
		return err
	}
	defer s.Close()

	out := make(sumListing, 0, len(rest))
	var errs []error
	for _, file := range rest {
		sum, err := checksum(s, file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, sumEntry{File: file, BLAKE3: hex.EncodeToString(sum[:])})
	}
	if err := s.out.encode(out); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func checksum(s *session, file string) (sum [32]byte, err error) {
	t, err := s.openRead(file)
	if err != nil {
		return sum, err
	}
	defer closeTree(t, &err)
	return t.Checksum()
}
