package nexus

import "strings"

// Link makes destination a hard link to the node at source. A source of
// the form "file.nxs#/path" makes destination an external link to path in
// that file instead. The parent of destination must exist.
func (t *Tree) Link(source, destination string) error {
	const op = "link"
	file, target, external := strings.Cut(source, "#")
	if !external {
		target = source
	}
	tp, err := ParsePath(target)
	if err != nil {
		return err
	}
	if external && file == "" {
		return &PathError{Path: source, Kind: Malformed}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	parent, dest, err := t.linkDestination(op, destination)
	if err != nil {
		return err
	}
	if external {
		err = t.f.CreateExternalLink(file, tp.Plain(), dest)
	} else {
		err = t.f.CreateHardLink(tp.Plain(), dest)
	}
	if err != nil {
		return translate(op, dest, err)
	}
	t.cache.invalidate(parent)
	t.nav.changed(parent)
	t.log.Debug("linked", "source", source, "destination", dest)
	return nil
}

// LinkSoft makes destination a soft link to the path target, which need
// not exist.
func (t *Tree) LinkSoft(target, destination string) error {
	const op = "link soft"
	tp, err := ParsePath(target)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	parent, dest, err := t.linkDestination(op, destination)
	if err != nil {
		return err
	}
	if err := t.f.CreateSoftLink(tp.Plain(), dest); err != nil {
		return translate(op, dest, err)
	}
	t.cache.invalidate(parent)
	t.nav.changed(parent)
	t.log.Debug("soft linked", "target", tp.Plain(), "destination", dest)
	return nil
}

// linkDestination resolves the parent group of destination and checks that
// the name is free.
func (t *Tree) linkDestination(op, destination string) (NodeID, string, error) {
	p, err := ParsePath(destination)
	if err != nil {
		return 0, "", err
	}
	if err := t.checkWritable(op, destination); err != nil {
		return 0, "", err
	}
	seg, ok := p.Base()
	if !ok {
		return 0, "", treeErr(op, "/", ErrExists)
	}
	parent, err := t.nav.resolve(op, p.Parent(), KindGroup, false)
	if err != nil {
		return 0, "", err
	}
	dest := p.Plain()
	if _, found, err := t.nav.lookup(op, parent, seg.Name); err != nil {
		return 0, "", err
	} else if found {
		return 0, "", treeErr(op, dest, ErrExists)
	}
	return parent, dest, nil
}
