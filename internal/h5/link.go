package h5

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-nexus/internal/btree"
	"github.com/robert-malhotra/go-nexus/internal/heap"
	"github.com/robert-malhotra/go-nexus/internal/message"
	"github.com/robert-malhotra/go-nexus/internal/object"
)

// location is the header address of an object in some container.
type location struct {
	file *File
	addr uint64
}

// normalizePath removes leading and trailing slashes.
func normalizePath(path string) string {
	path = strings.TrimPrefix(path, "/")
	return strings.TrimSuffix(path, "/")
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	path = normalizePath(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func absPath(parts []string) string {
	return "/" + strings.Join(parts, "/")
}

// resolve navigates an absolute path from the root group, following soft
// and external links.
func (f *File) resolve(path string) (location, error) {
	return f.resolveVisited(path, make(map[string]bool))
}

// resolveVisited is resolve with a visited set shared across the links
// followed so far, used to detect cycles.
func (f *File) resolveVisited(path string, visited map[string]bool) (location, error) {
	loc := location{file: f, addr: f.superblock.RootGroupAddress}
	for _, name := range splitPath(path) {
		if name == "" {
			return location{}, fmt.Errorf("%w: empty component in path %q", ErrInvalid, path)
		}
		link, err := loc.file.findLink(loc.addr, name)
		if err != nil {
			return location{}, fmt.Errorf("resolving %q in path %s: %w", name, path, err)
		}
		loc, err = loc.file.follow(link, visited)
		if err != nil {
			return location{}, fmt.Errorf("resolving %q in path %s: %w", name, path, err)
		}
	}
	return loc, nil
}

// resolveParent resolves all but the last component of path, which must
// name a group, and returns the last component.
func (f *File) resolveParent(path string) (location, string, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return location{}, "", fmt.Errorf("%w: the root group has no parent", ErrInvalid)
	}
	name := parts[len(parts)-1]
	if name == "" || name == "." || name == ".." {
		return location{}, "", fmt.Errorf("%w: link name %q", ErrInvalid, name)
	}
	parent, err := f.resolve(absPath(parts[:len(parts)-1]))
	if err != nil {
		return location{}, "", err
	}
	hdr, err := parent.file.header(parent.addr)
	if err != nil {
		return location{}, "", err
	}
	if !parent.file.isGroup(parent.addr, hdr) {
		return location{}, "", fmt.Errorf("%w: %s", ErrNotGroup, absPath(parts[:len(parts)-1]))
	}
	return parent, name, nil
}

// follow returns the object a link points to.
func (f *File) follow(link *message.Link, visited map[string]bool) (location, error) {
	switch {
	case link.IsHard():
		return location{file: f, addr: link.ObjectAddress}, nil

	case link.IsSoft():
		key := f.path + ":" + link.SoftLinkValue
		if len(visited) >= MaxLinkDepth {
			return location{}, ErrLinkDepth
		}
		if visited[key] {
			return location{}, fmt.Errorf("circular soft link detected: %s", link.SoftLinkValue)
		}
		visited[key] = true
		return f.resolveVisited(link.SoftLinkValue, visited)

	case link.IsExternal():
		key := link.ExternalFile + ":" + link.ExternalPath
		if len(visited) >= MaxLinkDepth {
			return location{}, ErrLinkDepth
		}
		if visited[key] {
			return location{}, fmt.Errorf("circular external link detected: %s", key)
		}
		visited[key] = true
		extFile, err := f.openExternalFile(link.ExternalFile)
		if err != nil {
			return location{}, err
		}
		return extFile.resolveVisited(link.ExternalPath, visited)

	default:
		return location{}, fmt.Errorf("%w: link type %d", ErrUnsupported, link.LinkType)
	}
}

// findLink returns the link called name in the group at addr.
func (f *File) findLink(addr uint64, name string) (*message.Link, error) {
	hdr, err := f.header(addr)
	if err != nil {
		return nil, err
	}
	if !f.isGroup(addr, hdr) {
		return nil, ErrNotGroup
	}
	links, err := f.links(addr, hdr)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		if link.Name == name {
			return link, nil
		}
	}
	return nil, ErrNotFound
}

// links returns the links of a group in storage order. Symbol table
// entries of version 1 groups are returned as link messages.
func (f *File) links(addr uint64, hdr *object.Header) ([]*message.Link, error) {
	if info, ok := hdr.GetMessage(message.TypeLinkInfo).(*message.LinkInfo); ok && info.Dense() {
		return nil, fmt.Errorf("%w: dense link storage in group at %d", ErrUnsupported, addr)
	}

	var links []*message.Link
	for _, msg := range hdr.GetMessages(message.TypeLink) {
		links = append(links, msg.(*message.Link))
	}

	symTable := f.symbolTable(addr, hdr)
	if symTable == nil {
		return links, nil
	}

	// Read the local heap to get string names
	localHeap, err := heap.ReadLocalHeap(f.reader, symTable.LocalHeapAddress)
	if err != nil {
		return nil, fmt.Errorf("reading local heap: %w", err)
	}
	entries, err := btree.ReadGroupEntries(f.reader, symTable.BTreeAddress, localHeap)
	if err != nil {
		return nil, fmt.Errorf("reading B-tree: %w", err)
	}
	for _, entry := range entries {
		if entry.Soft {
			links = append(links, message.NewSoftLink(entry.Name, entry.SoftLinkValue))
		} else {
			links = append(links, message.NewHardLink(entry.Name, entry.ObjectAddress))
		}
	}
	return links, nil
}

// symbolTable returns the symbol table of a version 1 group, or nil for
// groups that store link messages.
func (f *File) symbolTable(addr uint64, hdr *object.Header) *message.SymbolTable {
	if st, ok := hdr.GetMessage(message.TypeSymbolTable).(*message.SymbolTable); ok {
		return st
	}

	// Fallback for root group: use cached addresses from superblock scratch pad
	sb := f.superblock
	if addr == sb.RootGroupAddress && sb.RootGroupBTreeAddress != 0 &&
		!f.reader.IsUndefinedOffset(sb.RootGroupBTreeAddress) &&
		hdr.GetMessage(message.TypeLinkInfo) == nil && len(hdr.GetMessages(message.TypeLink)) == 0 {
		return &message.SymbolTable{
			BTreeAddress:     sb.RootGroupBTreeAddress,
			LocalHeapAddress: sb.RootGroupLocalHeapAddress,
		}
	}
	return nil
}

// isGroup reports whether the header at addr describes a group.
func (f *File) isGroup(addr uint64, hdr *object.Header) bool {
	if addr == f.superblock.RootGroupAddress {
		return true
	}
	return hdr.GetMessage(message.TypeLinkInfo) != nil ||
		hdr.GetMessage(message.TypeSymbolTable) != nil ||
		hdr.GetMessage(message.TypeLink) != nil
}

// kindOf classifies the object at loc.
func kindOf(loc location) (ObjectKind, *object.Header, error) {
	hdr, err := loc.file.header(loc.addr)
	if err != nil {
		return 0, nil, err
	}
	switch {
	case hdr.IsDataset():
		return KindDataset, hdr, nil
	case loc.file.isGroup(loc.addr, hdr):
		return KindGroup, hdr, nil
	default:
		return 0, nil, fmt.Errorf("%w: object at %d is neither a group nor a dataset", ErrUnsupported, loc.addr)
	}
}

// LinkExists reports whether the group containing path has a link with
// path's last component. It returns false when an ancestor is missing.
func (f *File) LinkExists(path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return false, err
	}
	f.stats.Lookups++

	if len(splitPath(path)) == 0 {
		return true, nil
	}
	parent, name, err := f.resolveParent(path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, err = parent.file.findLink(parent.addr, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// LinkNames returns the link names of the group at path in storage order.
func (f *File) LinkNames(path string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return nil, err
	}
	f.stats.Lookups++

	loc, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	hdr, err := loc.file.header(loc.addr)
	if err != nil {
		return nil, err
	}
	if !loc.file.isGroup(loc.addr, hdr) {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, path)
	}
	links, err := loc.file.links(loc.addr, hdr)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(links))
	for i, link := range links {
		names[i] = link.Name
	}
	return names, nil
}

// writableParent resolves the parent group of path, which must live in
// this file.
func (f *File) writableParent(path string) (location, string, error) {
	parent, name, err := f.resolveParent(path)
	if err != nil {
		return location{}, "", err
	}
	if parent.file != f {
		return location{}, "", fmt.Errorf("%w: %s is in external file %s", ErrReadOnly, path, parent.file.path)
	}
	return parent, name, nil
}

// CreateHardLink adds a link at path to the existing object at target.
func (f *File) CreateHardLink(target, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWritable(); err != nil {
		return err
	}

	loc, err := f.resolve(target)
	if err != nil {
		return err
	}
	if loc.file != f {
		return fmt.Errorf("%w: hard link target %s is in another file", ErrInvalid, target)
	}
	parent, name, err := f.writableParent(path)
	if err != nil {
		return err
	}
	return f.addLink(parent.addr, message.NewHardLink(name, loc.addr))
}

// CreateSoftLink adds a link at path that refers to target by path. The
// target does not need to exist.
func (f *File) CreateSoftLink(target, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWritable(); err != nil {
		return err
	}
	parent, name, err := f.writableParent(path)
	if err != nil {
		return err
	}
	return f.addLink(parent.addr, message.NewSoftLink(name, target))
}

// CreateExternalLink adds a link at path to target inside the container
// file, which is resolved relative to this file's directory.
func (f *File) CreateExternalLink(file, target, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWritable(); err != nil {
		return err
	}
	if file == "" {
		return fmt.Errorf("%w: empty external file name", ErrInvalid)
	}
	parent, name, err := f.writableParent(path)
	if err != nil {
		return err
	}
	return f.addLink(parent.addr, message.NewExternalLink(name, file, target))
}

// Unlink removes the link at path. The object it pointed to stays in the
// file; its space is not reclaimed.
func (f *File) Unlink(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWritable(); err != nil {
		return err
	}
	parent, name, err := f.writableParent(path)
	if err != nil {
		return err
	}
	return f.removeLink(parent.addr, name)
}
