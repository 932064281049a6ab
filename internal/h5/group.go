package h5

import (
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/message"
	"github.com/robert-malhotra/go-nexus/internal/object"
)

// CreateGroup creates an empty group at path and opens it.
func (f *File) CreateGroup(path string) (ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWritable(); err != nil {
		return InvalidID, err
	}

	parent, name, err := f.writableParent(path)
	if err != nil {
		return InvalidID, err
	}
	if _, err := f.findLink(parent.addr, name); err == nil {
		return InvalidID, fmt.Errorf("%w: %s", ErrExists, path)
	}

	addr, err := f.writeHeader(object.GroupMessages(), object.MinGroupChunk)
	if err != nil {
		return InvalidID, err
	}
	if err := f.addLink(parent.addr, message.NewHardLink(name, addr)); err != nil {
		return InvalidID, err
	}

	ref := &objectRef{loc: location{file: f, addr: addr}, kind: KindGroup, path: absPath(splitPath(path))}
	return register(&f.handles, f.handles.objects, ref), nil
}

// writeHeader writes a new object header at the end of the file.
func (f *File) writeHeader(msgs []message.Message, minChunk int) (uint64, error) {
	size := object.Size(f.writer, msgs, minChunk)
	addr := f.allocator.Alloc(uint64(size))
	if _, err := object.Write(f.writer.At(int64(addr)), msgs, minChunk); err != nil {
		return 0, fmt.Errorf("writing object header: %w", err)
	}
	return addr, nil
}

// addLink appends link to the group at addr.
func (f *File) addLink(addr uint64, link *message.Link) error {
	if _, err := f.findLink(addr, link.Name); err == nil {
		return fmt.Errorf("%w: link %q", ErrExists, link.Name)
	}
	msgs, err := f.groupMessages(addr)
	if err != nil {
		return err
	}
	return f.rewrite(addr, append(msgs, link))
}

// removeLink deletes the link called name from the group at addr.
func (f *File) removeLink(addr uint64, name string) error {
	if _, err := f.findLink(addr, name); err != nil {
		return fmt.Errorf("%w: link %q", err, name)
	}
	msgs, err := f.groupMessages(addr)
	if err != nil {
		return err
	}
	kept := msgs[:0]
	for _, msg := range msgs {
		if link := linkOf(msg); link != nil && link.Name == name {
			continue
		}
		kept = append(kept, msg)
	}
	return f.rewrite(addr, kept)
}

func linkOf(msg message.Message) *message.Link {
	switch m := msg.(type) {
	case *message.Link:
		return m
	case *message.Raw:
		if l, ok := m.Parsed.(*message.Link); ok {
			return l
		}
	}
	return nil
}

// groupMessages returns the message list of the group at addr in the form
// that stores links as link messages. Symbol table groups are converted:
// their entries become link messages and the symbol table message is
// dropped. The B-tree and local heap stay in the file unreferenced.
func (f *File) groupMessages(addr uint64) ([]message.Message, error) {
	hdr, err := f.header(addr)
	if err != nil {
		return nil, err
	}
	symTable := f.symbolTable(addr, hdr)
	if symTable == nil {
		return rawMessages(hdr, nil), nil
	}

	links, err := f.links(addr, hdr)
	if err != nil {
		return nil, err
	}
	msgs := rawMessages(hdr, func(r *message.Raw) bool {
		return r.MsgType != message.TypeSymbolTable
	})
	if hdr.GetMessage(message.TypeLinkInfo) == nil {
		msgs = append(msgs, message.NewLinkInfo())
	}
	if hdr.GetMessage(message.TypeGroupInfo) == nil {
		msgs = append(msgs, message.NewGroupInfo())
	}
	for _, link := range links {
		msgs = append(msgs, link)
	}

	if addr == f.superblock.RootGroupAddress {
		if err := f.superblock.ClearRootCache(f.writer); err != nil {
			return nil, fmt.Errorf("clearing root symbol table cache: %w", err)
		}
	}
	return msgs, nil
}
