// Package superblock reads and writes the superblock, the fixed structure
// at the start of a container that declares field widths and the address
// of the root group.
//
// Versions 0 through 3 are read. New files get version 3, whose fields are
// covered by a lookup3 checksum. Version 0 and 1 files keep their layout
// when updated; only the end-of-file address and the root symbol table
// cache are ever patched in place.
package superblock
