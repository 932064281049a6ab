// Package btree reads the B-tree indexes of the container format.
//
// Version 1 B-trees ("TREE") index the members of old-style groups, whose
// leaves point at symbol table nodes ("SNOD"), and the chunks of datasets
// written with layout messages before version 4. Version 2 B-trees
// ("BTHD") index chunks of version 4 layouts; record types 10 and 11 are
// supported.
//
// The package only reads. Writers in this module index chunks with fixed
// arrays instead.
package btree
