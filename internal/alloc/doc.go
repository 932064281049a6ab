// Package alloc hands out file space for new metadata and raw data.
//
// Space is only ever appended at the end of the file; released space is
// not reused. Every extent is recorded so that tests and debug builds can
// check that no two writers were given overlapping space.
package alloc
