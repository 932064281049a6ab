// Package heap reads local heaps, which hold the member names of
// symbol-table groups, and reads and writes global heap collections, which
// hold the bytes of variable-length strings.
package heap
