// Package dtype moves element data between stored HDF5 bytes and Go values.
//
// Only the datatype classes that scientific payloads use are handled:
// fixed-point integers, IEEE floats, fixed-length strings and
// variable-length strings held in the global heap. Enumerations decode
// as their base integer type.
package dtype
