// Package h5 is a handle-based API over HDF5 containers.
//
// A File owns four handle tables, one per Category: objects (groups and
// datasets), dataspaces, attributes and dataset creation property lists.
// Every Create*/Open* call returns an ID that stays valid until the
// matching Close* call or until the File is closed. Objects are addressed by
// absolute paths such as "/entry/data"; soft and external links are
// followed during lookup.
//
// # Writing
//
// Groups, datasets, links and attributes are added by rewriting the parent
// object header in place, so object addresses never change. Chunked
// datasets buffer written chunks in memory until the dataset is closed or
// the File is flushed, at which point a fixed array chunk index is written.
//
// # Locking
//
// On unix systems Open and Create take an advisory flock on the container:
// exclusive for ReadWrite, shared for ReadOnly. WithLocking(false) disables
// this.
package h5
