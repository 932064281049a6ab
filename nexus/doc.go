// Package nexus maintains a NeXus tree over an HDF5 container.
//
// A Tree is opened for reading or writing and addressed with absolute
// augmented paths such as "/entry:NXentry/instrument:NXinstrument/detector".
// Each segment names a group and may carry a NeXus class after a colon.
// Groups are created on demand and tagged with an NX_class attribute.
//
// The tree keeps an in-memory cache of the nodes it has visited. Once a
// group's children have been listed the cache answers every further query
// about that group without touching the container.
//
// Datasets are reached through a DataNode. A DataNode carries the dataset
// shape and element type and is armed for one direction: a Loader reads
// slices and a Saver writes them. Using the wrong direction fails with
// ErrWrongDirection.
package nexus
