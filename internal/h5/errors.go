package h5

import "errors"

// Common errors
var (
	ErrNotFound      = errors.New("object not found")
	ErrExists        = errors.New("object already exists")
	ErrNotGroup      = errors.New("object is not a group")
	ErrNotDataset    = errors.New("object is not a dataset")
	ErrReadOnly      = errors.New("file is not writable")
	ErrClosed        = errors.New("file is closed")
	ErrInvalidHandle = errors.New("invalid handle")
	ErrInvalid       = errors.New("invalid argument")
	ErrUnsupported   = errors.New("unsupported feature")
	ErrLinkDepth     = errors.New("maximum link depth exceeded")
	ErrLocked        = errors.New("file is locked by another process")
)

// MaxLinkDepth is the maximum number of soft/external links that can be followed
// in a single path resolution.
const MaxLinkDepth = 100
