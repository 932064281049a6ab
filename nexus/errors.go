package nexus

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-nexus/internal/h5"
)

// Kinds of TreeError.
var (
	ErrNotFound       = errors.New("node not found")
	ErrNotAGroup      = errors.New("node is not a group")
	ErrKindMismatch   = errors.New("node kind mismatch")
	ErrExists         = errors.New("node already exists")
	ErrWrongDirection = errors.New("dataset is armed for the other direction")
	ErrShapeMismatch  = errors.New("shape mismatch")
	ErrTypeMismatch   = errors.New("value type does not match element type")
	ErrReadOnly       = errors.New("tree is read-only")
	ErrClosed         = errors.New("tree is closed")
)

// PathErrorKind classifies a rejected path.
type PathErrorKind uint8

const (
	NotAbsolute PathErrorKind = iota + 1
	Malformed
)

func (k PathErrorKind) String() string {
	switch k {
	case NotAbsolute:
		return "not absolute"
	case Malformed:
		return "malformed"
	default:
		return fmt.Sprintf("PathErrorKind(%d)", uint8(k))
	}
}

// PathError reports a path that ParsePath rejected.
type PathError struct {
	Path string
	Kind PathErrorKind
}

func (e *PathError) Error() string {
	return fmt.Sprintf("nexus: path %q is %s", e.Path, e.Kind)
}

// TreeError reports a tree operation that failed for a structural reason.
// Kind is one of the Err* values of this package and can be tested with
// errors.Is.
type TreeError struct {
	Op     string
	Path   string
	Kind   error
	Detail string
}

func (e *TreeError) Error() string {
	s := "nexus: " + e.Op + " " + e.Path + ": " + e.Kind.Error()
	if e.Detail != "" {
		s += " (" + e.Detail + ")"
	}
	return s
}

func (e *TreeError) Unwrap() error { return e.Kind }

// TypeError reports a storage type, or a Go value type, that has no
// element type.
type TypeError struct {
	ID h5.TypeID
	Go string
}

func (e *TypeError) Error() string {
	if e.Go != "" {
		return "nexus: unsupported value type " + e.Go
	}
	return "nexus: unsupported storage type " + e.ID.String()
}

// IoError wraps a failure reported by the container.
type IoError struct {
	Op   string
	Path string
	Err  error
}

func (e *IoError) Error() string {
	if e.Path == "" {
		return "nexus: " + e.Op + ": " + e.Err.Error()
	}
	return "nexus: " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *IoError) Unwrap() error { return e.Err }

func treeErr(op, path string, kind error) *TreeError {
	return &TreeError{Op: op, Path: path, Kind: kind}
}

func shapeErr(op, path, format string, args ...any) *TreeError {
	return &TreeError{Op: op, Path: path, Kind: ErrShapeMismatch, Detail: fmt.Sprintf(format, args...)}
}

// translate maps a container error onto the error taxonomy of this package.
func translate(op, path string, err error) error {
	var (
		pe *PathError
		te *TreeError
		ty *TypeError
		ie *IoError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &pe), errors.As(err, &te), errors.As(err, &ty), errors.As(err, &ie):
		return err
	case errors.Is(err, h5.ErrClosed):
		return treeErr(op, path, ErrClosed)
	case errors.Is(err, h5.ErrReadOnly):
		return treeErr(op, path, ErrReadOnly)
	case errors.Is(err, h5.ErrNotGroup):
		return treeErr(op, path, ErrNotAGroup)
	case errors.Is(err, h5.ErrExists):
		return treeErr(op, path, ErrExists)
	case errors.Is(err, h5.ErrNotFound):
		return treeErr(op, path, ErrNotFound)
	default:
		return &IoError{Op: op, Path: path, Err: err}
	}
}
