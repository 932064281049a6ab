package h5

// Mode selects how Open accesses the container.
type Mode uint8

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "read-write"
	}
	return "read-only"
}

// Option configures Open and Create.
type Option func(*options)

type options struct {
	offsetSize int
	lengthSize int
	locking    bool
	exclusive  bool
}

func defaultOptions() *options {
	return &options{
		offsetSize: 8,
		lengthSize: 8,
		locking:    true,
	}
}

// WithOffsetSize sets the size in bytes for file offsets (2, 4, or 8).
// It only affects Create.
func WithOffsetSize(size int) Option {
	return func(o *options) {
		if size == 2 || size == 4 || size == 8 {
			o.offsetSize = size
		}
	}
}

// WithLengthSize sets the size in bytes for lengths (2, 4, or 8).
// It only affects Create.
func WithLengthSize(size int) Option {
	return func(o *options) {
		if size == 2 || size == 4 || size == 8 {
			o.lengthSize = size
		}
	}
}

// WithLocking enables or disables advisory file locking.
func WithLocking(enabled bool) Option {
	return func(o *options) {
		o.locking = enabled
	}
}

// WithExclusive makes Create fail with an error wrapping fs.ErrExist when
// the file already exists instead of truncating it.
func WithExclusive() Option {
	return func(o *options) {
		o.exclusive = true
	}
}
