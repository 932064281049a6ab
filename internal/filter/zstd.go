package filter

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/robert-malhotra/go-nexus/internal/message"
)

// Zstd implements the registered Zstandard filter. Chunks are stored as a
// single zstd frame.
type Zstd struct {
	level zstd.EncoderLevel
}

var (
	zstdDecoderOnce sync.Once
	zstdDecoder     *zstd.Decoder
	zstdDecoderErr  error

	zstdEncodersMu sync.Mutex
	zstdEncoders   = map[zstd.EncoderLevel]*zstd.Encoder{}
)

// NewZstd creates a Zstandard filter.
// Client data: [0] = compression level (1-22, default 3)
func NewZstd(clientData []uint32) *Zstd {
	level := 3
	if len(clientData) > 0 && clientData[0] > 0 {
		level = int(clientData[0])
	}
	return &Zstd{level: zstd.EncoderLevelFromZstd(level)}
}

func (f *Zstd) ID() uint16 {
	return message.FilterZstd
}

func (f *Zstd) Decode(input []byte) ([]byte, error) {
	zstdDecoderOnce.Do(func() {
		zstdDecoder, zstdDecoderErr = zstd.NewReader(nil)
	})
	if zstdDecoderErr != nil {
		return nil, fmt.Errorf("zstd reader: %w", zstdDecoderErr)
	}
	out, err := zstdDecoder.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}

func (f *Zstd) Encode(input []byte) ([]byte, error) {
	zstdEncodersMu.Lock()
	enc, ok := zstdEncoders[f.level]
	if !ok {
		var err error
		enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(f.level))
		if err != nil {
			zstdEncodersMu.Unlock()
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		zstdEncoders[f.level] = enc
	}
	zstdEncodersMu.Unlock()
	return enc.EncodeAll(input, nil), nil
}
