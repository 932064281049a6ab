package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/robert-malhotra/go-nexus/nexus"
)

// DeflateOptions is the storage.compression.deflate section.
type DeflateOptions struct {
	Level int `mapstructure:"level" validate:"gte=0,lte=9"`
}

// ZstdOptions is the storage.compression.zstd section.
type ZstdOptions struct {
	Level int `mapstructure:"level" validate:"gte=0,lte=22"`
}

// codecOptions decodes the section of the selected codec and returns its
// level. Sections of codecs that are not selected are ignored.
func (c *CompressionConfig) codecOptions() (level int, err error) {
	codec, err := nexus.ParseCodec(c.Codec)
	if err != nil {
		return 0, err
	}
	switch codec {
	case nexus.CodecDeflate:
		var opts DeflateOptions
		if err := decodeSection("deflate", c.Deflate, &opts); err != nil {
			return 0, err
		}
		return opts.Level, nil
	case nexus.CodecZstd:
		var opts ZstdOptions
		if err := decodeSection("zstd", c.Zstd, &opts); err != nil {
			return 0, err
		}
		return opts.Level, nil
	}
	return 0, nil
}

func decodeSection(name string, raw map[string]any, out any) error {
	if err := mapstructure.Decode(raw, out); err != nil {
		return fmt.Errorf("storage.compression.%s: %w", name, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("storage.compression.%s: %w", name, formatValidationError(err))
	}
	return nil
}

// Compression converts the storage section into filter settings.
func (c *Config) Compression() (nexus.Compression, error) {
	cc := &c.Storage.Compression
	codec, err := nexus.ParseCodec(cc.Codec)
	if err != nil {
		return nexus.Compression{}, err
	}
	level, err := cc.codecOptions()
	if err != nil {
		return nexus.Compression{}, err
	}
	return nexus.Compression{
		Codec:      codec,
		Level:      level,
		Shuffle:    cc.Shuffle,
		Fletcher32: cc.Fletcher32,
	}, nil
}

// TreeOptions returns the options every tree opened by nxtree receives.
func (c *Config) TreeOptions(logger *slog.Logger) ([]nexus.Option, error) {
	comp, err := c.Compression()
	if err != nil {
		return nil, err
	}
	opts := []nexus.Option{
		nexus.WithCompression(comp),
		nexus.WithLocking(c.Locking.Mode != "none"),
		nexus.WithAddressSizes(c.Storage.OffsetSize, c.Storage.LengthSize),
	}
	if logger != nil {
		opts = append(opts, nexus.WithLogger(logger))
	}
	return opts, nil
}

// NewLogger builds the logger described by the logging section. The
// returned closer releases the log file, if any.
func (l LoggingConfig) NewLogger() (*slog.Logger, io.Closer, error) {
	var (
		w      io.Writer
		closer io.Closer = nopCloser{}
	)
	switch strings.ToLower(l.Output) {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(l.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log output: %w", err)
		}
		w, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: parseLevel(l.Level)}
	var h slog.Handler
	if l.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
