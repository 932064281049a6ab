package config

import "strings"

var defaultValues = map[string]any{
	"logging.level":                  "WARN",
	"logging.format":                 "text",
	"logging.output":                 "stderr",
	"storage.compression.codec":      "none",
	"storage.compression.shuffle":    false,
	"storage.compression.fletcher32": false,
	"storage.offset_size":            8,
	"storage.length_size":            8,
	"locking.mode":                   "advisory",
}

// ApplyDefaults fills zero fields with defaults and normalizes values.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyCompressionDefaults(&cfg.Storage.Compression)
	if cfg.Storage.OffsetSize == 0 {
		cfg.Storage.OffsetSize = 8
	}
	if cfg.Storage.LengthSize == 0 {
		cfg.Storage.LengthSize = 8
	}
	if cfg.Locking.Mode == "" {
		cfg.Locking.Mode = "advisory"
	}
	cfg.Locking.Mode = strings.ToLower(cfg.Locking.Mode)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "WARN"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyCompressionDefaults(cfg *CompressionConfig) {
	if cfg.Codec == "" {
		cfg.Codec = "none"
	}
	cfg.Codec = strings.ToLower(cfg.Codec)
	if cfg.Deflate == nil {
		cfg.Deflate = make(map[string]any)
	}
	if cfg.Zstd == nil {
		cfg.Zstd = make(map[string]any)
	}
}
