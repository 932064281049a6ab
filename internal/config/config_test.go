package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-nexus/nexus"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, "none", cfg.Storage.Compression.Codec)
	assert.Equal(t, "advisory", cfg.Locking.Mode)
	assert.Equal(t, 8, cfg.Storage.OffsetSize)
	assert.Equal(t, 8, cfg.Storage.LengthSize)

	comp, err := cfg.Compression()
	require.NoError(t, err)
	assert.Equal(t, nexus.Compression{}, comp)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
storage:
  compression:
    codec: zstd
    shuffle: true
    zstd:
      level: 7
    deflate:
      level: 99
locking:
  mode: none
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "none", cfg.Locking.Mode)

	// The deflate section is ignored while zstd is selected.
	comp, err := cfg.Compression()
	require.NoError(t, err)
	assert.Equal(t, nexus.Compression{Codec: nexus.CodecZstd, Level: 7, Shuffle: true}, comp)

	opts, err := cfg.TreeOptions(nil)
	require.NoError(t, err)
	assert.Len(t, opts, 3)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")
	t.Setenv("NXTREE_LOGGING_LEVEL", "error")
	t.Setenv("NXTREE_STORAGE_COMPRESSION_CODEC", "gzip")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", cfg.Logging.Level)

	comp, err := cfg.Compression()
	require.NoError(t, err)
	assert.Equal(t, nexus.CodecDeflate, comp.Codec)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"codec", "storage:\n  compression:\n    codec: brotli\n", "Codec"},
		{"format", "logging:\n  format: xml\n", "Format"},
		{"level", "logging:\n  level: loud\n", "Level"},
		{"locking", "locking:\n  mode: mandatory\n", "Mode"},
		{"offset size", "storage:\n  offset_size: 3\n", "OffsetSize"},
		{"zstd level", "storage:\n  compression:\n    codec: zstd\n    zstd:\n      level: 30\n", "storage.compression.zstd"},
		{"deflate type", "storage:\n  compression:\n    codec: deflate\n    deflate:\n      level: high\n", "storage.compression.deflate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAddressSizesFromEnvironment(t *testing.T) {
	t.Setenv("NXTREE_STORAGE_OFFSET_SIZE", "4")
	cfg, err := Load(writeConfig(t, "storage:\n  length_size: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Storage.OffsetSize)
	assert.Equal(t, 2, cfg.Storage.LengthSize)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestNewLoggerToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nxtree.log")
	l := LoggingConfig{Level: "INFO", Format: "json", Output: path}

	logger, closer, err := l.NewLogger()
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("opened", "tree", "/tmp/x.nxs")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), `"msg":"opened"`)
	assert.Contains(t, string(data), `"tree":"/tmp/x.nxs"`)
}

func TestTreeOptionsApply(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	require.NoError(t, Validate(cfg))

	opts, err := cfg.TreeOptions(nil)
	require.NoError(t, err)

	tree, err := nexus.CreateAndOpenToWrite(filepath.Join(t.TempDir(), "t.nxs"), opts...)
	require.NoError(t, err)
	_, err = tree.CreateGroup("/entry:NXentry", true)
	require.NoError(t, err)
	require.NoError(t, tree.Close())
}
