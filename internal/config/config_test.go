package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, DefaultWorkers, c.Workers)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, DefaultIopTimeout, c.Iop.Timeout.Duration)
	assert.Equal(t, DefaultPollInterval, c.Iop.PollInterval.Duration)
	assert.Empty(t, c.Trace.DB)
	assert.NoError(t, c.Validate())
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
workers = 4
program_dirs = ["lib", "/abs/prog"]
log_level = "debug"

[iop]
timeout = "2s"
poll_interval = "5ms"

[trace]
db = "trace.db"
`))
	require.NoError(t, err)

	assert.Equal(t, 4, c.Workers)
	assert.Equal(t, []string{"lib", "/abs/prog"}, c.ProgramDirs)
	assert.Equal(t, slog.LevelDebug, c.Level())
	assert.Equal(t, 2*time.Second, c.Iop.Timeout.Duration)
	assert.Equal(t, 5*time.Millisecond, c.Iop.PollInterval.Duration)
	assert.Equal(t, "trace.db", c.Trace.DB)
	assert.NoError(t, c.Validate())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"bad duration", "[iop]\ntimeout = \"soon\"", "soon"},
		{"unknown key", "wokers = 2", "unknown keys: wokers"},
		{"bad syntax", "workers = ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Workers = -1
	c.LogLevel = "chatty"
	c.Iop.PollInterval.Duration = -time.Second

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers must be at least 1")
	assert.Contains(t, err.Error(), `unknown log level "chatty"`)
	assert.Contains(t, err.Error(), "iop.poll_interval must be positive")
}

func TestLoadResolvesProgramDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`program_dirs = ["lib", "/abs"]`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "lib"), "/abs"}, c.ProgramDirPaths())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot read")
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("workers = 3"), 0o644))

	c, err := FindAndLoad(nested)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Workers)
	assert.Equal(t, root, c.Dir)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}
