package cli

import (
	"errors"
	"io"
	"log/slog"

	"github.com/roach88/weft/internal/library"
	"github.com/roach88/weft/internal/natives"
)

// programDirs returns dirs, or the configured program directories when no
// directory was given on the command line.
func programDirs(dirs []string, opts *RootOptions) ([]string, error) {
	if len(dirs) > 0 {
		return dirs, nil
	}
	cfg, err := opts.config()
	if err != nil {
		return nil, err
	}
	return cfg.ProgramDirPaths(), nil
}

// loadLibrary builds a library over the native modules and every program
// directory. Native console output goes to stdout and stderr.
func loadLibrary(dirs []string, stdout, stderr io.Writer) (*library.Library, error) {
	if len(dirs) == 0 {
		return nil, &library.LoadError{
			Code:    library.ErrCodeNotFound,
			Message: "no program directory given and none configured",
		}
	}

	lib := library.New(natives.New(
		natives.WithStdout(stdout),
		natives.WithStderr(stderr),
	))
	for _, dir := range dirs {
		n, err := lib.LoadDir(dir)
		if err != nil {
			return nil, err
		}
		slog.Debug("programs loaded", "dir", dir, "files", n)
	}
	return lib, nil
}

// loadErrorCode returns the E0xx code of a load error.
func loadErrorCode(err error) string {
	var loadErr *library.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return library.ErrCodeGeneric
}
