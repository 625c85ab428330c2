package internal

import (
	"io"
	"log/slog"

	"github.com/starford/kbclaude/internal/manifest"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	directory string
	cwd       string
	logOutput io.Writer
	verbose   bool
	create    bool
	version   string
	onSync    func(*manifest.Report)
	onEvent   func(kind, path string)
	logger    *slog.Logger
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithDirectory selects the workspace explicitly instead of searching from
// the working directory.
func WithDirectory(dir string) Option {
	return func(a *application) {
		a.directory = dir
	}
}

// WithWorkingDir sets the directory the workspace search starts from.
func WithWorkingDir(dir string) Option {
	return func(a *application) {
		a.cwd = dir
	}
}

// WithLogOutput sets where log records are written.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithVerbose lowers the log level to debug.
func WithVerbose(verbose bool) Option {
	return func(a *application) {
		a.verbose = verbose
	}
}

// WithCreate creates the workspace layout when it does not exist yet.
func WithCreate(create bool) Option {
	return func(a *application) {
		a.create = create
	}
}

// WithVersion sets the version reported by the tool server.
func WithVersion(version string) Option {
	return func(a *application) {
		a.version = version
	}
}

// WithSyncHandler is called with every report produced while watching.
func WithSyncHandler(fn func(*manifest.Report)) Option {
	return func(a *application) {
		a.onSync = fn
	}
}

// WithEventHandler is called for every file change picked up while watching.
func WithEventHandler(fn func(kind, path string)) Option {
	return func(a *application) {
		a.onEvent = fn
	}
}

// WithLogger overrides the logger built from the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(a *application) {
		a.logger = logger
	}
}
