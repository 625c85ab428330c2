// Package internal wires configuration, logging and the knowledge base
// services together for the command line.
package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/kbclaude/internal/apperr"
	"github.com/starford/kbclaude/internal/docservice"
	"github.com/starford/kbclaude/internal/index"
	"github.com/starford/kbclaude/internal/manifest"
	"github.com/starford/kbclaude/internal/mcpserver"
	"github.com/starford/kbclaude/internal/storage"
	"github.com/starford/kbclaude/internal/workspace"
)

// NewLogger builds the process logger. Records go to w so that standard
// output stays reserved for command results.
func NewLogger(cfg ApplicationConfig, w io.Writer, verbose bool) *slog.Logger {
	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// App is an opened knowledge base ready for commands.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Root    *workspace.Root
	Store   storage.Provider
	Service *docservice.Service
	// Created is set when opening had to create the layout.
	Created bool

	db  *index.DB
	app *application
}

func build(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.cwd == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		app.cwd = cwd
	}
	if app.logger == nil {
		app.logger = NewLogger(app.config.App, app.logOutput, app.verbose)
	}
	return app, nil
}

func (a *application) resolve() (*workspace.Root, error) {
	return workspace.Resolve(a.directory, a.cwd, a.config.Layout())
}

// Init creates the workspace layout and returns the directories that were
// missing. With dryRun nothing is written.
func Init(dryRun bool, opts ...Option) (*workspace.Root, []string, error) {
	app, err := build(opts)
	if err != nil {
		return nil, nil, err
	}
	root, err := app.resolve()
	if err != nil {
		return nil, nil, err
	}
	created, err := root.EnsureLayout(dryRun)
	if err != nil {
		return nil, nil, err
	}
	app.logger.Debug("layout ensured",
		slog.String("root", root.Dir),
		slog.Int("created", len(created)),
		slog.Bool("dry_run", dryRun))
	return root, created, nil
}

// Open resolves the workspace and builds the document service. A missing
// workspace is an error unless WithCreate is given.
func Open(opts ...Option) (*App, error) {
	app, err := build(opts)
	if err != nil {
		return nil, err
	}
	cfg := app.config
	logger := app.logger

	root, err := app.resolve()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Root: root, app: app}
	if !root.Exists() {
		if !app.create {
			return nil, fmt.Errorf("no %s directory found under %s. Run `kb-claude init` first: %w",
				cfg.Workspace.DirName, root.Base, apperr.ErrNotFound)
		}
		if _, err := root.EnsureLayout(false); err != nil {
			return nil, err
		}
		a.Created = true
		logger.Info("layout created", slog.String("root", root.Dir))
	}

	store, err := root.Open()
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.Store = store

	svcOpts := []docservice.Option{docservice.WithLogger(logger)}
	if cfg.Index.Enabled {
		db, err := index.Open(root.IndexPath())
		if err != nil {
			// The index is derived; commands fall back to scanning.
			logger.Warn("index unavailable", slog.String("path", root.IndexPath()), slog.String("error", err.Error()))
		} else {
			a.db = db
			svcOpts = append(svcOpts, docservice.WithIndex(db))
		}
	}
	a.Service = docservice.New(root, store, svcOpts...)

	logger.Debug("workspace opened",
		slog.String("root", root.Dir),
		slog.Bool("index", a.db != nil))
	return a, nil
}

// Close releases the search index.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *App) notify(report *manifest.Report) {
	if a.app.onSync != nil {
		a.app.onSync(report)
	}
}

// Run watches the workspace and re-synchronizes the manifest and index after
// every burst of changes until ctx is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	a, err := Open(opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.Logger
	cfg := a.Config

	report, err := a.Service.Sync(ctx)
	if err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	a.notify(report)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return index.Watch(gCtx, a.db, a.Store, a.Root.Dir, logger, index.WatchOptions{
			Debounce: cfg.Watch.Debounce,
			OnEvent:  a.app.onEvent,
			OnSettle: func() {
				report, err := a.Service.Sync(gCtx)
				if err != nil {
					logger.Error("sync failed", slog.String("error", err.Error()))
					return
				}
				a.notify(report)
			},
		})
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("watch stopped", slog.String("error", err.Error()))
		return err
	}
	logger.Info("watch stopped")
	return nil
}

// ServeMCP serves the knowledge base tools over stdin and stdout until the
// input closes, ctx is cancelled or a shutdown signal arrives.
func ServeMCP(ctx context.Context, opts ...Option) error {
	a, err := Open(opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.Service.RefreshIndex(ctx); err != nil {
		a.Logger.Warn("initial index sync failed", slog.String("error", err.Error()))
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	version := a.app.version
	if version == "" {
		version = "dev"
	}
	a.Logger.Info("mcp server starting", slog.String("root", a.Root.Dir), slog.String("version", version))
	return mcpserver.New(a.Service, version).Serve(ctx, os.Stdin, os.Stdout)
}
