package main

import (
	"context"
	"errors"
	"io"
	"os"

	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v3"

	"github.com/starford/kbclaude/internal/apperr"
	"github.com/starford/kbclaude/internal/ux"
)

var version = "dev"

func main() {
	printer := ux.New(os.Stdout, os.Stderr, false, os.Getenv("NO_COLOR") == "")
	app := newApp(&commands{printer: printer, stdin: os.Stdin})

	if err := app.Run(context.Background(), os.Args); err != nil {
		report(printer, err)
		os.Exit(1)
	}
}

// report prints a command failure. A failed validation in JSON mode has
// already been reported by the findings document.
func report(printer *ux.Printer, err error) {
	if printer.JSON && errors.Is(err, apperr.ErrValidationFailed) {
		return
	}
	printer.Error(err)
}

type commands struct {
	printer *ux.Printer
	stdin   io.Reader
}

func newApp(c *commands) *cli.Command {
	return &cli.Command{
		Name:    "kb-claude",
		Usage:   "Structured, typed management of a .claude knowledge base",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (optional)",
				Value:   ".kb-claude.yaml",
				Sources: cli.EnvVars("KB_CLAUDE_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "directory",
				Aliases: []string{"d"},
				Usage:   "Directory that contains (or will contain) the .claude root",
				Sources: cli.EnvVars("KB_CLAUDE_DIR"),
			},
			&cli.BoolFlag{Name: "json", Usage: "Print machine readable JSON"},
			&cli.BoolFlag{Name: "verbose", Usage: "Log debug output and list every synchronized path"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("json") {
				c.printer.JSON = true
				c.printer.Color = false
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			c.initCmd(),
			c.newCmd(),
			c.linkCmd(),
			c.validateCmd(),
			c.manifestCmd(),
			c.syncCmd(),
			c.listCmd(),
			c.searchCmd(),
			c.showCmd(),
			c.deleteCmd(),
			c.moveCmd(),
			c.hashCmd(),
			c.watchCmd(),
			c.mcpCmd(),
		},
	}
}
