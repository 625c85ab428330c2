package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	cli "github.com/urfave/cli/v3"

	"github.com/starford/kbclaude/internal"
	"github.com/starford/kbclaude/internal/apperr"
	"github.com/starford/kbclaude/internal/checksum"
	"github.com/starford/kbclaude/internal/docservice"
	"github.com/starford/kbclaude/internal/index"
	"github.com/starford/kbclaude/internal/manifest"
	"github.com/starford/kbclaude/internal/models"
	"github.com/starford/kbclaude/internal/prompt"
	"github.com/starford/kbclaude/internal/ux"
	pkgconfig "github.com/starford/kbclaude/pkg/config"
)

// options loads the configuration and translates the global flags.
func (c *commands) options(cmd *cli.Command, extra ...internal.Option) ([]internal.Option, error) {
	cfg := internal.NewDefaultConfig()
	path := cmd.String("config")
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if _, err := pkgconfig.LoadOptional(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithDirectory(cmd.String("directory")),
		internal.WithVerbose(cmd.Bool("verbose")),
		internal.WithVersion(version),
	}
	return append(opts, extra...), nil
}

func (c *commands) open(cmd *cli.Command, extra ...internal.Option) (*internal.App, error) {
	opts, err := c.options(cmd, extra...)
	if err != nil {
		return nil, err
	}
	return internal.Open(opts...)
}

func (c *commands) initCmd() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Create the .claude directory and one folder per document type",
		ArgsUsage: "[directory]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Show the directories that would be created"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var extra []internal.Option
			if dir := cmd.Args().First(); dir != "" {
				extra = append(extra, internal.WithDirectory(dir))
			}
			opts, err := c.options(cmd, extra...)
			if err != nil {
				return err
			}
			dryRun := cmd.Bool("dry-run")
			root, created, err := internal.Init(dryRun, opts...)
			if err != nil {
				return err
			}

			display := make([]string, len(created))
			for i, d := range created {
				display[i] = root.Display(d)
			}
			msg := "Initialized knowledge base at " + root.Dir
			switch {
			case dryRun:
				msg = "Dry run; nothing was created"
			case len(created) == 0:
				msg = "Knowledge base already initialized at " + root.Dir
			}
			if c.printer.JSON {
				return c.printer.Emit(ux.Success(msg).WithFile(root.Dir).WithData(display))
			}
			verb := "Created"
			if dryRun {
				verb = "Would create"
			}
			for _, d := range display {
				c.printer.Printf("%s %s\n", verb, d)
			}
			c.printer.Printf("%s\n", msg)
			return nil
		},
	}
}

func (c *commands) newCmd() *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Create a new document, prompting for anything not given as a flag",
		ArgsUsage: "<title>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Document type (" + strings.Join(models.KnownTypeNames(), ", ") + ")"},
			&cli.StringSliceFlag{Name: "tag", Aliases: []string{"g"}, Usage: "Tag to attach (repeatable)"},
			&cli.StringSliceFlag{Name: "relates-to", Aliases: []string{"r"}, Usage: "Link of a related document (repeatable)"},
			&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "Document body; prompted for when omitted"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Write to this .md path inside the .claude root instead"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			title := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if title == "" {
				return fmt.Errorf("title argument is required")
			}

			a, err := c.open(cmd, internal.WithCreate(true))
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Created {
				c.printer.Printf("No existing knowledge base detected; created layout at %s\n", a.Root.Dir)
			}

			in := docservice.NewDocument{
				Title:     title,
				Type:      cmd.String("type"),
				Tags:      cmd.StringSlice("tag"),
				RelatesTo: cmd.StringSlice("relates-to"),
				Body:      cmd.String("body"),
			}
			if err := c.fillInteractively(cmd, &in); err != nil {
				return err
			}

			if file := cmd.String("file"); file != "" {
				rel, err := insideRoot(a.Root.Dir, file)
				if err != nil {
					return err
				}
				in.Path = rel
			}

			d, err := a.Service.CreateDocument(ctx, in)
			if err != nil {
				return err
			}
			display := a.Root.DisplayRel(d.Path)
			if c.printer.JSON {
				return c.printer.Emit(ux.Success(d.FrontMatter.Type + " document created").
					WithFile(display).WithHash(d.Checksum).WithData(d.FrontMatter))
			}
			c.printer.Printf("Created %s\n", display)
			return nil
		},
	}
}

// fillInteractively prompts for the fields the flags left out.
func (c *commands) fillInteractively(cmd *cli.Command, in *docservice.NewDocument) error {
	needType := in.Type == ""
	needTags := !cmd.IsSet("tag")
	needRelations := !cmd.IsSet("relates-to")
	needBody := !cmd.IsSet("body")
	if !needType && !needTags && !needRelations && !needBody {
		return nil
	}

	out := c.printer.Out
	if c.printer.JSON {
		out = c.printer.Err
	}
	var p *prompt.Prompter
	if f, ok := c.stdin.(*os.File); ok && isTerminal(f) && liner.TerminalSupported() {
		term, closeTerm := prompt.NewTerminal(out)
		defer closeTerm()
		p = term
	} else {
		p = prompt.NewReader(c.stdin, out)
	}

	var err error
	if needType {
		if in.Type, err = p.Type(models.KnownTypeNames()); err != nil {
			return err
		}
	}
	if needTags {
		if in.Tags, err = p.Tags(); err != nil {
			return err
		}
	}
	if needRelations {
		if in.RelatesTo, err = p.Relations(); err != nil {
			return err
		}
	}
	if needBody {
		if in.Body, err = p.Body(); err != nil {
			return err
		}
	}
	return nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// insideRoot converts a user supplied path into a slash path relative to rootDir.
func insideRoot(rootDir, p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	rel, err := filepath.Rel(rootDir, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", fmt.Errorf("%w: %s is outside %s", apperr.ErrInvalidArgument, p, rootDir)
	}
	return filepath.ToSlash(rel), nil
}

func (c *commands) linkCmd() *cli.Command {
	return &cli.Command{
		Name:      "link",
		Usage:     "Relate two documents to each other in both directions",
		ArgsUsage: "<source> <target>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Rewrite both documents even when the relations already exist"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 2 {
				return fmt.Errorf("expected exactly two arguments: <source> <target>")
			}
			source, target := cmd.Args().Get(0), cmd.Args().Get(1)

			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.Service.Link(ctx, source, target, cmd.Bool("force"))
			if err != nil {
				return err
			}
			if !out.Changed {
				msg := fmt.Sprintf("Relations already existed between `%s` and `%s`; no changes made.", source, target)
				if c.printer.JSON {
					return c.printer.Emit(ux.Success(msg))
				}
				c.printer.Printf("%s\n", msg)
				return nil
			}
			src, tgt := a.Root.DisplayRel(out.Source.Path), a.Root.DisplayRel(out.Target.Path)
			if c.printer.JSON {
				return c.printer.Emit(ux.Success("documents linked").WithData([]string{src, tgt}))
			}
			c.printer.Printf("Linked %s <-> %s\n", src, tgt)
			return nil
		},
	}
}

func (c *commands) validateCmd() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check every document for structural problems",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "strict", Usage: "Treat warnings as failures"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Service.Validate(ctx)
			if err != nil {
				return err
			}
			strict := cmd.Bool("strict")
			if err := c.printer.Validation(report, strict); err != nil {
				return err
			}
			if report.Failed(strict) {
				return fmt.Errorf("%w: %d errors, %d warnings", apperr.ErrValidationFailed, report.Errors(), report.Warnings())
			}
			return nil
		},
	}
}

func (c *commands) manifestCmd() *cli.Command {
	return &cli.Command{
		Name:  "manifest",
		Usage: "Render a Markdown table of every document",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write the table here instead of .claude/manifest.md"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.String("output")
			if out != "" && !filepath.IsAbs(out) {
				if out, err = filepath.Abs(out); err != nil {
					return err
				}
			}
			written, err := a.Service.RenderTable(ctx, out)
			if err != nil {
				return err
			}
			if c.printer.JSON {
				return c.printer.Emit(ux.Success("manifest written").WithFile(written))
			}
			c.printer.Printf("Wrote manifest to %s\n", written)
			return nil
		},
	}
}

func (c *commands) syncCmd() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile manifest.json with the documents on disk",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Service.Sync(ctx)
			if err != nil {
				return err
			}
			return c.printer.Sync(report, cmd.Bool("verbose"))
		},
	}
}

func (c *commands) listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List documents, optionally of one type",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Only list documents of this type"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := a.Service.ListDocuments(ctx, cmd.String("type"))
			if err != nil {
				return err
			}
			items := make([]ux.Item, len(docs))
			for i, d := range docs {
				items[i] = ux.Item{Title: d.Title, Type: d.Type, Path: a.Root.DisplayRel(d.Path), Tags: d.Tags, Updated: d.UpdatedAt}
			}
			return c.printer.Items("Knowledge Base Entries", items, docs)
		},
	}
}

func (c *commands) searchCmd() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find documents containing every term",
		ArgsUsage: "<term>...",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Require this tag (repeatable)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum number of results", Value: index.DefaultSearchLimit},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			terms := cmd.Args().Slice()
			tags := cmd.StringSlice("tag")
			if len(terms) == 0 && len(tags) == 0 {
				return fmt.Errorf("at least one search term or --tag is required")
			}

			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.Service.Search(ctx, index.Query{Terms: terms, Tags: tags, Limit: cmd.Int("limit")})
			if err != nil {
				return err
			}
			items := make([]ux.Item, len(results))
			for i, r := range results {
				items[i] = ux.Item{Title: r.Title, Type: r.Type, Path: a.Root.DisplayRel(r.Path), Snippet: r.Snippet}
			}
			return c.printer.Items("Search Results", items, results)
		},
	}
}

func (c *commands) showCmd() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print a document and the documents that relate to it",
		ArgsUsage: "<link>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			link := cmd.Args().First()
			if link == "" {
				return fmt.Errorf("link argument is required")
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.Service.GetDocument(ctx, link)
			if err != nil {
				return err
			}
			if c.printer.JSON {
				return c.printer.WriteJSON(d)
			}
			c.printer.Printf("%s", d.Content)
			if len(d.Backlinks) > 0 {
				c.printer.Printf("\nBacklinks:\n")
				for _, b := range d.Backlinks {
					c.printer.Printf("  - %s\n", a.Root.DisplayRel(b))
				}
			}
			return nil
		},
	}
}

func (c *commands) deleteCmd() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a document by link",
		ArgsUsage: "<link>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			link := cmd.Args().First()
			if link == "" {
				return fmt.Errorf("link argument is required")
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Service.DeleteDocument(ctx, link)
			if err != nil {
				return err
			}
			return c.printer.Emit(ux.Success("document deleted").WithFile(a.Root.DisplayRel(p)))
		},
	}
}

func (c *commands) moveCmd() *cli.Command {
	return &cli.Command{
		Name:      "move",
		Usage:     "Move a document to another type",
		ArgsUsage: "<link> <type>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 2 {
				return fmt.Errorf("expected exactly two arguments: <link> <type>")
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.Service.MoveDocument(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
			if err != nil {
				return err
			}
			return c.printer.Emit(ux.Success("document moved to " + d.FrontMatter.Type).
				WithFile(a.Root.DisplayRel(d.Path)).WithHash(d.Checksum))
		},
	}
}

func (c *commands) hashCmd() *cli.Command {
	return &cli.Command{
		Name:      "hash",
		Usage:     "Print the SHA-256 content hash of a file",
		ArgsUsage: "<path>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p := cmd.Args().First()
			if p == "" {
				return fmt.Errorf("path argument is required")
			}
			sum, err := checksum.File(p)
			if err != nil {
				return err
			}
			if c.printer.JSON {
				return c.printer.Emit(ux.Success("hash computed").WithFile(p).WithHash(sum).
					WithData(map[string]string{"sha256": sum}))
			}
			c.printer.Printf("%s  %s\n", sum, p)
			c.printer.Printf("Short: %s\n", checksum.Short(sum))
			return nil
		},
	}
}

func (c *commands) watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Keep the manifest and search index in sync while files change",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			verbose := cmd.Bool("verbose")
			opts, err := c.options(cmd,
				internal.WithSyncHandler(func(r *manifest.Report) {
					if r.Unchanged() && !c.printer.JSON {
						return
					}
					_ = c.printer.Sync(r, verbose)
				}),
				internal.WithEventHandler(func(kind, path string) {
					if verbose {
						c.printer.Printf("  %s %s\n", kind, path)
					}
				}),
			)
			if err != nil {
				return err
			}
			c.printer.Printf("Watching for changes (Ctrl-C to stop)\n")
			return internal.Run(ctx, opts...)
		},
	}
}

func (c *commands) mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the knowledge base as MCP tools over stdin and stdout",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := c.options(cmd)
			if err != nil {
				return err
			}
			return internal.ServeMCP(ctx, opts...)
		},
	}
}
