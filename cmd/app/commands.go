package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/resolate/internal"
	"github.com/starford/resolate/internal/converter"
	"github.com/starford/resolate/internal/mcpserver"
	"github.com/starford/resolate/internal/template"
	pkgconfig "github.com/starford/resolate/pkg/config"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "format",
		Usage: "Output format: json or yaml",
		Value: formatJSON,
	}
}

func termFlag() cli.Flag {
	return &cli.IntFlag{
		Name:     "term",
		Aliases:  []string{"t"},
		Usage:    "Document type (term) id",
		Required: true,
	}
}

// loadConfig reads the config file when present. One-shot commands log to
// stderr so stdout carries only their output.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// withComponents opens the configured stores for the duration of fn.
func withComponents(cmd *cli.Command, fn func(*internal.Components) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel)
	comps, err := internal.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()
	return fn(comps)
}

func termID(cmd *cli.Command) (int64, error) {
	id := int64(cmd.Int("term"))
	if id < 1 {
		return 0, fmt.Errorf("--term must be a positive id")
	}
	return id, nil
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Print the schema of a template without storing it",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "legacy", Usage: "Print the legacy field list instead of the schema"},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("extract: template file is required")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ex := template.New(template.Config{
				MaxFileSize: cfg.Templates.MaxFileSize,
				Logger:      internal.NewLogger(os.Stderr, cfg.App.LogLevel),
			})
			schema, err := ex.Extract(ctx, path)
			if err != nil {
				return err
			}
			if cmd.Bool("legacy") {
				return write(os.Stdout, cmd.String("format"), converter.ToLegacy(schema))
			}
			return write(os.Stdout, cmd.String("format"), schema)
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Bind a template to a document type and store its schema",
		ArgsUsage: "<file inside templates.path>",
		Flags:     []cli.Flag{termFlag(), formatFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := termID(cmd)
			if err != nil {
				return err
			}
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("import: template file is required")
			}
			return withComponents(cmd, func(c *internal.Components) error {
				res, err := c.DocTypes.SetTemplate(ctx, id, path)
				if err != nil {
					return err
				}
				return write(os.Stdout, cmd.String("format"), res)
			})
		},
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the stored schema of a document type",
		Flags: []cli.Flag{
			termFlag(),
			&cli.BoolFlag{Name: "summary", Usage: "Print the summary only"},
			&cli.BoolFlag{Name: "legacy", Usage: "Print the legacy field list"},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := termID(cmd)
			if err != nil {
				return err
			}
			if cmd.Bool("summary") && cmd.Bool("legacy") {
				return fmt.Errorf("schema: --summary and --legacy are exclusive")
			}
			return withComponents(cmd, func(c *internal.Components) error {
				var (
					out any
					err error
				)
				switch {
				case cmd.Bool("summary"):
					out, err = c.DocTypes.Summary(ctx, id)
				case cmd.Bool("legacy"):
					out, err = c.DocTypes.LegacyFields(ctx, id)
				default:
					out, err = c.DocTypes.Schema(ctx, id)
				}
				if err != nil {
					return err
				}
				return write(os.Stdout, cmd.String("format"), out)
			})
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Remove the stored schema and template binding of a document type",
		Flags: []cli.Flag{termFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := termID(cmd)
			if err != nil {
				return err
			}
			return withComponents(cmd, func(c *internal.Components) error {
				if err := c.DocTypes.Remove(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "deleted: %d\n", id)
				return nil
			})
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Re-extract every bound template whose content changed",
		Flags: []cli.Flag{formatFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withComponents(cmd, func(c *internal.Components) error {
				results, err := c.DocTypes.Sync(ctx)
				if err != nil {
					return err
				}
				return write(os.Stdout, cmd.String("format"), results)
			})
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the MCP tools over stdio",
		Action: func(_ context.Context, cmd *cli.Command) error {
			return withComponents(cmd, func(c *internal.Components) error {
				return mcpserver.New(c.DocTypes, version).ServeStdio()
			})
		},
	}
}
