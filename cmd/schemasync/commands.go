package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tordrt/schemasync"
	"github.com/tordrt/schemasync/internal/document"
	"github.com/tordrt/schemasync/internal/schema"
)

func newDumpCommand(root *rootOptions) *cobra.Command {
	var format, outputFile, outputDir string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the loaded structure as text or markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir != "" && outputFile != "" {
				return fmt.Errorf("cannot use both --output-dir and --output flags")
			}
			if format != "text" && format != "markdown" {
				return fmt.Errorf("invalid format: %s (must be 'text' or 'markdown')", format)
			}

			return root.withManager(cmd, nil, func(_ context.Context, m *schema.Manager) error {
				if outputDir != "" {
					return schemasync.Dump(m, &schemasync.OutputOptions{OutputDir: outputDir, Format: format})
				}
				return writeOutput(cmd, outputFile, func(w io.Writer) error {
					return schemasync.Dump(m, &schemasync.OutputOptions{Writer: w, Format: format})
				})
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or markdown")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Output directory for multi-file output")
	return cmd
}

func newExportCommand(root *rootOptions) *cobra.Command {
	var formatName, outputFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the live structure as a JSON or YAML document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := documentFormat(formatName, outputFile)
			if err != nil {
				return err
			}

			return root.withManager(cmd, nil, func(_ context.Context, m *schema.Manager) error {
				return writeOutput(cmd, outputFile, func(w io.Writer) error {
					return schemasync.ExportDocument(m, w, format)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", "", "Document format: json or yaml (default: from the output file name, else json)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newApplyCommand(root *rootOptions) *cobra.Command {
	var formatName string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "apply <document>",
		Short: "Create the schemas described by a JSON or YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			format, err := documentFormat(formatName, path)
			if err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open document: %w", err)
			}
			defer func() { _ = f.Close() }()

			return root.withManager(cmd, dryRunWriter(cmd, dryRun), func(ctx context.Context, m *schema.Manager) error {
				if err := schemasync.ApplyDocument(ctx, m, f, format); err != nil {
					return err
				}
				if !dryRun {
					fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", path)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", "", "Document format: json or yaml (default: from the file name)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the statements instead of executing them")
	return cmd
}

func newDropTableCommand(root *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "drop-table <schema> <table>",
		Short: "Drop a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withManager(cmd, dryRunWriter(cmd, dryRun), func(ctx context.Context, m *schema.Manager) error {
				if err := schemasync.DropTable(ctx, m, args[0], args[1]); err != nil {
					return err
				}
				if !dryRun {
					fmt.Fprintf(cmd.OutOrStdout(), "dropped %s.%s\n", args[0], args[1])
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the statements instead of executing them")
	return cmd
}

func newVersionCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the database engine and its version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withManager(cmd, nil, func(ctx context.Context, m *schema.Manager) error {
				v, err := m.EngineVersion(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", m.Driver().Name(), v)
				return nil
			})
		},
	}
}

func dryRunWriter(cmd *cobra.Command, dryRun bool) io.Writer {
	if dryRun {
		return cmd.OutOrStdout()
	}
	return nil
}

// documentFormat picks the explicit format, or guesses it from path.
func documentFormat(name, path string) (document.Format, error) {
	if name != "" {
		return document.ParseFormat(name)
	}
	if path == "" {
		return document.FormatJSON, nil
	}
	return document.FormatForPath(path), nil
}

// writeOutput runs fn against the named file, or stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(cmd.OutOrStdout())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to close output file: %v\n", err)
		}
	}()

	if err := fn(f); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}
