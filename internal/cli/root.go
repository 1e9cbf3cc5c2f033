// Package cli implements the flipbook command line tool: inspection and
// verification of animation files, and a runner for conformance scenarios.
package cli

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

// Config holds settings read from the environment. Flags override it.
type Config struct {
	// Database is the animation file operated on when --file is not given.
	Database string `env:"FLIPBOOK_FILE" envDefault:"animation.flip"`
}

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	File    string
	Verbose bool
	Format  string // "text" | "json"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the flipbook CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "flipbook",
		Short: "Inspect and verify flipbook animation files",
		Long: `flipbook operates on animation files: append-only edit logs with the
layers, keyframes and vector elements they produce.

The animation file is chosen by --file, or by FLIPBOOK_FILE when the flag
is not given.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.File == "" {
				var cfg Config
				if err := env.Parse(&cfg); err != nil {
					return fmt.Errorf("parse environment: %w", err)
				}
				opts.File = cfg.Database
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.File, "file", "", "animation file (defaults to $FLIPBOOK_FILE)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewLayersCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
