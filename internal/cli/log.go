package cli

import (
	"fmt"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"

	"github.com/roach88/flipbook/internal/encode"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	From  int64
	Until int64
}

// LogEntry is the JSON form of one edit log entry.
type LogEntry struct {
	Index   int64  `json:"index"`
	Encoded string `json:"encoded"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the edit log",
		Long: `Print the animation's edit log, one encoded edit per line, oldest first.

With --verbose each entry is followed by a structured dump of the decoded
edit.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.From, "from", 0, "first entry to print")
	cmd.Flags().Int64Var(&opts.Until, "until", -1, "entry to stop before (-1 for the end of the log)")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	anim, err := openAnimation(opts.RootOptions)
	if err != nil {
		return err
	}
	defer anim.Close()

	ctx := cmd.Context()
	until := opts.Until
	if until < 0 {
		until, err = anim.LogLength(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "read edit log length", err)
		}
	}

	stream := anim.ReadEditLog(opts.From, until)
	defer stream.Close()

	var entries []LogEntry
	index := opts.From
	out := cmd.OutOrStdout()
	for {
		e, ok, err := stream.Next(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "read edit log", err)
		}
		if !ok {
			break
		}
		encoded := encode.Edit(e)
		if opts.Format == "json" {
			entries = append(entries, LogEntry{Index: index, Encoded: encoded})
		} else {
			fmt.Fprintf(out, "%6d  %s\n", index, encoded)
			if opts.Verbose {
				fmt.Fprintln(out, litter.Sdump(e))
			}
		}
		index++
	}

	if opts.Format == "json" {
		f := &Formatter{Format: opts.Format, Writer: out}
		_, err := f.JSON(entries)
		return err
	}
	return nil
}
