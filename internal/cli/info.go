package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// InfoData is the JSON form of the info command output.
type InfoData struct {
	File        string  `json:"file"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	FrameLength string  `json:"frame_length"`
	Duration    string  `json:"duration"`
	Layers      int     `json:"layers"`
	LogLength   int64   `json:"log_length"`
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the animation's properties",
		Long: `Show the animation's frame size, frame length, duration, layer count
and the length of its edit log.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(rootOpts, cmd)
		},
	}
}

func runInfo(opts *RootOptions, cmd *cobra.Command) error {
	anim, err := openAnimation(opts)
	if err != nil {
		return err
	}
	defer anim.Close()

	ctx := cmd.Context()
	width, height, err := anim.Size(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "read animation properties", err)
	}
	frameLength, err := anim.FrameLength(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "read frame length", err)
	}
	duration, err := anim.Duration(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "read duration", err)
	}
	layers, err := anim.LayerIDs(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "read layers", err)
	}
	length, err := anim.LogLength(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "read edit log length", err)
	}

	data := InfoData{
		File:        opts.File,
		Width:       width,
		Height:      height,
		FrameLength: frameLength.String(),
		Duration:    duration.String(),
		Layers:      len(layers),
		LogLength:   length,
	}

	f := &Formatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if handled, err := f.JSON(data); handled {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "file:         %s\n", data.File)
	fmt.Fprintf(out, "size:         %gx%g\n", data.Width, data.Height)
	fmt.Fprintf(out, "frame length: %s (%g fps)\n", frameLength, float64(time.Second)/float64(frameLength))
	fmt.Fprintf(out, "duration:     %s\n", duration)
	fmt.Fprintf(out, "layers:       %d\n", data.Layers)
	fmt.Fprintf(out, "edit log:     %d entries\n", data.LogLength)
	return nil
}
