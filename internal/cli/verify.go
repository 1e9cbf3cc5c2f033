package cli

import (
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"

	"github.com/roach88/flipbook/internal/storage"
)

// VerifyData is the JSON form of the verify command output.
type VerifyData struct {
	Entries  int64 `json:"entries"`
	Layers   int   `json:"layers"`
	Frames   int   `json:"frames"`
	Elements int   `json:"elements"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the animation file is fully readable",
		Long: `Read back the entire edit log and every keyframe of every layer.

A mangled auxiliary record is tolerated (the reader substitutes safe
defaults), but an unrecognized edit log entry is a protocol violation and
fails verification.

Exit codes:
  0 - animation is readable
  1 - verification failed
  2 - command error (missing file)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd)
		},
	}
}

func runVerify(opts *RootOptions, cmd *cobra.Command) error {
	anim, err := openAnimation(opts)
	if err != nil {
		return err
	}
	defer anim.Close()

	ctx := cmd.Context()
	f := &Formatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	length, err := anim.LogLength(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "read edit log length", err)
	}

	stream := anim.ReadEditLog(0, length)
	defer stream.Close()
	for {
		_, ok, err := stream.Next(ctx)
		if err != nil {
			f.Errorf("edit log is not replayable: %v", err)
			return WrapExitError(ExitFailure, "verify edit log", err)
		}
		if !ok {
			break
		}
	}
	f.VerboseLog("edit log: %d entries read back", length)

	layers, err := anim.Layers(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "read layers", err)
	}

	frames := 0
	elements := mapset.NewSet[int64]()
	for _, layer := range layers {
		for _, at := range layer.KeyFrames {
			// Census at the end of the frame's span, so elements appearing
			// anywhere within the frame are counted.
			frame, err := anim.GetFrameAtTime(ctx, layer.ID, frameSpanEnd(layer.KeyFrames, at))
			if err != nil {
				f.Errorf("layer %d keyframe %s is unreadable: %v", layer.ID, at, err)
				return WrapExitError(ExitFailure, "verify keyframes", err)
			}
			frames++
			for _, el := range frame.Elements {
				if id, ok := el.ID.Value(); ok {
					elements.Add(id)
				}
			}
		}
		f.VerboseLog("layer %d: %d keyframes read back", layer.ID, len(layer.KeyFrames))
	}

	data := VerifyData{Entries: length, Layers: len(layers), Frames: frames, Elements: elements.Cardinality()}
	if handled, err := f.JSON(data); handled {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok: %d log entries, %d layers, %d keyframes, %d elements\n",
		data.Entries, data.Layers, data.Frames, data.Elements)
	return nil
}

// frameSpanEnd returns the last instant covered by the keyframe starting at
// the given time: just before the next keyframe, or the open end of the
// timeline when no later keyframe exists.
func frameSpanEnd(frames []time.Duration, at time.Duration) time.Duration {
	end := storage.MaxDuration
	for _, f := range frames {
		if f > at && f-time.Nanosecond < end {
			end = f - time.Nanosecond
		}
	}
	return end
}
