package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// LayerData is the JSON form of one layer in the layers command output.
type LayerData struct {
	ID        uint64   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Ordering  uint64   `json:"ordering"`
	KeyFrames []string `json:"keyframes"`
}

// NewLayersCommand creates the layers command.
func NewLayersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "layers",
		Short:         "List the animation's layers",
		Long:          "List every layer with its name, ordering and keyframe times.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayers(rootOpts, cmd)
		},
	}
}

func runLayers(opts *RootOptions, cmd *cobra.Command) error {
	anim, err := openAnimation(opts)
	if err != nil {
		return err
	}
	defer anim.Close()

	layers, err := anim.Layers(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "read layers", err)
	}

	data := make([]LayerData, len(layers))
	for i, l := range layers {
		frames := make([]string, len(l.KeyFrames))
		for j, at := range l.KeyFrames {
			frames[j] = at.String()
		}
		data[i] = LayerData{ID: l.ID, Name: l.Name, Ordering: l.Ordering, KeyFrames: frames}
	}

	f := &Formatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if handled, err := f.JSON(data); handled {
		return err
	}
	out := cmd.OutOrStdout()
	if len(data) == 0 {
		fmt.Fprintln(out, "no layers")
		return nil
	}
	for _, l := range data {
		name := l.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(out, "layer %d  %s  ordering=%d  keyframes=%d\n", l.ID, name, l.Ordering, len(l.KeyFrames))
		if opts.Verbose {
			for _, at := range l.KeyFrames {
				fmt.Fprintf(out, "    keyframe at %s\n", at)
			}
		}
	}
	return nil
}
