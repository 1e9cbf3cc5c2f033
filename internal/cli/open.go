package cli

import (
	"fmt"
	"os"

	"github.com/roach88/flipbook/internal/animator"
	"github.com/roach88/flipbook/internal/storage/sqlitestore"
)

// openAnimation opens the animation file named by the global options. The
// file must already exist: inspection commands never create one.
func openAnimation(opts *RootOptions) (*animator.Animation, error) {
	if _, err := os.Stat(opts.File); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("animation file not found: %s", opts.File))
	}
	backend, err := sqlitestore.Open(opts.File)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open animation file", err)
	}
	return animator.New(backend), nil
}
