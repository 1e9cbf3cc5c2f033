package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitError_Codes(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "nope")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := WrapExitError(ExitFailure, "verify", errors.New("boom"))
	assert.Equal(t, "verify: boom", wrapped.Error())
	assert.Equal(t, "boom", errors.Unwrap(wrapped).Error())
}

func TestFormatter_JSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Format: "json", Writer: &buf}
	handled, err := f.JSON(map[string]int{"layers": 2})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.JSONEq(t, `{"status":"ok","data":{"layers":2}}`, buf.String())
}

func TestFormatter_TextFallsThrough(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Format: "text", Writer: &buf}
	handled, err := f.JSON("ignored")
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, buf.String())
}

func TestFormatter_VerboseGoesToErrWriter(t *testing.T) {
	var out, errOut bytes.Buffer
	f := &Formatter{Format: "json", Writer: &out, ErrWriter: &errOut, Verbose: true}
	f.VerboseLog("read %d entries", 6)
	assert.Empty(t, out.String())
	assert.Equal(t, "read 6 entries\n", errOut.String())

	f.Verbose = false
	f.VerboseLog("silent")
	assert.Equal(t, "read 6 entries\n", errOut.String())
}
