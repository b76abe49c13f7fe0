package analyzer

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirm_AutoConfirmBypassesPrompt(t *testing.T) {
	var out bytes.Buffer
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	ok, err := Confirm(r, &out, "Proceed?", true)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "auto-confirmed")
}

func TestConfirm_NonTerminalDeclinesByDefault(t *testing.T) {
	var out bytes.Buffer
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	ok, err := Confirm(r, &out, "Proceed?", false)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "no terminal attached")
}

func TestIsYes(t *testing.T) {
	assert.True(t, isYes("y"))
	assert.True(t, isYes("Yes"))
	assert.True(t, isYes("  yes  "))
	assert.False(t, isYes("n"))
	assert.False(t, isYes(""))
}
