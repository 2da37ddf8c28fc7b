package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/sightline/internal/auth"
	"github.com/thruflo/sightline/internal/config"
	"github.com/thruflo/sightline/internal/testutil"
)

func scriptedPrompter(out *bytes.Buffer, entries ...string) auth.Prompter {
	return auth.Prompter{
		Out: out,
		Read: func() ([]byte, error) {
			if len(entries) == 0 {
				return nil, errors.New("no input")
			}
			next := entries[0]
			entries = entries[1:]
			return []byte(next), nil
		},
	}
}

func TestEnsureServerPassword(t *testing.T) {
	t.Parallel()

	base := testutil.SetupTestDir(t, "")
	cfg, err := config.LoadConfig(base)
	require.NoError(t, err)
	require.Empty(t, cfg.Server.PasswordHash)

	var out bytes.Buffer
	require.NoError(t, ensureServerPassword(base, cfg, false, scriptedPrompter(&out, "hunter2", "hunter2"), &out))
	assert.Contains(t, out.String(), "Password saved to config.")

	saved, err := config.LoadConfig(base)
	require.NoError(t, err)
	ok, err := auth.VerifyPassword("hunter2", saved.Server.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, saved.Metrics.Enabled, "existing settings are preserved")

	// Already configured: no prompt.
	out.Reset()
	require.NoError(t, ensureServerPassword(base, saved, false, scriptedPrompter(&out), &out))
	assert.Empty(t, out.String())

	// Reset with mismatched confirmation leaves the hash alone.
	err = ensureServerPassword(base, saved, true, scriptedPrompter(&out, "a", "b"), &out)
	assert.ErrorIs(t, err, auth.ErrPasswordMismatch)
	reloaded, err := config.LoadConfig(base)
	require.NoError(t, err)
	assert.Equal(t, saved.Server.PasswordHash, reloaded.Server.PasswordHash)
}

func TestServeCommand_Flags(t *testing.T) {
	portFlag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, portFlag)
	assert.Equal(t, "p", portFlag.Shorthand)
	assert.NotNil(t, serveCmd.Flags().Lookup("password"))
}
