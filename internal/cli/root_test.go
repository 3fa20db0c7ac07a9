package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := newRootCmd("test")
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"chat", "serve", "login", "logout", "version"} {
		require.Contains(t, names, want)
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd("1.2.3")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "hivedesk 1.2.3")
}

func TestStoredTokenRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	require.Empty(t, readStoredToken())

	path, err := writeStoredToken("abc123")
	require.NoError(t, err)
	require.Equal(t, filepath.Base(path), "token")
	require.Equal(t, "abc123", readStoredToken())
}
