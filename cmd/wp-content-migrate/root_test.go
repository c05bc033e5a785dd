package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exileum/wp-content-migrate/internal/testutil"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

func TestRootCommand_NonInteractive(t *testing.T) {
	source := testutil.NewFakeSite("", "")
	defer source.Close()
	dest := testutil.NewFakeSite("admin", "secret")
	defer dest.Close()
	source.AddPost(testutil.FakePost{Slug: "hello", Title: "Hello"})

	t.Setenv("WP_SOURCE_URL", source.URL(""))
	t.Setenv("WP_DESTINATION_URL", dest.URL(""))
	t.Setenv("WP_USERNAME", "admin")
	t.Setenv("WP_APP_PASSWORD", "secret")
	t.Setenv("WP_REQUEST_DELAY", "0s")

	var out, errOut bytes.Buffer
	cmd := newRootCommand(strings.NewReader(""), &out, &errOut)
	cmd.SetArgs([]string{"--non-interactive", "--log-level", "warn"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Len(t, dest.CreatedPosts(), 1)
	assert.Contains(t, out.String(), "Migration Summary")
}

func TestRootCommand_AuthenticationFailure(t *testing.T) {
	source := testutil.NewFakeSite("", "")
	defer source.Close()
	dest := testutil.NewFakeSite("admin", "secret")
	defer dest.Close()

	t.Setenv("WP_SOURCE_URL", source.URL(""))
	t.Setenv("WP_DESTINATION_URL", dest.URL(""))
	t.Setenv("WP_USERNAME", "admin")
	t.Setenv("WP_APP_PASSWORD", "wrong")
	t.Setenv("WP_REQUEST_DELAY", "0s")

	var out, errOut bytes.Buffer
	cmd := newRootCommand(strings.NewReader(""), &out, &errOut)
	cmd.SetArgs([]string{"--non-interactive"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, errOut.String(), "authentication failed")
	assert.Empty(t, dest.CreatedPosts())
}

func TestRootCommand_RejectsArguments(t *testing.T) {
	cmd := newRootCommand(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}
