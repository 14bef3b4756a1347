package cmd

import (
	"bytes"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_CONNECTION", filepath.Join(t.TempDir(), "cli.db")+"?_pragma=foreign_keys(1)")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_BUCKET", "feedback")
	t.Setenv("S3_ACCESS_KEY", "test")
	t.Setenv("S3_SECRET_KEY", "test")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := &cobra.Command{Use: "do", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(MigrateCmd(), OrgCmd(), ProjectCmd())

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func capture(t *testing.T, out, pattern string) string {
	t.Helper()
	m := regexp.MustCompile(pattern).FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	return m[1]
}

func TestProjectLifecycle(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version: 2")

	out, err = run(t, "org", "create", "--name", "Acme")
	require.NoError(t, err)
	orgID := capture(t, out, `organization: (\S+)`)

	out, err = run(t, "project", "create", "--org", orgID, "--name", "Widget", "--origins", "https://App.example.com/,*.example.com")
	require.NoError(t, err)
	projectID := capture(t, out, `project: (\S+)`)
	firstKey := capture(t, out, `api key: (fbk_[0-9a-f]{32})`)
	assert.Contains(t, out, "app.example.com *.example.com")

	out, err = run(t, "project", "rotate-key", projectID)
	require.NoError(t, err)
	secondKey := capture(t, out, `api key: (fbk_[0-9a-f]{32})`)
	assert.NotEqual(t, firstKey, secondKey)

	out, err = run(t, "project", "deactivate", projectID)
	require.NoError(t, err)
	assert.Contains(t, out, "deactivated")

	out, err = run(t, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version: 2")
}

func TestProjectCreate_UnknownOrg(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "migrate", "up")
	require.NoError(t, err)

	_, err = run(t, "project", "create", "--org", "missing", "--name", "Widget")
	assert.Error(t, err)
}

func TestProjectCreate_RequiresFlags(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "project", "create", "--name", "Widget")
	assert.Error(t, err)
}

func TestMigrateDown(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "migrate", "up")
	require.NoError(t, err)

	out, err := run(t, "migrate", "down")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version: 1")
}
