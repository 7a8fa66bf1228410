package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const document = `{
  "name": "Software Development",
  "project_id": "project-1",
  "is_default": true,
  "is_active": true,
  "steps": [
    {"name": "Open", "status": "Open", "order": 1, "is_initial": true},
    {"name": "In Progress", "status": "InProgress", "order": 2},
    {"name": "Closed", "status": "Closed", "order": 3, "is_final": true}
  ],
  "transitions": [
    {"name": "Start Progress", "from": "Open", "to": "InProgress", "required_roles": ["Developer"]},
    {"name": "Close Issue", "from": "InProgress", "to": "Closed", "required_roles": ["Admin"]}
  ]
}`

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	err := app.Run(t.Context(), append([]string{"issueflow"}, args...))

	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "definition", "validate", writeFile(t, document))
	require.NoError(t, err)
	assert.Contains(t, out, "Software Development: valid (3 steps, 2 transitions)")
}

func TestValidateCommand_LintErrors(t *testing.T) {
	broken := `{"name": "w", "project_id": "p", "steps": [{"name": "Open", "status": "Open"}, {"name": "Done", "status": "Done"}]}`

	out, err := run(t, "definition", "validate", writeFile(t, broken))
	require.ErrorIs(t, err, ErrLintFailed)
	assert.Contains(t, out, "no_initial_step")
}

func TestValidateCommand_SchemaErrors(t *testing.T) {
	_, err := run(t, "definition", "validate", writeFile(t, `{"name": "w"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project_id")

	_, err = run(t, "definition", "validate")
	require.ErrorIs(t, err, ErrMissingArgument)
}

func TestImportExportLint(t *testing.T) {
	databaseURL := "file://" + t.TempDir()

	out, err := run(t, "definition", "import", "--database-url", databaseURL, writeFile(t, document))
	require.NoError(t, err)

	match := regexp.MustCompile(`imported workflow (\S+)`).FindStringSubmatch(out)
	require.Len(t, match, 2, out)

	id := match[1]

	out, err = run(t, "definition", "export", "--database-url", databaseURL, id)
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Start Progress"`)
	assert.Contains(t, out, `"from": "Open"`)

	out, err = run(t, "lint", "--database-url", databaseURL, id)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = run(t, "lint", "--database-url", databaseURL, "missing")
	require.Error(t, err)
}
