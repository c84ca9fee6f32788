package skillparser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"toolhub.dev/hub"
)

const sample = `---
name: pdf-extract
description: Extract structured text from PDF documents.
license: MIT
compatibility: requires python3
metadata:
  author: data-team
  stability: beta
allowed-tools: [fs/read, http/fetch]
---

# Instructions

Do the extraction.
`

func TestParseSample(t *testing.T) {
	fm, body, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Equal(t, "pdf-extract", fm.Name)
	require.Equal(t, "Extract structured text from PDF documents.", fm.Description)
	require.Equal(t, "MIT", fm.License)
	require.Equal(t, "data-team", fm.Metadata["author"])
	require.Equal(t, []string{"fs/read", "http/fetch"}, fm.AllowedTools)
	require.Contains(t, body, "Do the extraction.")
}

func TestParseBlockLiteralDescription(t *testing.T) {
	doc := "---\nname: multi-line-skill\ndescription: |\n  line one\n  line two\n---\nbody\n"
	fm, _, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, "line one\nline two", fm.Description)
}

func TestValidateRejectsBadNames(t *testing.T) {
	cases := []string{"-bad", "bad-", "Bad-Name", "bad--name", "claude-helper"}
	for _, name := range cases {
		err := Validate(toolhub.SkillFrontmatter{Name: name, Description: "x"})
		require.Error(t, err, name)
	}
}

func TestMissingDelimiterErrors(t *testing.T) {
	_, _, err := Parse([]byte("no frontmatter here"))
	require.Error(t, err)
}

func TestScanResourcesExcludesDotfilesAndManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "SKILL.md")
	require.NoError(t, os.WriteFile(manifest, []byte(sample), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.py"), []byte("print(1)"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.py"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "x.js"), []byte("x"), 0o644))

	resources, err := ScanResources(dir, manifest)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	require.Equal(t, "helper.py", resources[0].RelativePath)
}
