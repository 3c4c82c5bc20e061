package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/pdf-field-extractor/internal/pdf/pdftest"
)

func writeDoc(t *testing.T) string {
	t.Helper()
	return pdftest.Write(t, t.TempDir(), "certs.pdf",
		"HEAT NO: H1\nPLATE NO: P1\nCOLOUR: RED",
		"HEAT NO: H2\nGRADE: S355",
	)
}

func TestRun_Formats(t *testing.T) {
	path := writeDoc(t)

	t.Run("text", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"--ocr=false", path}, &stdout, &stderr)
		require.Equal(t, 0, code, stderr.String())
		assert.Contains(t, stdout.String(), "(2 pages)")
		assert.Contains(t, stdout.String(), "Found 4 field labels")
		assert.Contains(t, stdout.String(), "  HEAT NO\n")
		assert.Contains(t, stdout.String(), "COLOUR (not in vocabulary")
	})

	t.Run("json", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"--ocr=false", "--format", "json", path}, &stdout, &stderr)
		require.Equal(t, 0, code, stderr.String())

		var d detection
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &d))
		assert.Equal(t, []string{"COLOUR", "GRADE", "HEAT NO", "PLATE NO"}, d.Fields)
		assert.Equal(t, []string{"COLOUR", "GRADE"}, d.Discovered)
		assert.Equal(t, path, d.FilePath)
	})

	t.Run("yaml with custom vocabulary", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(),
			[]string{"--ocr=false", "--format", "yaml", "--fields", "HEAT NO,GRADE", path}, &stdout, &stderr)
		require.Equal(t, 0, code, stderr.String())

		var d detection
		require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &d))
		assert.Equal(t, []string{"GRADE", "HEAT NO"}, d.Queryable)
		assert.Equal(t, []string{"COLOUR", "PLATE NO"}, d.Discovered)
	})
}

func TestRun_Errors(t *testing.T) {
	path := writeDoc(t)

	tests := []struct {
		name   string
		args   []string
		code   int
		stderr string
	}{
		{name: "help", args: []string{"--help"}, code: 0, stderr: "USAGE:"},
		{name: "no file", args: []string{}, code: 1, stderr: "exactly one PDF"},
		{name: "bad format", args: []string{"--format", "xml", path}, code: 1, stderr: "unsupported output format"},
		{name: "missing file", args: []string{"--ocr=false", path + ".missing"}, code: 1, stderr: "Error detecting fields"},
		{name: "bad flag", args: []string{"--nope"}, code: 1, stderr: "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.code, run(context.Background(), tt.args, &stdout, &stderr))
			assert.Contains(t, stderr.String(), tt.stderr)
		})
	}
}
