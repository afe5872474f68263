package fileutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/lepinkainen/shelf/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeSegment(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "Science Fiction", expected: "Science Fiction"},
		{name: "reserved characters", input: `a\b/c:d*e?f"g<h>i|j`, expected: "a_b_c_d_e_f_g_h_i_j"},
		{name: "blank", input: "   ", expected: UnknownSegment},
		{name: "dot dot", input: "..", expected: UnknownSegment},
		{name: "cyrillic", input: "Фантастика", expected: "Фантастика"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SafeSegment(tc.input))
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "Title - Subtitle-Part", SanitizeFilename("Title: Subtitle/Part"))
	assert.Equal(t, "What_", SanitizeFilename("What?"))
	assert.Equal(t, filepath.Join("notes", "Dune - Part One.md"), GetMarkdownFilePath("Dune: Part One", "notes"))
}

func TestFileExists(t *testing.T) {
	env := testutil.NewTestEnv(t)
	file := env.WriteFileString("a.txt", "x")

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(env.Path("missing.txt")))
	assert.False(t, FileExists(env.RootDir()))
}

func TestWriteFileWithOverwrite(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.Path("nested", "out.txt")

	written, err := WriteFileWithOverwrite(path, []byte("one"), 0o644, false)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = WriteFileWithOverwrite(path, []byte("two"), 0o644, false)
	require.NoError(t, err)
	assert.False(t, written)
	assert.Equal(t, "one", string(env.ReadFile("nested/out.txt")))

	written, err = WriteFileWithOverwrite(path, []byte("three"), 0o644, true)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, "three", string(env.ReadFile("nested/out.txt")))
}

func TestWriteJSONFile(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.Path("json", "books.json")

	written, err := WriteJSONFile([]map[string]string{{"title": "Dune"}}, path, true)
	require.NoError(t, err)
	assert.True(t, written)

	var got []map[string]string
	require.NoError(t, json.Unmarshal(env.ReadFile("json/books.json"), &got))
	assert.Equal(t, "Dune", got[0]["title"])

	written, err = WriteJSONFile([]string{"ignored"}, path, false)
	require.NoError(t, err)
	assert.False(t, written)

	_, err = WriteJSONFile(make(chan int), env.Path("bad.json"), true)
	assert.Error(t, err)
}

func TestCopyFile(t *testing.T) {
	env := testutil.NewTestEnv(t)
	src := env.WriteFileString("src/book.epub", "contents")
	require.NoError(t, os.Chmod(src, 0o600))
	dst := env.Path("dst", "deep", "book.epub")

	require.NoError(t, CopyFile(src, dst))
	assert.Equal(t, "contents", string(env.ReadFile("dst/deep/book.epub")))
	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	env.WriteFileString("src/book.epub", "updated")
	require.NoError(t, CopyFile(src, dst))
	assert.Equal(t, "updated", string(env.ReadFile("dst/deep/book.epub")))
	assert.Equal(t, []string{"book.epub"}, env.Files("dst/deep"), "no temp files left behind")

	assert.Error(t, CopyFile(env.Path("missing"), dst))
	assert.Error(t, CopyFile(env.Path("src"), dst))
}
