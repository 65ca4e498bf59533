package trace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTraceFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test_proc0.trace")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestFileReaderParsesDecimalAndHex(t *testing.T) {
	path := writeTraceFile(t, "R 0\nW 0x20\nr 64\nw 0X40\n")
	r, err := Open(path, nil)
	require.NoError(t, err)
	defer r.Close()

	want := []Reference{
		{Op: Read, Addr: 0},
		{Op: Write, Addr: 0x20},
		{Op: Read, Addr: 64},
		{Op: Write, Addr: 0x40},
	}
	for i, w := range want {
		got, ok := r.Next()
		require.True(t, ok, "reference %d", i)
		assert.Equal(t, w, got, "reference %d", i)
	}
	_, ok := r.Next()
	assert.False(t, ok, "Next() after last line should report ok=false")
}

func TestFileReaderSkipsBlankCommentAndMalformedLines(t *testing.T) {
	path := writeTraceFile(t, "# a comment\n\nR 8\nbogus line\nX 16\nW 24\n")
	r, err := Open(path, nil)
	require.NoError(t, err)
	defer r.Close()

	var got []Reference
	for {
		ref, ok := r.Next()
		if !ok {
			break
		}
		got = append(got, ref)
	}
	assert.Equal(t, []Reference{{Op: Read, Addr: 8}, {Op: Write, Addr: 24}}, got)
}

func TestOpenMissingFileIsAnError(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.trace"), nil)
	assert.Error(t, err)
}
