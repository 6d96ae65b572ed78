package hash

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)

func TestContentDeterminism(t *testing.T) {
	hash1 := Content("hello world")
	hash2 := Content("hello world")
	hash3 := Content("different content")

	assert.Equal(t, hash1, hash2)
	assert.NotEqual(t, hash1, hash3)
	assert.Len(t, hash1, 16)
}

func TestContentFormat(t *testing.T) {
	inputs := []string{"", "a", "hello world", "func main() {}", "\x00\xff"}
	for _, input := range inputs {
		h := Content(input)
		assert.True(t, hexPattern.MatchString(h), "hash %q for input %q", h, input)
	}
}

func TestBytesMatchesContent(t *testing.T) {
	assert.Equal(t, Content("some text"), Bytes([]byte("some text")))
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("file content"), 0o644))

	fromFile, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, Content("file content"), fromFile)
}

func TestFileMissing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
