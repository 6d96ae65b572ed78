// Package hash provides the content hashes that key embeddings: xxh3-64
// rendered as 16 lowercase hex digits. Identical chunk content across
// branches shares a single embedding through these hashes.
package hash

import (
	"fmt"
	"os"

	"github.com/zeebo/xxh3"
)

// Content hashes a string's UTF-8 bytes.
func Content(content string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(content))
}

// Bytes hashes a byte slice.
func Bytes(b []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(b))
}

// File hashes a file's contents.
func File(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Bytes(content), nil
}
