package hashing

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestSumBytes_KnownVectors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"empty", []byte{}, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", []byte("abc"), "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SumBytes(tc.in))
		})
	}
}

func TestSumString_MatchesSumBytes(t *testing.T) {
	s := "hello rolling world"
	assert.Equal(t, SumBytes([]byte(s)), SumString(s))
}

func TestSumBytes_FormatAndDeterminism(t *testing.T) {
	buf := make([]byte, 1024)
	_, err := rand.Read(buf)
	require.NoError(t, err)

	d1 := SumBytes(buf)
	d2 := SumBytes(buf)
	assert.Equal(t, d1, d2)
	assert.Regexp(t, hexRe, d1)
}

func TestSumFile_MatchesInMemoryDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")

	// Larger than the read buffer so the incremental path is exercised.
	data := bytes.Repeat([]byte("0123456789abcdef"), 4096) // 64 KiB
	require.NoError(t, os.WriteFile(path, data, 0o600))

	assert.Equal(t, SumBytes(data), SumFile(path))
}

func TestSumFile_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	assert.Equal(t, SumBytes(nil), SumFile(path))
}

func TestSumFile_MissingFileReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", SumFile(filepath.Join(t.TempDir(), "nope")))
}

func TestIsValidDigest(t *testing.T) {
	valid := SumString("x")
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"real digest", valid, true},
		{"uppercase rejected", "AB" + valid[2:], false},
		{"too short", valid[:63], false},
		{"too long", valid + "0", false},
		{"non-hex", "zz" + valid[2:], false},
		{"empty", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValidDigest(tc.in))
		})
	}
}
