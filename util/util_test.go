package util

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueStrings(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "nil", in: nil, want: []string{}},
		{name: "keeps first-seen order", in: []string{"web2", "web1", "web2", "db1", "web1"}, want: []string{"web2", "web1", "db1"}},
		{name: "trims and drops blanks", in: []string{" web1 ", "", "   ", "web1"}, want: []string{"web1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UniqueStrings(tt.in))
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := Home()
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{in: "~", want: home},
		{in: "~/.ssh/id_rsa", want: filepath.Join(home, ".ssh", "id_rsa")},
		{in: "/etc/hosts", want: "/etc/hosts"},
		{in: "~other/x", want: "~other/x"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		got, err := ExpandHome(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "ExpandHome(%q)", tt.in)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "key")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(dir), "directories are not files")
	assert.False(t, FileExists(filepath.Join(dir, "missing")))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", FirstNonEmpty("", "  ", "b", "c"))
	assert.Equal(t, "", FirstNonEmpty())
}

func TestContainsString(t *testing.T) {
	assert.True(t, ContainsString([]string{"a", "b"}, "b"))
	assert.False(t, ContainsString([]string{"a", "b"}, "c"))
}

func TestShortDur(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{1500 * time.Microsecond, "2ms"},
		{2 * time.Minute, "2m"},
		{time.Hour, "1h"},
		{90 * time.Second, "1m30s"},
		{1234 * time.Millisecond, "1.23s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShortDur(tt.in), "ShortDur(%v)", tt.in)
	}
}

func TestIsErrPipeClosed(t *testing.T) {
	assert.False(t, IsErrPipeClosed(nil))
	assert.True(t, IsErrPipeClosed(io.EOF))
	assert.True(t, IsErrPipeClosed(errors.Wrap(os.ErrClosed, "write")))
	assert.True(t, IsErrPipeClosed(errors.New("read tcp: use of closed network connection")))
	assert.False(t, IsErrPipeClosed(errors.New("permission denied")))
}
