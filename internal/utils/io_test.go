package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurePath(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{name: "empty", path: "", wantErr: ErrEmptyPath},
		{name: "relative", path: "relay/out.log", want: filepath.Join(base, "relay", "out.log")},
		{name: "traversal", path: "../escape.log", wantErr: ErrPathTraversal},
		{name: "nested traversal", path: "a/../../escape.log", wantErr: ErrPathTraversal},
		{name: "absolute inside", path: filepath.Join(base, "in.log"), want: filepath.Join(base, "in.log")},
		{name: "absolute outside", path: filepath.Join(filepath.Dir(base), "out.log"), wantErr: ErrOutsideBase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SecurePath(base, tt.path)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSecurePathRejectsEscapingSymlink(t *testing.T) {
	base := t.TempDir()
	outside := t.TempDir()

	err := os.Symlink(outside, filepath.Join(base, "link"))
	if err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err = SecurePath(base, "link")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutsideBase))
}

func TestSecurePathDefaultsToTempDir(t *testing.T) {
	got, err := SecurePath("", "relay.log")
	require.NoError(t, err)

	base, err := filepath.Abs(os.TempDir())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "relay.log"), got)
}
