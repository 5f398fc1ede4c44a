package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoknow/internal/checkpoint"
)

func TestOptionsValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{name: "valid", opts: Options{Path: dir}},
		{name: "valid with checkpoint", opts: Options{Path: dir, Resume: true, CheckpointID: checkpoint.GenerateID()}},
		{name: "empty path", opts: Options{}, wantErr: "Path (required)"},
		{name: "malformed checkpoint id", opts: Options{Path: dir, CheckpointID: "../escape"}, wantErr: "CheckpointID (uuid)"},
		{name: "missing path", opts: Options{Path: filepath.Join(dir, "missing")}, wantErr: "cannot access"},
		{name: "file instead of directory", opts: Options{Path: file}, wantErr: "is not a directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOptionsModes(t *testing.T) {
	assert.True(t, Options{Resume: true}.resuming())
	assert.False(t, Options{Resume: true, ForceRefresh: true}.resuming())
	assert.True(t, Options{UseCache: true}.cacheReads())
	assert.False(t, Options{UseCache: true, ForceRefresh: true}.cacheReads())
}
