package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocate(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		dirs    []string
		want    string
		wantErr bool
	}{
		{name: "bare name", files: []string{"Database"}, want: "Database"},
		{name: "exe suffix", files: []string{"Database.exe"}, want: "Database.exe"},
		{name: "bare name wins", files: []string{"Database", "Database.exe"}, want: "Database"},
		{name: "directory is not an executable", dirs: []string{"Database"}, wantErr: true},
		{name: "absent", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0o755))
			}
			for _, d := range tt.dirs {
				require.NoError(t, os.Mkdir(filepath.Join(dir, d), 0o755))
			}

			got, err := Locate(dir, "Database")
			if tt.wantErr {
				require.ErrorIs(t, err, ErrExecutableNotFound)
				return
			}
			require.NoError(t, err)
			require.True(t, filepath.IsAbs(got), "path %q should be absolute", got)
			require.Equal(t, tt.want, filepath.Base(got))
		})
	}
}

func TestLocate_EmptyDirMeansWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Database"), nil, 0o755))
	t.Chdir(dir)

	got, err := Locate("", "Database")
	require.NoError(t, err)
	require.Equal(t, "Database", filepath.Base(got))
}

func TestMessage_Format(t *testing.T) {
	require.Equal(t, ": ready\n", Message{Source: SourceStdout, Text: "ready\n"}.Format())
	require.Equal(t, "Error: boom\n", Message{Source: SourceStderr, Text: "boom\n"}.Format())
	require.Equal(t, "Error in output monitoring: x\n", Message{Source: SourceNotice, Text: "Error in output monitoring: x\n"}.Format())
	require.Equal(t, "", SourceStdout.Tag())
	require.Equal(t, "Error", SourceStderr.Tag())
}
