package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLog_DisabledWithoutOutput(t *testing.T) {
	SetOutput(nil)
	// Must not panic with no logger installed.
	Info(CatSession, "ignored", "pid", 42)
}

func TestLog_FormatsFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })

	Info(CatSession, "child started", "pid", 42, "path", "/tmp/Database")

	line := buf.String()
	require.Contains(t, line, "[INFO] [session] child started pid=42 path=/tmp/Database")
	require.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
}

func TestLog_OddFieldCount(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })

	Warn(CatPipe, "dangling", "stream")

	require.Contains(t, buf.String(), "stream=<missing>")
}

func TestLog_ErrorErr(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })

	ErrorErr(CatUI, "send failed", errors.New("broken pipe"))
	ErrorErr(CatUI, "nil error", nil)

	require.Contains(t, buf.String(), "[ERROR] [ui] send failed error=broken pipe")
	require.Contains(t, buf.String(), "error=<nil>")
}

func TestLog_MinLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })

	SetMinLevel(LevelWarn)
	Debug(CatConfig, "hidden")
	Info(CatConfig, "hidden too")
	Error(CatConfig, "shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestLog_InitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queryconsole.log")

	cleanup, err := Init(path)
	require.NoError(t, err)
	Info(CatConfig, "loaded", "file", "config.yaml")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "[INFO] [config] loaded file=config.yaml")
}

func TestLevel_String(t *testing.T) {
	require.Equal(t, "DEBUG", LevelDebug.String())
	require.Equal(t, "ERROR", LevelError.String())
	require.Equal(t, "UNKNOWN", Level(99).String())
}
