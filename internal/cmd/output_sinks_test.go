package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weirdgate/weirdgate/internal/output"
)

func TestOutputExtension(t *testing.T) {
	require.Equal(t, "json", outputExtension(output.FormatJSON))
	require.Equal(t, "md", outputExtension(output.FormatMarkdown))
	require.Equal(t, "txt", outputExtension(output.FormatTable))
}

func TestOpenSinkWritesFile(t *testing.T) {
	dir, err := ensureOutDir(filepath.Join(t.TempDir(), "reports"))
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(dir))

	path := filepath.Join(dir, "windows.list.json")
	sink, err := openSink(path)
	require.NoError(t, err)
	_, err = fmt.Fprint(sink.writer, "[]")
	require.NoError(t, err)
	require.NoError(t, sink.close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))

	stdout, err := openSink("-")
	require.NoError(t, err)
	require.Equal(t, "-", stdout.path)
	require.NoError(t, stdout.close())
}
