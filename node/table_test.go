package node

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comfyshim/gpupin/device"
)

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	require.Len(t, table, 5)

	seen := map[string]bool{}
	for _, w := range table {
		require.NotEmpty(t, w.Class)
		require.NotEmpty(t, w.Wraps)
		require.NotEmpty(t, w.DisplayName)
		require.Equal(t, DefaultTarget, w.Target)
		require.False(t, seen[w.Class], "duplicate wrapper class %s", w.Class)
		seen[w.Class] = true
	}
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrappers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
target_device: cuda:1
wrappers:
  - class: DepthAnythingV2Wrapper
    wraps: DepthAnythingV2Preprocessor
    display_name: DepthAnything V2 (GPU Wrapper)
  - wraps: LineArtPreprocessor
    target_device: cuda:0
`), 0o644))

	table, err := LoadTable(path)
	require.NoError(t, err)
	require.Len(t, table, 2)

	require.Equal(t, device.ID("cuda:1"), table[0].Target, "file-level target must fill entries without one")

	require.Equal(t, "LineArtPreprocessorWrapper", table[1].Class)
	require.Equal(t, "LineArtPreprocessor (GPU Wrapper)", table[1].DisplayName)
	require.Equal(t, device.ID("cuda:0"), table[1].Target)
}

func TestLoadTableRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"no wrappers":     "target_device: cuda:0\n",
		"missing wraps":   "wrappers:\n  - class: SomethingWrapper\n",
		"bad device":      "wrappers:\n  - wraps: DWPreprocessor\n    target_device: gpu7\n",
		"bad file target": "target_device: nowhere\nwrappers:\n  - wraps: DWPreprocessor\n",
	}
	for name, content := range cases {
		path := filepath.Join(dir, name+".yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := LoadTable(path)
		require.Error(t, err, "case %q", name)
	}
}

func TestLoadTableMissingFile(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
