package taxonomy

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterialize(t *testing.T) {
	base := filepath.Join(t.TempDir(), "organized_ctd")
	idx, _ := Build(sampleTree(), base)

	n, err := Materialize(context.Background(), idx)
	require.NoError(t, err)
	assert.Equal(t, idx.Len(), n)

	for _, e := range idx.Entries() {
		info, err := os.Stat(e.FolderPath)
		require.NoError(t, err, e.FolderPath)
		assert.True(t, info.IsDir())
	}

	// Running again is harmless.
	n, err = Materialize(context.Background(), idx)
	require.NoError(t, err)
	assert.Equal(t, idx.Len(), n)
}

func TestMaterializeCancelled(t *testing.T) {
	idx, _ := Build(sampleTree(), t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := Materialize(ctx, idx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestWriteTree(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTree(&buf, sampleTree(), 0))

	want := strings.Join([]string{
		"📁 CTD Structure",
		"├── 📁 Module 2 Summaries",
		"│   └── 📁 2.3 Quality Overall Summary (QOS)",
		"│       ├── 📁 2.3 Introduction",
		"│       └── 📁 2.3.S Drug Substance",
		"└── 📁 Module 3 Quality",
		"    └── 📁 3.2.P.8 Stability",
	}, "\n") + "\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteTreeDepthLimit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTree(&buf, sampleTree(), 2))

	out := buf.String()
	assert.Contains(t, out, "Module 2 Summaries")
	assert.NotContains(t, out, "2.3 Quality Overall Summary")
}

func TestSaveAndLoadDefinition(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"ctd_structure.json", "ctd_structure.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, SaveDefinition(sampleTree(), path))

			loaded, err := LoadDefinition(path)
			require.NoError(t, err)
			assert.Equal(t, sampleTree(), loaded)
		})
	}
}

func TestLoadDefinitionErrors(t *testing.T) {
	_, err := LoadDefinition(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ParseDefinition([]byte("description: no name\n"))
	assert.Error(t, err)

	def, err := LoadDefinition("")
	require.NoError(t, err)
	assert.Equal(t, "CTD Structure", def.Name)
}
