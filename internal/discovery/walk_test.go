package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/ctd-organizer/internal/failure"
)

func touch(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"report.pdf", true},
		{"REPORT.PDF", true},
		{"scan.Pdf", true},
		{"notes.txt", false},
		{"pdf", false},
		{"archive.pdf.zip", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPDF(tt.name), tt.name)
	}
}

func TestSourceModule(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{"m1/cover.pdf", "m1"},
		{"M3/32-body/spec.pdf", "M3"},
		{"m12/x.pdf", "m12"},
		{"misc/m1.pdf", ""},
		{"m1.pdf", ""},
		{"module1/x.pdf", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SourceModule(filepath.FromSlash(tt.rel)), tt.rel)
	}
}

func TestWalkFindsPDFsInOrder(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "m2/qos.pdf")
	touch(t, root, "m1/sub/cover.PDF")
	touch(t, root, "m1/readme.txt")
	touch(t, root, "loose.pdf")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty.pdf"), 0o750))

	res, err := Walk(context.Background(), root, nil)
	require.NoError(t, err)
	require.Len(t, res.Documents, 3)

	var rels []string
	for _, d := range res.Documents {
		rels = append(rels, filepath.ToSlash(d.RelPath))
	}
	assert.Equal(t, []string{"loose.pdf", "m1/sub/cover.PDF", "m2/qos.pdf"}, rels)

	assert.Equal(t, "", res.Documents[0].SourceModule)
	assert.Equal(t, "m1", res.Documents[1].SourceModule)
	assert.Equal(t, "cover.PDF", res.Documents[1].Name)
	assert.Equal(t, []string{"m1", "m2"}, res.Modules())
	assert.Equal(t, int64(3*len("%PDF-1.4")), res.TotalSize())
	assert.Equal(t, "3 PDF file(s) in modules m1, m2", res.Describe())
	assert.Empty(t, res.Warnings)
}

func TestWalkIgnoresSymlinkOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	touch(t, outside, "secret.pdf")
	touch(t, root, "m1/inside.pdf")

	if err := os.Symlink(filepath.Join(outside, "secret.pdf"), filepath.Join(root, "link.pdf")); err != nil {
		t.Skip("symlinks not supported")
	}
	require.NoError(t, os.Symlink(filepath.Join(root, "m1", "inside.pdf"), filepath.Join(root, "alias.pdf")))

	res, err := Walk(context.Background(), root, nil)
	require.NoError(t, err)

	var names []string
	for _, d := range res.Documents {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"alias.pdf", "inside.pdf"}, names)
}

func TestWalkErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.pdf")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	for _, root := range []string{"", filepath.Join(dir, "missing"), file} {
		_, err := Walk(context.Background(), root, nil)
		require.Error(t, err)
		assert.True(t, failure.Is(err, failure.KindDiscovery), root)
	}
}

func TestWalkCancelled(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Walk(ctx, root, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalkEmpty(t *testing.T) {
	res, err := Walk(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
	assert.Equal(t, "0 PDF file(s)", res.Describe())
}
