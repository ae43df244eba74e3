package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chemformula/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDisk(t *testing.T) *Disk {
	t.Helper()
	d, err := NewDisk(t.TempDir(), logger.NewNop())
	require.NoError(t, err)
	return d
}

func TestNewDiskCreatesBuckets(t *testing.T) {
	d := newDisk(t)
	for _, c := range []string{"formulas", "quotes", "knowledge", "other"} {
		info, err := os.Stat(filepath.Join(d.Root(), c))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestSaveOpenDelete(t *testing.T) {
	d := newDisk(t)

	n, err := d.Save("formulas", "a.txt", strings.NewReader("hello"), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	f, err := d.Open("formulas", "a.txt")
	require.NoError(t, err)
	data, _ := io.ReadAll(f)
	f.Close()
	assert.Equal(t, "hello", string(data))

	_, err = d.Save("formulas", "a.txt", strings.NewReader("again"), 100)
	assert.Error(t, err, "existing files are never overwritten")

	require.NoError(t, d.Delete("formulas", "a.txt"))
	ok, err := d.Exists("formulas", "a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, d.Delete("formulas", "a.txt"))
}

func TestSaveEnforcesLimit(t *testing.T) {
	d := newDisk(t)

	_, err := d.Save("other", "big.bin", strings.NewReader(strings.Repeat("x", 11)), 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	ok, _ := d.Exists("other", "big.bin")
	assert.False(t, ok)
}

func TestRejectsTraversal(t *testing.T) {
	d := newDisk(t)

	_, err := d.Save("other", "../escape.txt", strings.NewReader("x"), 0)
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = d.Path("secrets", "a.txt")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, _, err = d.Locate("other", "..")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestLocateSearchesBuckets(t *testing.T) {
	d := newDisk(t)
	_, err := d.Save("knowledge", "doc.pdf", strings.NewReader("%PDF"), 0)
	require.NoError(t, err)

	cat, ok, err := d.Locate("formulas", "doc.pdf")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "knowledge", cat)

	_, ok, err = d.Locate("formulas", "missing.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMove(t *testing.T) {
	d := newDisk(t)
	_, err := d.Save("other", "m.txt", strings.NewReader("x"), 0)
	require.NoError(t, err)

	require.NoError(t, d.Move("other", "quotes", "m.txt"))
	ok, _ := d.Exists("quotes", "m.txt")
	assert.True(t, ok)
	ok, _ = d.Exists("other", "m.txt")
	assert.False(t, ok)
	assert.NoError(t, d.Move("quotes", "quotes", "m.txt"))
}
