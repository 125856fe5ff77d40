package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveSaveOpenDelete(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, archive.Save("debtors-job-1.csv", []byte("ID,Ism\n")))

	file, err := archive.Open("debtors-job-1.csv")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	require.NoError(t, archive.Delete("debtors-job-1.csv"))
	_, err = archive.Open("debtors-job-1.csv")
	require.Error(t, err)

	// deleting twice is fine
	require.NoError(t, archive.Delete("debtors-job-1.csv"))
}

func TestArchiveRejectsEscapingNames(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	require.Error(t, archive.Save("../outside.csv", []byte("x")))
	_, err = archive.Open("../../etc/passwd")
	require.Error(t, err)
	require.Error(t, archive.Delete(""))
}

func TestArchiveRemoveOlderThan(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	require.NoError(t, err)

	require.NoError(t, archive.Save("old.csv", []byte("x")))
	require.NoError(t, archive.Save("fresh.csv", []byte("y")))

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.csv"), stale, stale))

	removed, err := archive.RemoveOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = archive.Open("old.csv")
	require.Error(t, err)
	file, err := archive.Open("fresh.csv")
	require.NoError(t, err)
	require.NoError(t, file.Close())
}
