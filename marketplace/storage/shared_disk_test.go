package storage

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSharedDiskRoundTrip(t *testing.T) {
	store := NewSharedDisk(t.TempDir())

	path := "uploads/products/a.png"
	if err := store.Write(path, strings.NewReader("pixels")); err != nil {
		t.Fatal(err)
	}

	exists, err := store.Exists(path)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, exists)

	size, err := store.Size(path)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, int64(6), size)

	file, err := store.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "pixels", string(data))

	entries, err := store.List("uploads/products")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, []string{"a.png"}, entries)

	if err := store.Delete(path); err != nil {
		t.Fatal(err)
	}
	exists, err = store.Exists(path)
	if err != nil {
		t.Fatal(err)
	}
	assert.False(t, exists)
}

func TestSharedDiskRejectsEscapingPaths(t *testing.T) {
	store := NewSharedDisk(t.TempDir())

	err := store.Write("../outside.txt", strings.NewReader("x"))
	assert.True(t, errors.Is(err, ErrPathOutsideStorage))

	_, err = store.Exists("uploads/../../etc/passwd")
	assert.True(t, errors.Is(err, ErrPathOutsideStorage))
}

func TestSharedDiskUsage(t *testing.T) {
	store := NewSharedDisk(t.TempDir())

	stats, err := store.Usage()
	if err != nil {
		t.Fatal(err)
	}
	assert.Greater(t, stats.TotalBytes, uint64(0))
	assert.LessOrEqual(t, stats.FreeBytes, stats.TotalBytes)
}

func TestSharedDiskDeleteNeverRemovesTrees(t *testing.T) {
	store := NewSharedDisk(t.TempDir())

	if err := store.Write("uploads/profiles/p.jpg", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{".", "", "uploads/.."} {
		err := store.Delete(path)
		assert.True(t, errors.Is(err, ErrPathOutsideStorage), path)
	}

	// Non empty directories are left alone.
	assert.Error(t, store.Delete("uploads/profiles"))

	exists, err := store.Exists("uploads/profiles/p.jpg")
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, exists)

	assert.NoError(t, store.Delete("uploads/profiles/missing.jpg"))
}

func TestSharedDiskIsFile(t *testing.T) {
	store := NewSharedDisk(t.TempDir())

	if err := store.Write("uploads/products/a.png", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}

	isFile, err := store.IsFile("uploads/products/a.png")
	assert.NoError(t, err)
	assert.True(t, isFile)

	isFile, err = store.IsFile("uploads/products")
	assert.NoError(t, err)
	assert.False(t, isFile)

	isFile, err = store.IsFile("uploads/products/b.png")
	assert.NoError(t, err)
	assert.False(t, isFile)
}
