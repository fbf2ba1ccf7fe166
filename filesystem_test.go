package main

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDirectoryPartitionsOnce(t *testing.T) {
	calls := 0
	original := concreteReadDirFunc
	defer func() { concreteReadDirFunc = original }()
	concreteReadDirFunc = func(fsys fs.FS, name string) ([]fs.DirEntry, error) {
		calls++
		return fs.ReadDir(fsys, name)
	}
	fsys := fstest.MapFS{
		"top/a.txt":     {Data: []byte("a"), ModTime: t0},
		"top/b.txt":     {Data: []byte("b"), ModTime: t1},
		"top/inner/c":   {Data: []byte("c"), ModTime: t0},
		"top/empty-dir": {Mode: fs.ModeDir},
	}

	listing, err := listDirectory(fsys, "top/")

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"top/empty-dir/", "top/inner/"}, listing.Dirs)
	require.Len(t, listing.Files, 2)
	assert.Equal(t, "top/a.txt", listing.Files[0].Path)
	assert.Equal(t, t1, listing.Files[1].Info.ModTime())
	assert.NoError(t, listing.Files[0].Err)
}

func TestFsDir(t *testing.T) {
	assert.Equal(t, ".", fsDir(""))
	assert.Equal(t, "a/b", fsDir("a/b/"))
}

func TestWalkRealDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deeper"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "deeper", "b.txt"), []byte("bravo"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "a.txt"), past, past))

	mockClient := NewMockClient(nil)
	syncer := newTestSyncer(t, mockClient, os.DirFS(root), SyncOptions{SourceFolder: root})

	results, err := syncer.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "sub/", "sub/deeper/", "sub/deeper/b.txt"}, mockClient.PutKeys())
	assert.Equal(t, []byte("alpha"), mockClient.Bodies["a.txt"])
	assert.Empty(t, results.Failures())
}

func TestSymlinksAreResolved(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need elevated privileges on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "target.txt"), []byte("linked"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "target.txt"), filepath.Join(root, "link.txt")))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "loop")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "missing"), filepath.Join(root, "dangling")))

	mockClient := NewMockClient(nil)
	syncer := newTestSyncer(t, mockClient, os.DirFS(root), SyncOptions{SourceFolder: root})

	results, err := syncer.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"link.txt"}, mockClient.PutKeys())
	assert.Equal(t, []byte("linked"), mockClient.Bodies["link.txt"])
	failures := results.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "dangling", failures[0].Key)
}
