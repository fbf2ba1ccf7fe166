package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

var errNotRegular = errors.New("not a regular file")

type entryKind int

const (
	kindFile entryKind = iota
	kindDirectory
	kindSkip
)

// LocalEntry is read on demand during the walk and never cached. Path is
// relative to the sync root and slash separated, so it doubles as the key.
type LocalEntry struct {
	Path string
	Info fs.FileInfo
	Err  error
}

type directoryListing struct {
	Files []LocalEntry
	Dirs  []string
}

type readDirFunc func(fs.FS, string) ([]fs.DirEntry, error)

var (
	// swapped in tests that need listing failures
	concreteReadDirFunc readDirFunc = fs.ReadDir
)

// fsDir converts a key prefix ("" or "a/b/") into an fs.FS directory name.
func fsDir(prefix string) string {
	if prefix == "" {
		return "."
	}
	return strings.TrimSuffix(prefix, "/")
}

// listDirectory reads the directory at prefix once and splits it into files
// and sub-directory prefixes. Entries that cannot be statted or are not
// regular files come back as files with Err set so the caller can record them.
func listDirectory(fsys fs.FS, prefix string) (directoryListing, error) {
	var listing directoryListing

	entries, err := concreteReadDirFunc(fsys, fsDir(prefix))
	if err != nil {
		return listing, err
	}

	for _, entry := range entries {
		rel := prefix + entry.Name()
		kind, info, infoErr := classifyEntry(fsys, rel, entry)
		switch kind {
		case kindDirectory:
			listing.Dirs = append(listing.Dirs, rel+"/")
		case kindFile:
			listing.Files = append(listing.Files, LocalEntry{Path: rel, Info: info, Err: infoErr})
		}
	}

	return listing, nil
}

// classifyEntry treats anything that is not a directory as a file. Symlinks
// are resolved; a link to a directory is skipped so cycles cannot form.
// Pipes, sockets and devices are reported as errors without being opened.
func classifyEntry(fsys fs.FS, name string, entry fs.DirEntry) (entryKind, fs.FileInfo, error) {
	if entry.IsDir() {
		return kindDirectory, nil, nil
	}

	if entry.Type()&fs.ModeSymlink != 0 {
		info, err := fs.Stat(fsys, name)
		if err != nil {
			return kindFile, nil, err
		}
		if info.IsDir() {
			return kindSkip, info, nil
		}
		if !info.Mode().IsRegular() {
			return kindFile, info, fmt.Errorf("%s: %w", name, errNotRegular)
		}
		return kindFile, info, nil
	}

	if !entry.Type().IsRegular() {
		return kindFile, nil, fmt.Errorf("%s (%s): %w", name, entry.Type(), errNotRegular)
	}

	info, err := entry.Info()
	return kindFile, info, err
}

// excludeName is the string Exclude patterns are matched against: the key for
// files, the key without its trailing slash for directories.
func excludeName(rel string) string {
	return path.Clean(rel)
}
