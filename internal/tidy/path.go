package tidy

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Path is an absolute filesystem path with the stat info captured when it was resolved.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath creates a Path. Intended for FilesystemManager implementations.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{absPath: absPath, isDir: isDir, info: info}
}

func (p *Path) String() string { return p.absPath }

func (p *Path) IsDir() bool { return p.isDir }

// Info returns the cached file info.
func (p *Path) Info() fs.FileInfo { return p.info }

func (p *Path) Name() string { return filepath.Base(p.absPath) }

// IsHidden reports whether the base name is a dot file.
func (p *Path) IsHidden() bool { return isHiddenName(p.Name()) }

func isHiddenName(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
