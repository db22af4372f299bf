// Package fileset holds the complete named-file snapshot that is generated,
// committed and deployed as one unit.
package fileset

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
)

// File is one entry of a FileSet.
type File struct {
	Path    string
	Content []byte
}

// FileSet maps validated relative paths to content. The zero value is an
// empty set. A FileSet is never mutated after Build; accessors return copies.
type FileSet struct {
	files map[string][]byte
}

// ValidatePath enforces the path policy: non-empty, relative, no traversal,
// forward slashes only, already clean, and outside .git.
func ValidatePath(p string) error {
	switch {
	case p == "":
		return fmt.Errorf("empty path")
	case strings.HasPrefix(p, "/"):
		return fmt.Errorf("absolute path %q", p)
	case strings.Contains(p, "\\"):
		return fmt.Errorf("backslash in path %q", p)
	case strings.ContainsRune(p, 0):
		return fmt.Errorf("NUL byte in path %q", p)
	case len(p) >= 2 && p[1] == ':':
		return fmt.Errorf("drive-qualified path %q", p)
	}
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "..":
			return fmt.Errorf("path traversal in %q", p)
		case ".":
			return fmt.Errorf("path %q names a directory", p)
		}
	}
	if path.Clean(p) != p {
		return fmt.Errorf("path %q is not clean", p)
	}
	if p == ".git" || strings.HasPrefix(p, ".git/") {
		return fmt.Errorf("path %q is inside .git", p)
	}
	return nil
}

// Builder accumulates files and validates them.
type Builder struct {
	files map[string][]byte
	// dirs holds every parent directory of an added path.
	dirs map[string]struct{}
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{files: map[string][]byte{}, dirs: map[string]struct{}{}}
}

// Add records a file. Invalid or duplicate paths are errors, as is a path
// that is both a file and a directory ("a" and "a/b").
func (b *Builder) Add(p string, content []byte) error {
	if err := ValidatePath(p); err != nil {
		return err
	}
	if _, dup := b.files[p]; dup {
		return fmt.Errorf("duplicate path %q", p)
	}
	if _, isDir := b.dirs[p]; isDir {
		return fmt.Errorf("path %q is already a directory", p)
	}
	parents := parentDirs(p)
	for _, d := range parents {
		if _, isFile := b.files[d]; isFile {
			return fmt.Errorf("path %q is below file %q", p, d)
		}
	}
	for _, d := range parents {
		b.dirs[d] = struct{}{}
	}
	b.files[p] = bytes.Clone(content)
	if b.files[p] == nil {
		b.files[p] = []byte{}
	}
	return nil
}

func parentDirs(p string) []string {
	var out []string
	for i := range len(p) {
		if p[i] == '/' {
			out = append(out, p[:i])
		}
	}
	return out
}

// Has reports whether p was added.
func (b *Builder) Has(p string) bool {
	_, ok := b.files[p]
	return ok
}

// Build freezes the accumulated files.
func (b *Builder) Build() FileSet {
	out := make(map[string][]byte, len(b.files))
	for k, v := range b.files {
		out[k] = v
	}
	return FileSet{files: out}
}

// FromMap validates every entry and builds a FileSet.
func FromMap(m map[string][]byte) (FileSet, error) {
	b := NewBuilder()
	for _, p := range sortedKeys(m) {
		if err := b.Add(p, m[p]); err != nil {
			return FileSet{}, err
		}
	}
	return b.Build(), nil
}

// Len returns the number of files.
func (s FileSet) Len() int { return len(s.files) }

// Empty reports whether the set has no files.
func (s FileSet) Empty() bool { return len(s.files) == 0 }

// Get returns a copy of the content at p.
func (s FileSet) Get(p string) ([]byte, bool) {
	c, ok := s.files[p]
	if !ok {
		return nil, false
	}
	return bytes.Clone(c), true
}

// Has reports whether p is in the set.
func (s FileSet) Has(p string) bool {
	_, ok := s.files[p]
	return ok
}

// Paths returns the sorted paths.
func (s FileSet) Paths() []string {
	return sortedKeys(s.files)
}

// Files returns copies of every entry in path order.
func (s FileSet) Files() []File {
	out := make([]File, 0, len(s.files))
	for _, p := range sortedKeys(s.files) {
		out = append(out, File{Path: p, Content: bytes.Clone(s.files[p])})
	}
	return out
}

// Size is the total content length in bytes.
func (s FileSet) Size() int {
	n := 0
	for _, c := range s.files {
		n += len(c)
	}
	return n
}

// Equal reports whether two sets hold identical paths and bytes.
func (s FileSet) Equal(o FileSet) bool {
	if len(s.files) != len(o.files) {
		return false
	}
	for p, c := range s.files {
		oc, ok := o.files[p]
		if !ok || !bytes.Equal(c, oc) {
			return false
		}
	}
	return true
}

// Digest is a content hash over paths and bytes, stable across orderings.
func (s FileSet) Digest() string {
	h := sha256.New()
	for _, p := range sortedKeys(s.files) {
		fmt.Fprintf(h, "%s\x00%d\x00", p, len(s.files[p]))
		h.Write(s.files[p])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
