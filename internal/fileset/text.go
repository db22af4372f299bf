package fileset

import (
	"path"
	"strings"
	"unicode/utf8"
)

var textExtensions = map[string]bool{
	".html": true, ".htm": true, ".css": true, ".js": true, ".mjs": true,
	".md": true, ".json": true, ".txt": true, ".svg": true, ".xml": true, ".csv": true,
}

// IsText reports whether the file at p should be shown to the model inline.
// Extensionless files such as LICENSE count as text when they are valid UTF-8.
func IsText(p string, content []byte) bool {
	ext := strings.ToLower(path.Ext(p))
	if textExtensions[ext] {
		return utf8.Valid(content)
	}
	return ext == "" && utf8.Valid(content)
}
