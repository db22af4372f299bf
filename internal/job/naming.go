package job

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxRepositoryName = 100

// RepositoryName derives the repository name from a task. It is a pure
// function of the task so that CREATE and every later REVISE address the
// same repository. Accents are folded, anything outside [a-z0-9._-]
// becomes a dash. Returns "" when nothing usable remains.
func RepositoryName(task string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, task)
	if err != nil {
		folded = task
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	dash := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	name := strings.Trim(b.String(), "-.")
	if len(name) > maxRepositoryName {
		name = strings.Trim(name[:maxRepositoryName], "-.")
	}
	// "." and ".." are reserved by the forge.
	if strings.Trim(name, ".") == "" {
		return ""
	}
	return name
}
