package generation

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
)

// Entry is one file object returned by the model.
type Entry struct {
	Name     string  `json:"name"`
	Path     string  `json:"path,omitempty"` // accepted alias for name
	Content  *string `json:"content,omitempty"`
	Encoding string  `json:"encoding,omitempty"` // "" | "utf-8" | "base64"
	Keep     bool    `json:"keep,omitempty"`
}

// FileName returns the entry path, preferring name over path.
func (e Entry) FileName() string {
	if e.Name != "" {
		return strings.TrimSpace(e.Name)
	}
	return strings.TrimSpace(e.Path)
}

// Bytes decodes the entry content.
func (e Entry) Bytes() ([]byte, error) {
	if e.Content == nil {
		return nil, fmt.Errorf("file %q has no content", e.FileName())
	}
	switch strings.ToLower(e.Encoding) {
	case "", "utf-8", "utf8", "text":
		return []byte(*e.Content), nil
	case "base64":
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(*e.Content))
		if err != nil {
			return nil, fmt.Errorf("file %q: invalid base64 content: %w", e.FileName(), err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("file %q: unsupported encoding %q", e.FileName(), e.Encoding)
	}
}

// ParseResponse extracts file entries from model output. Markdown code fences
// around the JSON are tolerated; anything else is GenerationFailed.
func ParseResponse(raw string) ([]Entry, error) {
	text := stripFences(raw)
	if text == "" {
		return nil, errors.GenerationFailed("empty model response").Build()
	}

	var entries []Entry
	switch text[0] {
	case '[':
		if err := json.Unmarshal([]byte(text), &entries); err != nil {
			return nil, unparseable(err, raw)
		}
	case '{':
		var doc struct {
			Files []Entry `json:"files"`
		}
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, unparseable(err, raw)
		}
		entries = doc.Files
	default:
		return nil, unparseable(fmt.Errorf("response is not a JSON document"), raw)
	}
	if len(entries) == 0 {
		return nil, errors.GenerationFailed("model returned an empty file set").Build()
	}
	return entries, nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string such as "json".
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func unparseable(err error, raw string) error {
	excerpt := raw
	if len(excerpt) > 200 {
		excerpt = excerpt[:200]
	}
	return errors.GenerationFailed("unparseable model response").
		WithCause(err).
		WithContext("excerpt", excerpt).
		Build()
}
