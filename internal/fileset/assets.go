package fileset

import (
	"bytes"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// DanglingReferences scans every HTML file for relative src/href references
// that do not resolve to a file in the set. External, fragment, data and
// mailto references are ignored.
func DanglingReferences(s FileSet) []string {
	missing := map[string]bool{}
	for _, p := range s.Paths() {
		ext := strings.ToLower(path.Ext(p))
		if ext != ".html" && ext != ".htm" {
			continue
		}
		for _, ref := range htmlReferences(s.files[p]) {
			target, ok := resolveLocal(path.Dir(p), ref)
			if !ok {
				continue
			}
			if s.Has(target) || s.Has(path.Join(target, "index.html")) {
				continue
			}
			missing[p+" -> "+ref] = true
		}
	}
	out := make([]string, 0, len(missing))
	for m := range missing {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func htmlReferences(doc []byte) []string {
	var refs []string
	z := html.NewTokenizer(bytes.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return refs
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				k := string(key)
				if (k == "src" && (tag == "script" || tag == "img" || tag == "source" || tag == "audio" || tag == "video")) ||
					(k == "href" && tag == "link") {
					refs = append(refs, string(val))
				}
			}
		}
	}
}

func resolveLocal(dir, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return "", false
	}
	var p string
	if strings.HasPrefix(u.Path, "/") {
		p = strings.TrimPrefix(path.Clean(u.Path), "/")
	} else {
		p = path.Join(dir, u.Path)
	}
	if p == "" || p == "." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return p, true
}
