package generation

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/pagesmith/internal/fileset"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/job"
)

const (
	entryPoint  = "index.html"
	licensePath = "LICENSE"
	readmePath  = "README.md"
)

// assemble validates entries into a FileSet, resolves keep markers against
// the existing files and adds the default LICENSE and README.
func (s *Service) assemble(req Request, entries []Entry) (fileset.FileSet, error) {
	b := fileset.NewBuilder()
	for _, e := range entries {
		name := e.FileName()
		var content []byte
		if e.Keep {
			if req.Existing == nil || !req.Existing.Has(name) {
				return fileset.FileSet{}, failed("keep requested for a file that does not exist", name, nil)
			}
			content, _ = req.Existing.Get(name)
		} else {
			var err error
			if content, err = e.Bytes(); err != nil {
				return fileset.FileSet{}, failed("invalid file content", name, err)
			}
		}
		if err := b.Add(name, content); err != nil {
			return fileset.FileSet{}, failed("invalid generated path", name, err)
		}
	}

	switch req.Mode {
	case job.ModeCreate:
		if !b.Has(entryPoint) {
			return fileset.FileSet{}, failed("generated site has no entry point", entryPoint, nil)
		}
		if !b.Has(licensePath) {
			if err := b.Add(licensePath, []byte(mitLicense(s.opts.Now().Year(), s.opts.LicenseHolder))); err != nil {
				return fileset.FileSet{}, failed("generated path collides with the default license", licensePath, err)
			}
		}
		if !b.Has(readmePath) {
			if err := b.Add(readmePath, []byte(defaultReadme(req))); err != nil {
				return fileset.FileSet{}, failed("generated path collides with the default readme", readmePath, err)
			}
		}
	case job.ModeRevise:
		// The license is never dropped by a revision that forgot to keep it.
		if !b.Has(licensePath) && req.Existing != nil && req.Existing.Has(licensePath) {
			lic, _ := req.Existing.Get(licensePath)
			if err := b.Add(licensePath, lic); err != nil {
				return fileset.FileSet{}, failed("revised path collides with the existing license", licensePath, err)
			}
		}
		if !b.Has(entryPoint) {
			return fileset.FileSet{}, failed("revised site has no entry point", entryPoint, nil)
		}
	}
	return b.Build(), nil
}

func failed(msg, path string, cause error) error {
	return errors.GenerationFailed(msg).
		WithCause(cause).
		WithContext("path", path).
		Build()
}

func mitLicense(year int, holder string) string {
	if strings.TrimSpace(holder) == "" {
		holder = "the authors"
	}
	return fmt.Sprintf(`MIT License

Copyright (c) %d %s

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
`, year, holder)
}

func defaultReadme(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n", req.Task, strings.TrimSpace(req.Brief))
	if len(req.Checks) > 0 {
		b.WriteString("\n## Checks\n\n")
		for _, c := range req.Checks {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	b.WriteString("\n## Usage\n\nOpen `index.html` in a browser or visit the published GitHub Pages site.\n")
	b.WriteString("\n## License\n\nMIT, see [LICENSE](LICENSE).\n")
	return b.String()
}
