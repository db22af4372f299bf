package generation

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/pagesmith/internal/fileset"
	"git.home.luguber.info/inful/pagesmith/internal/job"
)

// Prompt is the dialect-neutral model input.
type Prompt struct {
	System string
	User   string
	// Inline carries binary attachments for providers that accept them.
	Inline []InlinePart
}

// InlinePart is a binary payload sent next to the text prompt.
type InlinePart struct {
	Name      string
	MediaType string
	Data      []byte
}

const systemInstruction = `You are an expert front-end developer. You build complete static web applications that run directly from GitHub Pages without a build step.
Respond with a single JSON object of the form {"files": [{"name": "<relative path>", "content": "<file content>"}]} and nothing else.
Rules:
- Paths are relative, use forward slashes, and never contain "..".
- "index.html" is the entry point and must exist.
- Reference assets with relative URLs so the site works under a sub-path.
- Set "encoding": "base64" only for binary content.
- To keep an existing file unchanged, return {"name": "<path>", "keep": true} without content.
- Files you do not return are deleted.`

// maxInlineText bounds how much of a single existing file is inlined.
const maxInlineText = 64 << 10

// BuildPrompt renders the request.
func BuildPrompt(req Request) Prompt {
	var b strings.Builder

	fmt.Fprintf(&b, "Task: %s\nRound: %d (%s)\n\n", req.Task, req.Round, req.Mode)
	fmt.Fprintf(&b, "## Brief\n\n%s\n\n", strings.TrimSpace(req.Brief))

	if len(req.Checks) > 0 {
		b.WriteString("## Checks\n\nThe result is evaluated against these checks:\n")
		for i, c := range req.Checks {
			fmt.Fprintf(&b, "%d. %s\n", i+1, c)
		}
		b.WriteString("\n")
	}

	var inline []InlinePart
	if len(req.Attachments) > 0 {
		b.WriteString("## Attachments\n\n")
		for _, a := range req.Attachments {
			if a.IsText() {
				fmt.Fprintf(&b, "### %s (%s)\n\n```\n%s\n```\n\n", a.Name, a.MediaType, string(a.Data))
				continue
			}
			fmt.Fprintf(&b, "- %s (%s, %d bytes, provided inline)\n", a.Name, a.MediaType, len(a.Data))
			inline = append(inline, InlinePart{Name: a.Name, MediaType: a.MediaType, Data: a.Data})
		}
		b.WriteString("\n")
	}

	switch {
	case req.Mode == job.ModeRevise && req.Existing != nil:
		writeExisting(&b, *req.Existing)
		b.WriteString("Return the complete desired end state of the repository, not a diff.\n")
	default:
		b.WriteString("Create the application from scratch. Include a README.md describing it and an MIT LICENSE.\n")
	}

	return Prompt{System: systemInstruction, User: b.String(), Inline: inline}
}

func writeExisting(b *strings.Builder, fs fileset.FileSet) {
	b.WriteString("## Current repository files\n\n")
	if fs.Empty() {
		b.WriteString("The repository is currently empty.\n\n")
		return
	}
	var binaries []fileset.File
	for _, f := range fs.Files() {
		if !fileset.IsText(f.Path, f.Content) || len(f.Content) > maxInlineText {
			binaries = append(binaries, f)
			continue
		}
		fmt.Fprintf(b, "### %s\n\n```\n%s\n```\n\n", f.Path, string(f.Content))
	}
	if len(binaries) > 0 {
		b.WriteString("Files not shown (keep them with \"keep\": true if still needed):\n")
		for _, f := range binaries {
			fmt.Fprintf(b, "- %s (%d bytes)\n", f.Path, len(f.Content))
		}
		b.WriteString("\n")
	}
}
