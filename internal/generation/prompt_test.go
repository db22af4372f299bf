package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/pagesmith/internal/fileset"
	"git.home.luguber.info/inful/pagesmith/internal/job"
)

func TestBuildPromptCreate(t *testing.T) {
	p := BuildPrompt(Request{
		Task:   "sum-of-sales",
		Round:  1,
		Mode:   job.ModeCreate,
		Brief:  "Sum the sales column",
		Checks: []string{"shows total", "uses bootstrap"},
		Attachments: []job.Decoded{
			{Name: "data.csv", MediaType: "text/csv", Data: []byte("sales\n1\n2\n")},
			{Name: "logo.png", MediaType: "image/png", Data: []byte{1, 2, 3}},
		},
	})

	assert.Contains(t, p.System, `"keep": true`)
	assert.Contains(t, p.User, "Round: 1 (CREATE)")
	assert.Contains(t, p.User, "1. shows total\n2. uses bootstrap")
	assert.Contains(t, p.User, "sales\n1\n2")
	assert.Contains(t, p.User, "logo.png (image/png, 3 bytes")
	assert.Contains(t, p.User, "Create the application from scratch")
	if assert.Len(t, p.Inline, 1) {
		assert.Equal(t, "logo.png", p.Inline[0].Name)
	}
}

func TestBuildPromptReviseEmptyRepository(t *testing.T) {
	var empty fileset.FileSet
	p := BuildPrompt(Request{Task: "t", Round: 2, Mode: job.ModeRevise, Brief: "b", Existing: &empty})
	assert.Contains(t, p.User, "The repository is currently empty.")
	assert.Contains(t, p.User, "complete desired end state")
}
