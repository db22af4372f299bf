package job

import (
	"net/mail"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
)

// Request is the inbound wire shape.
type Request struct {
	Email         string              `json:"email"`
	Secret        string              `json:"secret,omitempty"`
	Task          string              `json:"task"`
	Round         int                 `json:"round"`
	Nonce         string              `json:"nonce"`
	Brief         string              `json:"brief"`
	Checks        []string            `json:"checks"`
	EvaluationURL string              `json:"evaluation_url"`
	Attachments   []RequestAttachment `json:"attachments,omitempty"`
}

// RequestAttachment carries an attachment as a data URI.
type RequestAttachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// FromRequest validates a request and builds the typed Job. Attachment
// payloads are not decoded here: a malformed data URI fails the job, not
// the submission.
func FromRequest(req Request) (Job, error) {
	var problems []string
	fail := func(msg string) { problems = append(problems, msg) }

	email := strings.TrimSpace(req.Email)
	if email == "" {
		fail("email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		fail("email is not a valid address")
	}

	task := strings.TrimSpace(req.Task)
	var repo string
	if task == "" {
		fail("task is required")
	} else {
		repo = RepositoryName(task)
		if repo == "" {
			fail("task does not yield a usable repository name")
		}
	}

	nonce := strings.TrimSpace(req.Nonce)
	if nonce == "" {
		fail("nonce is required")
	}
	if req.Round < 1 {
		fail("round must be >= 1")
	}
	if strings.TrimSpace(req.Brief) == "" {
		fail("brief is required")
	}
	if u, err := url.Parse(req.EvaluationURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fail("evaluation_url must be an absolute http(s) URL")
	}

	attachments := make([]Attachment, 0, len(req.Attachments))
	seen := make(map[string]bool, len(req.Attachments))
	for _, a := range req.Attachments {
		name := strings.TrimSpace(a.Name)
		switch {
		case name == "":
			fail("attachment name is required")
		case seen[name]:
			fail("duplicate attachment name " + name)
		default:
			seen[name] = true
			attachments = append(attachments, Attachment{Name: name, URI: a.URL})
		}
	}

	if len(problems) > 0 {
		return Job{}, errors.ValidationError("invalid job request").
			WithContext("problems", problems).
			Build()
	}

	checks := make([]string, 0, len(req.Checks))
	for _, c := range req.Checks {
		if c = strings.TrimSpace(c); c != "" {
			checks = append(checks, c)
		}
	}

	return Job{
		Identity:       Identity{Email: email, Task: task, Nonce: nonce},
		Round:          req.Round,
		Brief:          req.Brief,
		Checks:         checks,
		EvaluationURL:  req.EvaluationURL,
		Attachments:    attachments,
		RepositoryName: repo,
	}, nil
}
