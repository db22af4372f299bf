package job

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
)

// Attachment is an inbound attachment still in data-URI form.
type Attachment struct {
	Name string
	URI  string
}

// Decoded is an attachment ready for the generation client.
type Decoded struct {
	Name      string
	MediaType string
	Data      []byte
}

// IsText reports whether the media type is textual.
func (d Decoded) IsText() bool {
	mt := strings.ToLower(d.MediaType)
	return strings.HasPrefix(mt, "text/") ||
		strings.HasSuffix(mt, "+json") || strings.HasSuffix(mt, "+xml") ||
		mt == "application/json" || mt == "application/xml" || mt == "application/javascript"
}

// Decode parses an RFC 2397 data URI. Both ";base64," and percent-encoded
// payloads are accepted; a missing media type defaults to text/plain.
func (a Attachment) Decode() (Decoded, error) {
	rest, ok := strings.CutPrefix(a.URI, "data:")
	if !ok {
		return Decoded{}, fmt.Errorf("attachment %s: not a data URI", a.Name)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Decoded{}, fmt.Errorf("attachment %s: data URI has no payload separator", a.Name)
	}

	params := strings.Split(meta, ";")
	mediaType := strings.TrimSpace(params[0])
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}

	var data []byte
	if isBase64 {
		clean := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		var err error
		data, err = base64.StdEncoding.DecodeString(clean)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(clean, "="))
			if err != nil {
				return Decoded{}, fmt.Errorf("attachment %s: invalid base64 payload: %w", a.Name, err)
			}
		}
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return Decoded{}, fmt.Errorf("attachment %s: invalid percent-encoding: %w", a.Name, err)
		}
		data = []byte(s)
	}
	return Decoded{Name: a.Name, MediaType: mediaType, Data: data}, nil
}

// DecodeAttachments decodes every attachment of the job. Any malformed URI
// fails the job with GenerationFailed.
func (j Job) DecodeAttachments() ([]Decoded, error) {
	out := make([]Decoded, 0, len(j.Attachments))
	for _, a := range j.Attachments {
		d, err := a.Decode()
		if err != nil {
			return nil, errors.GenerationFailed("malformed attachment").
				WithCause(err).
				WithContext("attachment", a.Name).
				Build()
		}
		out = append(out, d)
	}
	return out, nil
}
