// Package generation turns a brief, its checks, attachments and (for
// revisions) the current repository contents into a complete FileSet with a
// single model call.
//
// Two API dialects are supported: Gemini generateContent and OpenAI-style
// chat completions. Both are asked for the same JSON document:
//
//	{"files": [{"name": "index.html", "content": "..."},
//	           {"name": "logo.png", "keep": true}]}
//
// A bare JSON array of the same objects is accepted as well. "keep" copies
// the existing bytes of that path, which is how binary files survive a
// revision. "encoding": "base64" marks base64 content.
package generation
