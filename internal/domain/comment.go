package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Comment is a single user comment on a movie. The negotiated wire shape is
// {"text": "..."}; older payloads carrying {"comment": "..."} objects or bare
// strings are still accepted when decoding.
type Comment struct {
	Text string
}

type commentPayload struct {
	Text    *string `json:"text"`
	Comment *string `json:"comment"`
}

var commentStripper = strings.NewReplacer("{", "", "}", "", `"`, "")

// MarshalJSON encodes the comment in its negotiated object form.
func (c Comment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Text string `json:"text"`
	}{Text: c.Text})
}

// UnmarshalJSON never fails on odd payloads: anything it cannot decode as a
// comment object degrades to its plain text.
func (c *Comment) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		c.Text = ""
		return nil
	case trimmed[0] == '{':
		c.Text = decodeCommentObject(string(trimmed))
		return nil
	case trimmed[0] == '"':
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			c.Text = StripCommentMarkup(string(trimmed))
			return nil
		}
		c.Text = ParseCommentText(raw)
		return nil
	default:
		c.Text = strings.TrimSpace(string(trimmed))
		return nil
	}
}

// ParseCommentText extracts readable text from a stored comment string. A
// string shaped like an embedded object is decoded as one; other strings only
// lose stray braces.
func ParseCommentText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return decodeCommentObject(trimmed)
	}
	return strings.TrimSpace(strings.NewReplacer("{", "", "}", "").Replace(trimmed))
}

func decodeCommentObject(raw string) string {
	var payload commentPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return StripCommentMarkup(raw)
	}
	switch {
	case payload.Text != nil:
		return strings.TrimSpace(*payload.Text)
	case payload.Comment != nil:
		return strings.TrimSpace(*payload.Comment)
	default:
		return raw
	}
}

// StripCommentMarkup is the decode-error fallback: it drops braces, quotes and
// a leading comment key.
func StripCommentMarkup(raw string) string {
	text := strings.TrimSpace(commentStripper.Replace(raw))
	for _, prefix := range []string{"comment:", "comment=", "text:", "text="} {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimSpace(strings.TrimPrefix(text, prefix))
			break
		}
	}
	return text
}
