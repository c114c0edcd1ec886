package orchestrator

import (
	"sort"
	"strings"

	"github.com/skein-dev/skein/pkg/models"
)

// Attachment is an embedded image supplied with the user input. Token,
// when set, is a sentinel substring of the text marking where the image
// belongs.
type Attachment struct {
	Data     string
	MimeType string
	AltText  string
	Token    string
	Source   string
	Name     string
}

// UserPayload is the structured form of one user input.
type UserPayload struct {
	Text        string
	DisplayText string
	Attachments []Attachment
}

// TextPayload wraps a plain string input.
func TextPayload(text string) UserPayload {
	return UserPayload{Text: text}
}

// Display returns the text to show for this payload.
func (p UserPayload) Display() string {
	if p.DisplayText != "" {
		return p.DisplayText
	}
	return p.Text
}

// buildUserContent assembles the user message body. Reminder segments
// are prepended to the text. Attachments whose token appears in the
// text split the body into ordered text and image parts at the token
// positions; tokenless images are appended after all text.
func buildUserContent(text string, reminders []string, attachments []Attachment) models.MessageContent {
	if len(reminders) > 0 {
		var b strings.Builder
		for _, seg := range reminders {
			b.WriteString("<system-reminder>")
			b.WriteString(seg)
			b.WriteString("</system-reminder>\n")
		}
		b.WriteString(text)
		text = b.String()
	}

	if len(attachments) == 0 {
		return models.TextContent(text)
	}

	type placed struct {
		att Attachment
		pos int
	}
	var anchored []placed
	var trailing []Attachment
	for _, att := range attachments {
		if att.Token != "" {
			if pos := strings.Index(text, att.Token); pos >= 0 {
				anchored = append(anchored, placed{att: att, pos: pos})
				continue
			}
		}
		trailing = append(trailing, att)
	}
	sort.SliceStable(anchored, func(i, j int) bool { return anchored[i].pos < anchored[j].pos })

	var parts []models.ContentPart
	cursor := 0
	for _, p := range anchored {
		if p.pos > cursor {
			if segment := text[cursor:p.pos]; strings.TrimSpace(segment) != "" {
				parts = append(parts, models.TextPart(segment))
			}
		}
		parts = append(parts, models.ImageContentPart(p.att.Data, p.att.MimeType, p.att.AltText))
		cursor = p.pos + len(p.att.Token)
	}
	if cursor < len(text) {
		if segment := text[cursor:]; strings.TrimSpace(segment) != "" {
			parts = append(parts, models.TextPart(segment))
		}
	}
	for _, att := range trailing {
		parts = append(parts, models.ImageContentPart(att.Data, att.MimeType, att.AltText))
	}
	return models.PartsContent(parts)
}
