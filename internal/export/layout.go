package export

import (
	"strings"
	"time"
)

// LetterLayout lays a document out as a formal letter, one paragraph per
// entry. The content block stays verbatim, newlines included.
func LetterLayout(doc Document, now time.Time) []string {
	return []string{
		now.Format("January 2, 2006"),
		doc.RecipientName,
		doc.Salutation,
		"Subject: " + doc.Title,
		doc.Content,
		"Specific Request: " + doc.SpecificRequest,
		doc.Closing,
		"Sincerely,",
		doc.SenderName,
	}
}

// AgendaLayout lays a document out as a meeting agenda. The first content
// line becomes the intro paragraph, the remaining lines the main body.
func AgendaLayout(doc Document) []string {
	lines := strings.Split(doc.Content, "\n")
	intro := lines[0]
	body := strings.Join(lines[1:], "\n")

	return []string{
		"Agenda",
		"======",
		"Subject: " + doc.Title,
		"Greeting: " + doc.Salutation,
		"Intro Paragraph:",
		intro,
		"Main Body:",
		body,
		"Specific Request:",
		doc.SpecificRequest,
		"Closing:",
		doc.Closing,
		"Signature:",
		doc.SenderName,
	}
}

// Layout dispatches on kind; the document must already be validated.
func Layout(doc Document, kind Kind, now time.Time) []string {
	if kind == KindAgenda {
		return AgendaLayout(doc)
	}
	return LetterLayout(doc, now)
}

func validateDocument(doc Document) error {
	required := []struct {
		name  string
		value string
	}{
		{"senderName", doc.SenderName},
		{"recipientName", doc.RecipientName},
		{"salutation", doc.Salutation},
		{"title", doc.Title},
		{"content", doc.Content},
		{"specificRequest", doc.SpecificRequest},
		{"closing", doc.Closing},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return &FormatError{Field: field.name}
		}
	}
	return nil
}
