package export

import (
	"errors"
	"strings"
	"testing"
	"time"

	"letterdesk/api/internal/rbac"
)

func sampleDocument() Document {
	return Document{
		SenderName:      "Ada Lovelace",
		RecipientName:   "Charles Babbage",
		Salutation:      "Dear Mr. Babbage,",
		Title:           "Analytical Engine Funding",
		Content:         "The engine shows great promise.\nI propose we continue.\nDetails attached.",
		SpecificRequest: "Please approve the budget.",
		Closing:         "With thanks for your consideration.",
	}
}

func TestLetterLayout(t *testing.T) {
	doc := sampleDocument()
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	got := LetterLayout(doc, now)

	want := []string{
		"March 14, 2026",
		"Charles Babbage",
		"Dear Mr. Babbage,",
		"Subject: Analytical Engine Funding",
		doc.Content,
		"Specific Request: Please approve the budget.",
		"With thanks for your consideration.",
		"Sincerely,",
		"Ada Lovelace",
	}

	if len(got) != len(want) {
		t.Fatalf("LetterLayout() returned %d paragraphs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("paragraph %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAgendaLayoutSplitsContent(t *testing.T) {
	doc := sampleDocument()

	got := AgendaLayout(doc)

	if got[0] != "Agenda" || got[1] != "======" {
		t.Fatalf("agenda header = %q, %q", got[0], got[1])
	}
	if got[2] != "Subject: Analytical Engine Funding" {
		t.Errorf("subject line = %q", got[2])
	}
	if got[3] != "Greeting: Dear Mr. Babbage," {
		t.Errorf("greeting line = %q", got[3])
	}

	// First content line becomes the intro, the rest the body.
	if got[5] != "The engine shows great promise." {
		t.Errorf("intro paragraph = %q", got[5])
	}
	if got[7] != "I propose we continue.\nDetails attached." {
		t.Errorf("main body = %q", got[7])
	}
	if got[len(got)-1] != "Ada Lovelace" {
		t.Errorf("signature = %q", got[len(got)-1])
	}
}

func TestAgendaLayoutSingleLineContent(t *testing.T) {
	doc := sampleDocument()
	doc.Content = "Only one line here."

	got := AgendaLayout(doc)

	if got[5] != "Only one line here." {
		t.Errorf("intro paragraph = %q", got[5])
	}
	if got[7] != "" {
		t.Errorf("main body = %q, want empty", got[7])
	}
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Document)
		wantField string
	}{
		{"complete document", func(d *Document) {}, ""},
		{"missing sender", func(d *Document) { d.SenderName = "" }, "senderName"},
		{"missing recipient", func(d *Document) { d.RecipientName = "  " }, "recipientName"},
		{"missing salutation", func(d *Document) { d.Salutation = "" }, "salutation"},
		{"missing title", func(d *Document) { d.Title = "\t" }, "title"},
		{"missing content", func(d *Document) { d.Content = "" }, "content"},
		{"missing request", func(d *Document) { d.SpecificRequest = "" }, "specificRequest"},
		{"missing closing", func(d *Document) { d.Closing = "" }, "closing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := sampleDocument()
			tt.mutate(&doc)

			err := validateDocument(doc)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("validateDocument() error = %v, want nil", err)
				}
				return
			}

			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("validateDocument() error = %v, want FormatError", err)
			}
			if fe.Field != tt.wantField {
				t.Errorf("FormatError.Field = %q, want %q", fe.Field, tt.wantField)
			}
		})
	}
}

func TestGenerateGatesDOCXByRole(t *testing.T) {
	doc := sampleDocument()
	now := time.Now()

	for _, role := range []rbac.Role{rbac.RoleViewer, rbac.RoleUser} {
		_, err := Generate(doc, KindLetter, FormatDOCX, role, now)
		if !errors.Is(err, ErrFormatForbidden) {
			t.Errorf("Generate(docx, %s) error = %v, want ErrFormatForbidden", role, err)
		}
	}
}

func TestGenerateRejectsInvalidDocumentBeforeRendering(t *testing.T) {
	doc := sampleDocument()
	doc.Title = ""

	_, err := Generate(doc, KindLetter, FormatPDF, rbac.RoleUser, time.Now())

	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("Generate() error = %v, want FormatError", err)
	}
}

func TestGenerateRejectsUnknownKind(t *testing.T) {
	_, err := Generate(sampleDocument(), Kind("memo"), FormatPDF, rbac.RoleAdmin, time.Now())
	if err == nil || !strings.Contains(err.Error(), "unsupported layout") {
		t.Fatalf("Generate() error = %v, want unsupported layout", err)
	}
}

func TestRenderHTML(t *testing.T) {
	html, err := renderHTML("My <Letter>", []string{"First paragraph", "Body with <tags> & ampersands"})
	if err != nil {
		t.Fatalf("renderHTML() error = %v", err)
	}

	if !strings.Contains(html, "<p>First paragraph</p>") {
		t.Error("HTML missing first paragraph")
	}
	// Paragraph text must be escaped, not rendered as markup.
	if !strings.Contains(html, "&lt;tags&gt;") {
		t.Error("HTML should escape angle brackets in paragraph text")
	}
	if strings.Contains(html, "<tags>") {
		t.Error("raw paragraph markup leaked into the document")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"Budget Request v1.2", "Budget-Request-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "document"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
