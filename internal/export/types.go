// Package export renders a letter record as a downloadable PDF or DOCX in
// either the letter or the agenda layout. The DOCX path is a permission
// boundary: the role gate lives in Format itself, not only in the routes.
package export

import "errors"

// Kind selects the text layout.
type Kind string

const (
	KindLetter Kind = "letter"
	KindAgenda Kind = "agenda"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Document carries the letter fields needed for rendering.
type Document struct {
	SenderName      string
	RecipientName   string
	Salutation      string
	Title           string
	Content         string
	SpecificRequest string
	Closing         string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrFormatForbidden indicates the caller's role may not use the format.
	ErrFormatForbidden = errors.New("export format not permitted for role")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)

// FormatError reports a document that cannot be laid out.
type FormatError struct {
	Field string
}

func (e *FormatError) Error() string {
	return "export: missing required field " + e.Field
}
