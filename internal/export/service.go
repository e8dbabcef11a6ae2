package export

import (
	"fmt"
	"time"

	"letterdesk/api/internal/rbac"
)

// Generate renders a document in the requested layout and format. DOCX is
// gated here so every caller inherits the same permission check.
func Generate(doc Document, kind Kind, format Format, role rbac.Role, now time.Time) (*Result, error) {
	if format == FormatDOCX && !rbac.Can(role, rbac.ActionExportDOCX) {
		return nil, ErrFormatForbidden
	}

	if kind != KindLetter && kind != KindAgenda {
		return nil, fmt.Errorf("unsupported layout: %s", kind)
	}

	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	paragraphs := Layout(doc, kind, now)
	html, err := renderHTML(doc.Title, paragraphs)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	baseName := sanitizeFilename(doc.Title) + "-" + string(kind)

	switch format {
	case FormatPDF:
		return exportPDF(html, baseName)
	case FormatDOCX:
		return exportDOCX(html, baseName)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
